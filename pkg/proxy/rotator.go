package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"ttscraper/pkg/auth"
	"ttscraper/pkg/config"
	errs "ttscraper/pkg/errors"
	"ttscraper/pkg/logger"
	"ttscraper/pkg/retry"
)

const defaultIPEchoURL = "https://api.ipify.org?format=json"

type ipResponse struct {
	IP string `json:"ip"`
}

// idleCloser is implemented by *http.Transport
type idleCloser interface {
	CloseIdleConnections()
}

// Rotator requests a new exit IP from a rotating proxy gateway and reports
// the address it now egresses from. Each worker owns one.
type Rotator struct {
	transport   http.RoundTripper
	client      *http.Client
	direct      *http.Client
	rotateURL   string
	echoURL     string
	attempts    int
	verifyDelay time.Duration
	logger      logger.Logger
}

// NewRotator creates a rotator for account sending its IP checks through
// transport. cfg supplies the IP-echo endpoint, attempts and timeout.
func NewRotator(account *auth.ProxyAccount, cfg config.ProxyConfig, transport http.RoundTripper, log logger.Logger) *Rotator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	echoURL := cfg.IPEchoURL
	if echoURL == "" {
		echoURL = defaultIPEchoURL
	}
	attempts := cfg.VerifyAttempts
	if attempts <= 0 {
		attempts = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	var rotateURL string
	if account != nil {
		rotateURL = account.RotateURL
	}

	return &Rotator{
		transport:   transport,
		client:      &http.Client{Transport: transport, Timeout: timeout},
		direct:      &http.Client{Timeout: timeout},
		rotateURL:   rotateURL,
		echoURL:     echoURL,
		attempts:    attempts,
		verifyDelay: time.Second,
		logger:      log,
	}
}

// Rotate drops pooled connections, triggers the provider's rotate endpoint
// when one is configured, and reports the new exit IP. A failed rotation
// returns ok=false and is never fatal.
func (r *Rotator) Rotate(ctx context.Context) (string, bool) {
	if c, ok := r.transport.(idleCloser); ok {
		c.CloseIdleConnections()
	}

	if r.rotateURL != "" {
		err := retry.Do(ctx, r.triggerRotation, &retry.Config{
			MaxAttempts: r.attempts,
			Backoff:     retry.Doubling(r.verifyDelay/2, 4*r.verifyDelay, 0.1),
			Logger:      r.logger,
		})
		if err != nil {
			r.logger.WithError(err).Warn("Proxy rotate endpoint failed")
		}
	}

	ip, err := retry.DoWithResult(ctx, r.fetchIP, &retry.Config{
		MaxAttempts: r.attempts,
		Backoff:     retry.Constant(r.verifyDelay),
		Logger:      r.logger,
	})
	if err != nil {
		r.logger.WithError(err).Debug("Exit IP verification failed")
		return "", false
	}
	return ip, true
}

// CurrentIP reports the exit IP without rotating
func (r *Rotator) CurrentIP(ctx context.Context) (string, error) {
	return r.fetchIP(ctx)
}

func (r *Rotator) triggerRotation(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.rotateURL, nil)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeProxyRotation, "invalid rotate url", err)
	}
	// the rotate endpoint is the provider's API, not a proxied target
	resp, err := r.direct.Do(req)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeProxyRotation, "rotate request failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		return &errs.Error{
			Type:    errs.ErrorTypeProxyRotation,
			Message: fmt.Sprintf("rotate endpoint returned %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
	return nil
}

func (r *Rotator) fetchIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.echoURL, nil)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeUnknown, "invalid ip echo url", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeProxyRotation, "ip echo request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &errs.Error{
			Type:    errs.ErrorTypeProxyRotation,
			Message: fmt.Sprintf("ip echo returned %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeProxyRotation, "failed to read ip echo response", err)
	}

	return parseIP(body)
}

// parseIP accepts {"ip": "..."} or a bare address
func parseIP(body []byte) (string, error) {
	text := strings.TrimSpace(string(body))

	var payload ipResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.IP != "" {
		text = strings.TrimSpace(payload.IP)
	}

	if net.ParseIP(text) == nil {
		preview := text
		if len(preview) > 64 {
			preview = preview[:64] + "..."
		}
		return "", errs.New(errs.ErrorTypeProxyRotation, fmt.Sprintf("ip echo returned no address: %q", preview))
	}
	return text, nil
}
