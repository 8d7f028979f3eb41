package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ttscraper/pkg/config"
	errs "ttscraper/pkg/errors"
	"ttscraper/pkg/logger"
	"ttscraper/pkg/ratelimit"
)

// Client performs paced, header-decorated requests against the web API
// over one worker's transport.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	appID      string
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient creates a client for cfg. transport may be nil for the default
// transport; limiter may be nil for unlimited requests.
func NewClient(cfg config.APIConfig, transport http.RoundTripper, limiter ratelimit.Limiter, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseURL
	}
	appID := cfg.AppID
	if appID == "" {
		appID = AppID
	}

	headers := map[string]string{
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
	}
	if cfg.UserAgent != "" {
		headers["User-Agent"] = cfg.UserAgent
	}
	if cfg.Referer != "" {
		headers["Referer"] = cfg.Referer
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		headers: headers,
		baseURL: baseURL,
		appID:   appID,
		limiter: limiter,
		logger:  log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// BaseURL returns the API host the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AppID returns the aid parameter the client sends
func (c *Client) AppID() string {
	return c.appID
}

// doRequest waits for the limiter, then performs req with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "rate limiter wait aborted", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      redactToken(req.URL.String()),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "network error", err)
	}

	logger.LogRequest(c.logger, req.Method, redactToken(req.URL.String()), resp.StatusCode, duration)
	return resp, nil
}

// Get performs a GET request to the specified URL
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to create request", err)
	}
	return c.doRequest(req)
}

// GetJSON performs a GET request and decodes the JSON response
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: "failed to read response body",
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.DebugWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          redactToken(url),
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: "failed to parse JSON",
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	return nil
}

// checkResponseStatus checks the HTTP response status and returns appropriate errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &errs.Error{Type: errs.ErrorTypeAuth, Message: "request rejected", Code: code}
	case code == http.StatusNotFound:
		return &errs.Error{Type: errs.ErrorTypeNotFound, Message: "resource not found", Code: code}
	case code == http.StatusTooManyRequests:
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "rate limit exceeded", Code: code}
	case code >= 500:
		return &errs.Error{Type: errs.ErrorTypeServerError, Message: "server error", Code: code}
	default:
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", code),
			Code:    code,
		}
	}
}

// FetchToken performs the handshake request and returns the msToken the
// server hands out, read from its cookie or, failing that, its header.
func (c *Client) FetchToken(ctx context.Context) (string, error) {
	resp, err := c.Get(ctx, TokenURL(c.baseURL, c.appID))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	for _, cookie := range resp.Cookies() {
		if cookie.Name == TokenCookie && cookie.Value != "" {
			return cookie.Value, nil
		}
	}
	if token := resp.Header.Get(TokenHeader); token != "" {
		return token, nil
	}

	return "", &errs.Error{
		Type:    errs.ErrorTypeTokenAcquisition,
		Message: "handshake response carried no msToken",
		Code:    resp.StatusCode,
	}
}

// CloseIdleConnections drops pooled connections so the next request dials anew
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}
