package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	errs "ttscraper/pkg/errors"
)

// Handshaker performs the request that yields a new session token.
type Handshaker interface {
	FetchToken(ctx context.Context) (string, error)
}

// HandshakeFunc adapts a function to Handshaker
type HandshakeFunc func(ctx context.Context) (string, error)

// FetchToken calls f
func (f HandshakeFunc) FetchToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// TokenState is the lifecycle stage of the current token
type TokenState string

const (
	TokenEmpty TokenState = "empty"
	TokenFresh TokenState = "fresh"
	TokenStale TokenState = "stale"
)

// Token is a short-lived session credential attached to API requests
type Token struct {
	Value         string
	BatchesServed int
	IssuedAt      time.Time
}

// Short returns a log-safe prefix of the token
func (t Token) Short() string {
	if len(t.Value) <= 8 {
		return t.Value + "..."
	}
	return t.Value[:8] + "..."
}

// TokenProvider owns the single live token of one worker. The token is
// refreshed after a fixed number of successful batches or on demand.
type TokenProvider struct {
	mu         sync.Mutex
	handshaker Handshaker
	threshold  int
	timeout    time.Duration

	current Token
	issued  int
	now     func() time.Time
}

// NewTokenProvider creates a provider that refreshes after threshold
// served batches and bounds each handshake by timeout.
func NewTokenProvider(h Handshaker, threshold int, timeout time.Duration) *TokenProvider {
	if threshold <= 0 {
		threshold = 1
	}
	return &TokenProvider{
		handshaker: h,
		threshold:  threshold,
		timeout:    timeout,
		now:        time.Now,
	}
}

// Get returns the current token, acquiring a new one when forceRefresh is
// set, no token is held, or the token has served its quota. When a
// refresh fails the previous token, if any, is kept and the error returned.
func (p *TokenProvider) Get(ctx context.Context, forceRefresh bool) (Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !forceRefresh && p.stateLocked() == TokenFresh {
		return p.current, nil
	}

	hctx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	value, err := p.handshaker.FetchToken(hctx)
	if err != nil {
		return Token{}, errs.Wrap(errs.ErrorTypeTokenAcquisition, "token handshake failed", err)
	}
	if value == "" {
		return Token{}, errs.New(errs.ErrorTypeTokenAcquisition, "handshake returned no token")
	}

	p.current = Token{Value: value, IssuedAt: p.now()}
	p.issued++
	return p.current, nil
}

// MarkBatchServed records one successful batch on the current token
func (p *TokenProvider) MarkBatchServed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current.Value != "" {
		p.current.BatchesServed++
	}
}

// Invalidate drops the current token
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = Token{}
}

// TokensIssued returns the number of successful handshakes
func (p *TokenProvider) TokensIssued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issued
}

// Current returns the live token without refreshing it
func (p *TokenProvider) Current() Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// State reports the lifecycle stage of the current token
func (p *TokenProvider) State() TokenState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *TokenProvider) stateLocked() TokenState {
	switch {
	case p.current.Value == "":
		return TokenEmpty
	case p.current.BatchesServed >= p.threshold:
		return TokenStale
	default:
		return TokenFresh
	}
}

func (p *TokenProvider) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("token(%s, served=%d/%d, issued=%d)", p.stateLocked(), p.current.BatchesServed, p.threshold, p.issued)
}
