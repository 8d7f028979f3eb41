package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "ttscraper/pkg/errors"
)

// countingHandshaker hands out token-1, token-2, ...
type countingHandshaker struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (h *countingHandshaker) FetchToken(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.fail {
		return "", errors.New("handshake refused")
	}
	return fmt.Sprintf("token-%d", h.calls), nil
}

func TestTokenProviderLifecycle(t *testing.T) {
	h := &countingHandshaker{}
	p := NewTokenProvider(h, 2, time.Second)
	ctx := context.Background()

	assert.Equal(t, TokenEmpty, p.State())

	tok, err := p.Get(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok.Value)
	assert.Equal(t, TokenFresh, p.State())

	// reused until the threshold is reached
	p.MarkBatchServed()
	tok, err = p.Get(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok.Value)
	assert.Equal(t, 1, tok.BatchesServed)

	p.MarkBatchServed()
	assert.Equal(t, TokenStale, p.State())

	tok, err = p.Get(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok.Value)
	assert.Zero(t, tok.BatchesServed)
	assert.Equal(t, 2, p.TokensIssued())
}

func TestTokenProviderRefreshesEveryThresholdBatches(t *testing.T) {
	h := &countingHandshaker{}
	p := NewTokenProvider(h, 15, 0)
	ctx := context.Background()

	for i := 0; i < 45; i++ {
		_, err := p.Get(ctx, false)
		require.NoError(t, err)
		p.MarkBatchServed()
	}
	assert.Equal(t, 3, p.TokensIssued())
}

func TestTokenProviderForceAndInvalidate(t *testing.T) {
	h := &countingHandshaker{}
	p := NewTokenProvider(h, 15, time.Second)
	ctx := context.Background()

	_, err := p.Get(ctx, false)
	require.NoError(t, err)

	p.Invalidate()
	assert.Equal(t, TokenEmpty, p.State())

	tok, err := p.Get(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok.Value)
	assert.Equal(t, p.Current(), tok)
}

func TestTokenProviderFailure(t *testing.T) {
	h := &countingHandshaker{fail: true}
	p := NewTokenProvider(h, 15, time.Second)

	_, err := p.Get(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeTokenAcquisition))
	assert.Zero(t, p.TokensIssued())

	empty := NewTokenProvider(HandshakeFunc(func(ctx context.Context) (string, error) {
		return "", nil
	}), 15, time.Second)
	_, err = empty.Get(context.Background(), false)
	assert.True(t, errs.IsType(err, errs.ErrorTypeTokenAcquisition))
}

func TestTokenProviderKeepsOldTokenWhenRefreshFails(t *testing.T) {
	h := &countingHandshaker{}
	p := NewTokenProvider(h, 1, time.Second)
	ctx := context.Background()

	_, err := p.Get(ctx, false)
	require.NoError(t, err)
	p.MarkBatchServed()

	h.fail = true
	_, err = p.Get(ctx, false)
	require.Error(t, err)
	assert.Equal(t, "token-1", p.Current().Value)
}

func TestTokenProviderHandshakeTimeout(t *testing.T) {
	slow := HandshakeFunc(func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	p := NewTokenProvider(slow, 15, 20*time.Millisecond)

	start := time.Now()
	_, err := p.Get(context.Background(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTokenShort(t *testing.T) {
	assert.Equal(t, "abcdefgh...", Token{Value: "abcdefghijklmnop"}.Short())
	assert.Equal(t, "abc...", Token{Value: "abc"}.Short())
}
