// Package proxy builds per-worker egress transports and rotates the exit IP
// of a rotating proxy gateway.
package proxy

import (
	"fmt"
	"net"
	"net/http"
	"time"

	xproxy "golang.org/x/net/proxy"

	"ttscraper/pkg/auth"
)

// NewTransport builds a transport that sends every request through the
// account's proxy. HTTP(S) proxies use CONNECT tunneling, socks5 proxies
// dial through golang.org/x/net/proxy. A nil or host-less account dials
// directly.
func NewTransport(account *auth.ProxyAccount, connectTimeout time.Duration) (*http.Transport, error) {
	if connectTimeout <= 0 {
		connectTimeout = 15 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}

	if !account.Enabled() {
		return transport, nil
	}

	switch account.SchemeOrDefault() {
	case "http", "https":
		transport.Proxy = http.ProxyURL(account.URL())
	case "socks5", "socks5h":
		var socksAuth *xproxy.Auth
		if account.Username != "" {
			socksAuth = &xproxy.Auth{User: account.Username, Password: account.Password}
		}
		d, err := xproxy.SOCKS5("tcp", account.Address(), socksAuth, dialer)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		contextDialer, ok := d.(xproxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS5 dialer does not support contexts")
		}
		transport.DialContext = contextDialer.DialContext
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", account.Scheme)
	}

	return transport, nil
}
