package proxy

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ttscraper/pkg/auth"
	"ttscraper/pkg/config"
	"ttscraper/pkg/logger"
)

func TestNewTransportDirect(t *testing.T) {
	tr, err := NewTransport(nil, time.Second)
	require.NoError(t, err)
	assert.Nil(t, tr.Proxy)
	assert.NotNil(t, tr.DialContext)

	tr, err = NewTransport(&auth.ProxyAccount{Username: "u", Password: "p"}, time.Second)
	require.NoError(t, err)
	assert.Nil(t, tr.Proxy, "credentials without a host dial directly")
}

func TestNewTransportHTTPProxy(t *testing.T) {
	account := &auth.ProxyAccount{Host: "gate.example.test", Port: 7000, Username: "user", Password: "p@ss"}
	tr, err := NewTransport(account, time.Second)
	require.NoError(t, err)
	require.NotNil(t, tr.Proxy)

	req := httptest.NewRequest(http.MethodGet, "https://www.tiktok.com/", nil)
	u, err := tr.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "gate.example.test:7000", u.Host)
	assert.Equal(t, "user", u.User.Username())
	pass, _ := u.User.Password()
	assert.Equal(t, "p@ss", pass)
}

func TestNewTransportSOCKS5(t *testing.T) {
	for _, scheme := range []string{"socks5", "SOCKS5H"} {
		tr, err := NewTransport(&auth.ProxyAccount{Scheme: scheme, Host: "127.0.0.1", Port: 1080}, time.Second)
		require.NoError(t, err, scheme)
		assert.Nil(t, tr.Proxy)
		assert.NotNil(t, tr.DialContext)
	}
}

func TestNewTransportUnsupportedScheme(t *testing.T) {
	_, err := NewTransport(&auth.ProxyAccount{Scheme: "ftp", Host: "x"}, time.Second)
	assert.Error(t, err)
}

func newRotator(t *testing.T, rotateURL string, cfg config.ProxyConfig) *Rotator {
	t.Helper()
	tr, err := NewTransport(nil, time.Second)
	require.NoError(t, err)
	r := NewRotator(&auth.ProxyAccount{RotateURL: rotateURL}, cfg, tr, logger.NewTestLogger())
	r.verifyDelay = 0
	return r
}

func TestRotateReportsNewIP(t *testing.T) {
	var rotations int32
	rotate := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&rotations, 1)
	}))
	defer rotate.Close()
	echo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ip":"203.0.113.7"}`))
	}))
	defer echo.Close()

	r := newRotator(t, rotate.URL, config.ProxyConfig{IPEchoURL: echo.URL, VerifyAttempts: 2})
	ip, ok := r.Rotate(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "203.0.113.7", ip)
	assert.Equal(t, int32(1), atomic.LoadInt32(&rotations))
}

func TestRotateSurvivesRotateEndpointFailure(t *testing.T) {
	rotate := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer rotate.Close()
	echo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("198.51.100.9\n"))
	}))
	defer echo.Close()

	r := newRotator(t, rotate.URL, config.ProxyConfig{IPEchoURL: echo.URL})
	ip, ok := r.Rotate(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "198.51.100.9", ip)
}

func TestRotateRetriesRotateEndpoint(t *testing.T) {
	var rotations int32
	rotate := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&rotations, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer rotate.Close()
	echo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ip":"192.0.2.44"}`))
	}))
	defer echo.Close()

	r := newRotator(t, rotate.URL, config.ProxyConfig{IPEchoURL: echo.URL, VerifyAttempts: 3})
	ip, ok := r.Rotate(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "192.0.2.44", ip)
	assert.Equal(t, int32(2), atomic.LoadInt32(&rotations))
}

func TestRotateFailureIsNotFatal(t *testing.T) {
	var calls int32
	echo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer echo.Close()

	r := newRotator(t, "", config.ProxyConfig{IPEchoURL: echo.URL, VerifyAttempts: 3})
	ip, ok := r.Rotate(context.Background())
	assert.False(t, ok)
	assert.Empty(t, ip)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRotateThroughHTTPProxy(t *testing.T) {
	var gotAuth, gotHost string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Proxy-Authorization")
		gotHost = r.Host
		w.Write([]byte(`{"ip":"192.0.2.44"}`))
	}))
	defer gateway.Close()

	gw, err := url.Parse(gateway.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(gw.Port())
	require.NoError(t, err)

	account := &auth.ProxyAccount{
		Scheme:   "http",
		Host:     gw.Hostname(),
		Port:     port,
		Username: "user",
		Password: "secret",
	}
	tr, err := NewTransport(account, time.Second)
	require.NoError(t, err)

	r := NewRotator(account, config.ProxyConfig{IPEchoURL: "http://ip.echo.test/?format=json"}, tr, nil)
	ip, err := r.CurrentIP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.44", ip)
	assert.Equal(t, "ip.echo.test", gotHost)
	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("user:secret")), gotAuth)
}

func TestParseIP(t *testing.T) {
	tests := []struct {
		body    string
		want    string
		wantErr bool
	}{
		{`{"ip":"203.0.113.1"}`, "203.0.113.1", false},
		{"2001:db8::1", "2001:db8::1", false},
		{`{"ip":""}`, "", true},
		{"<html>blocked</html>", "", true},
	}
	for _, tt := range tests {
		got, err := parseIP([]byte(tt.body))
		if tt.wantErr {
			assert.Error(t, err, tt.body)
			continue
		}
		require.NoError(t, err, tt.body)
		assert.Equal(t, tt.want, got)
	}
}
