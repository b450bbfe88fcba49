package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the SOCKS5 greeting in CheckProxy.
const checkProxyTimeout = 2 * time.Second

// maxRedirects is the number of redirects followed per request.
const maxRedirects = 10

// SOCKS5 greeting constants.
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthPassword = 0x02
	socks5AuthNoAccept = 0xFF
)

// Options configures the HTTP client.
type Options struct {
	// Timeout is the per-request timeout. 0 leaves it to the transport.
	Timeout time.Duration

	// SOCKS5Proxy is "host:port" or "user:password@host:port".
	// Empty means direct connections.
	SOCKS5Proxy string
}

// ProxyAddress is a parsed SOCKS5 proxy setting.
type ProxyAddress struct {
	// HostPort is the proxy's "host:port".
	HostPort string

	// Auth holds credentials, or nil when the proxy needs none.
	Auth *proxy.Auth
}

// ParseProxyAddress parses "host:port" or "user:password@host:port".
func ParseProxyAddress(raw string) (ProxyAddress, error) {
	addr := ProxyAddress{HostPort: strings.TrimSpace(raw)}

	if userinfo, hostPort, found := strings.Cut(addr.HostPort, "@"); found {
		user, password, _ := strings.Cut(userinfo, ":")
		if user == "" {
			return ProxyAddress{}, ErrInvalidProxyAddress
		}
		addr.HostPort = hostPort
		addr.Auth = &proxy.Auth{User: user, Password: password}
	}

	if !isValidHostPort(addr.HostPort) {
		return ProxyAddress{}, ErrInvalidProxyAddress
	}
	return addr, nil
}

func isValidHostPort(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || strings.ContainsAny(host, "/@ ") {
		return false
	}
	portNum, err := strconv.Atoi(port)
	return err == nil && portNum >= 1 && portNum <= 65535
}

// NewHTTPClient returns the client pages are fetched with.
func NewHTTPClient(opts Options) (*http.Client, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, errors.New("default transport is not *http.Transport")
	}
	transport := base.Clone()

	if opts.SOCKS5Proxy != "" {
		addr, err := ParseProxyAddress(opts.SOCKS5Proxy)
		if err != nil {
			return nil, err
		}
		dialer, err := proxy.SOCKS5("tcp", addr.HostPort, addr.Auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		transport.DialContext = contextDialer(dialer)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// contextDialer adapts a proxy.Dialer to http.Transport.DialContext.
// Dialers without context support are raced against ctx.
func contextDialer(dialer proxy.Dialer) func(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext
	}

	return func(ctx context.Context, network, address string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)
		go func() {
			conn, err := dialer.Dial(network, address)
			resultCh <- dialResult{conn, err}
		}()

		select {
		case result := <-resultCh:
			return result.conn, result.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// CheckProxy verifies that a SOCKS5 proxy is reachable and answers the
// SOCKS5 greeting with an authentication method the client supports.
func CheckProxy(ctx context.Context, raw string) ProxyStatus {
	addr, err := ParseProxyAddress(raw)
	if err != nil {
		return ProxyStatusCannotConnect
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr.HostPort)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	method := byte(socks5AuthNone)
	if addr.Auth != nil {
		method = socks5AuthPassword
	}
	if _, err := conn.Write([]byte{socks5Version, 0x01, method}); err != nil {
		return ProxyStatusCannotConnect
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if resp[0] != socks5Version || resp[1] == socks5AuthNoAccept || resp[1] != method {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}
