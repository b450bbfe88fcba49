package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// startSOCKS5 runs a minimal no-auth SOCKS5 proxy that supports CONNECT.
func startSOCKS5(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSOCKS5(conn)
		}
	}()
	return ln.Addr().String()
}

func serveSOCKS5(conn net.Conn) {
	defer conn.Close()

	header := make([]byte, 2)
	if _, err := io.ReadFull(conn, header); err != nil {
		return
	}
	methods := make([]byte, header[1])
	if _, err := io.ReadFull(conn, methods); err != nil {
		return
	}
	if _, err := conn.Write([]byte{socks5Version, socks5AuthNone}); err != nil {
		return
	}

	req := make([]byte, 4)
	if _, err := io.ReadFull(conn, req); err != nil {
		return
	}
	var host string
	switch req[3] {
	case 0x01:
		ip := make([]byte, 4)
		if _, err := io.ReadFull(conn, ip); err != nil {
			return
		}
		host = net.IP(ip).String()
	case 0x03:
		size := make([]byte, 1)
		if _, err := io.ReadFull(conn, size); err != nil {
			return
		}
		name := make([]byte, size[0])
		if _, err := io.ReadFull(conn, name); err != nil {
			return
		}
		host = string(name)
	default:
		return
	}
	portBytes := make([]byte, 2)
	if _, err := io.ReadFull(conn, portBytes); err != nil {
		return
	}
	port := int(portBytes[0])<<8 | int(portBytes[1])

	target, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		_, _ = conn.Write([]byte{socks5Version, 0x01, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		return
	}
	defer target.Close()

	if _, err := conn.Write([]byte{socks5Version, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}); err != nil {
		return
	}
	go func() { _, _ = io.Copy(target, conn) }()
	_, _ = io.Copy(conn, target)
}

func TestParseProxyAddress(t *testing.T) {
	t.Parallel()

	t.Run("host and port", func(t *testing.T) {
		t.Parallel()

		addr, err := ParseProxyAddress("127.0.0.1:1080")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if addr.HostPort != "127.0.0.1:1080" || addr.Auth != nil {
			t.Errorf("unexpected address %+v", addr)
		}
	})

	t.Run("with credentials", func(t *testing.T) {
		t.Parallel()

		addr, err := ParseProxyAddress("alice:secret@proxy.internal:1080")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if addr.HostPort != "proxy.internal:1080" {
			t.Errorf("unexpected host %q", addr.HostPort)
		}
		if addr.Auth == nil || addr.Auth.User != "alice" || addr.Auth.Password != "secret" {
			t.Errorf("unexpected auth %+v", addr.Auth)
		}
	})

	invalid := []string{
		"",
		"127.0.0.1",
		":1080",
		"127.0.0.1:0",
		"127.0.0.1:65536",
		"127.0.0.1:http",
		"socks5://127.0.0.1:1080",
		"@127.0.0.1:1080",
	}
	for _, raw := range invalid {
		t.Run("invalid "+raw, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseProxyAddress(raw); !errors.Is(err, ErrInvalidProxyAddress) {
				t.Errorf("expected ErrInvalidProxyAddress for %q, got %v", raw, err)
			}
		})
	}
}

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	t.Run("direct client keeps the timeout", func(t *testing.T) {
		t.Parallel()

		client, err := NewHTTPClient(Options{Timeout: 5 * time.Second})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.Timeout != 5*time.Second {
			t.Errorf("expected 5s timeout, got %v", client.Timeout)
		}
	})

	t.Run("rejects invalid proxy", func(t *testing.T) {
		t.Parallel()

		if _, err := NewHTTPClient(Options{SOCKS5Proxy: "nope"}); !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})

	t.Run("routes requests through the proxy", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "through proxy")
		}))
		t.Cleanup(server.Close)

		client, err := NewHTTPClient(Options{SOCKS5Proxy: startSOCKS5(t), Timeout: 5 * time.Second})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		t.Cleanup(client.CloseIdleConnections)

		resp, err := client.Get(server.URL)
		if err != nil {
			t.Fatalf("request through proxy failed: %v", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		if string(body) != "through proxy" {
			t.Errorf("unexpected body %q", body)
		}
	})
}

func TestCheckProxy(t *testing.T) {
	t.Parallel()

	t.Run("working proxy", func(t *testing.T) {
		t.Parallel()

		if status := CheckProxy(context.Background(), startSOCKS5(t)); status != ProxyStatusOK {
			t.Errorf("expected OK, got %s", status)
		}
	})

	t.Run("not a SOCKS5 server", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to listen: %v", err)
		}
		t.Cleanup(func() { _ = ln.Close() })
		go func() {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
			_, _ = io.WriteString(conn, "HTTP/1.1 400 Bad Request\r\n\r\n")
		}()

		status := CheckProxy(context.Background(), ln.Addr().String())
		if status != ProxyStatusWrongType {
			t.Errorf("expected wrong type, got %s", status)
		}
		if !errors.Is(status.Error(), ErrProxyNotSOCKS5) {
			t.Errorf("expected ErrProxyNotSOCKS5, got %v", status.Error())
		}
	})

	t.Run("nothing listening", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to listen: %v", err)
		}
		addr := ln.Addr().String()
		_ = ln.Close()

		if status := CheckProxy(context.Background(), addr); status != ProxyStatusCannotConnect {
			t.Errorf("expected cannot connect, got %s", status)
		}
	})
}

func TestProxyStatus(t *testing.T) {
	t.Parallel()

	if ProxyStatusOK.Error() != nil {
		t.Error("expected nil error for OK")
	}
	if !errors.Is(ProxyStatusTimeout.Error(), ErrProxyTimeout) {
		t.Error("expected ErrProxyTimeout")
	}
	if ProxyStatus(99).String() != "unknown" {
		t.Error("expected unknown for out of range status")
	}
}
