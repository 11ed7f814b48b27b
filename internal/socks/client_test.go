package socks

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{name: "ip and port", address: "127.0.0.1:1080"},
		{name: "hostname and port", address: "localhost:9050"},
		{name: "empty", address: "", wantErr: true},
		{name: "missing port", address: "127.0.0.1", wantErr: true},
		{name: "missing host", address: ":1080", wantErr: true},
		{name: "port out of range", address: "127.0.0.1:70000", wantErr: true},
		{name: "non numeric port", address: "127.0.0.1:socks", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := NewClient(tt.address)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAddress) {
					t.Errorf("expected ErrInvalidAddress, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client.Address() != tt.address {
				t.Errorf("Address() = %q, want %q", client.Address(), tt.address)
			}
		})
	}
}

// serveOnce accepts one connection, reads the client greeting and writes reply.
func serveOnce(t *testing.T, reply []byte) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 3)
		_, _ = conn.Read(buf)
		if reply != nil {
			_, _ = conn.Write(reply)
		}
	}()

	return listener.Addr().String()
}

func TestCheckConnection(t *testing.T) {
	t.Parallel()

	t.Run("OK for a SOCKS5 proxy without auth", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(serveOnce(t, []byte{0x05, 0x00}))
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if status := client.CheckConnection(context.Background()); status != StatusOK {
			t.Errorf("expected StatusOK, got %v", status)
		}
	})

	t.Run("WrongType for an HTTP server", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(serveOnce(t, []byte("HTTP/1.1 200 OK\r\n\r\n")))
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if status := client.CheckConnection(context.Background()); status != StatusWrongType {
			t.Errorf("expected StatusWrongType, got %v", status)
		}
	})

	t.Run("WrongType when auth is required", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(serveOnce(t, []byte{0x05, 0xFF}))
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if status := client.CheckConnection(context.Background()); status != StatusWrongType {
			t.Errorf("expected StatusWrongType, got %v", status)
		}
	})

	t.Run("CannotConnect when nothing listens", func(t *testing.T) {
		t.Parallel()

		listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatalf("failed to reserve port: %v", err)
		}
		addr := listener.Addr().String()
		_ = listener.Close()

		client, err := NewClient(addr)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if status := client.CheckConnection(context.Background()); status != StatusCannotConnect {
			t.Errorf("expected StatusCannotConnect, got %v", status)
		}
	})
}

func TestStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status Status
		str    string
		err    error
	}{
		{StatusOK, "OK", nil},
		{StatusWrongType, "wrong type (not SOCKS5)", ErrNotSOCKS5},
		{StatusCannotConnect, "cannot connect", ErrCannotConnect},
		{StatusTimeout, "timeout", ErrTimeout},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.str {
			t.Errorf("String() = %q, want %q", got, tt.str)
		}
		if err := tt.status.Err(); !errors.Is(err, tt.err) {
			t.Errorf("%v.Err() = %v, want %v", tt.status, err, tt.err)
		}
	}
	if Status(99).String() != "unknown" || Status(99).Err() == nil {
		t.Error("unexpected handling of unknown status")
	}
}

func TestHTTPClient(t *testing.T) {
	t.Parallel()

	client, err := NewClient("127.0.0.1:1080")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hc := client.HTTPClient(5 * time.Second)
	if hc.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", hc.Timeout)
	}
	if hc.Transport == nil {
		t.Fatal("expected a proxied transport")
	}
}
