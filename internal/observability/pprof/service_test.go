package pprof

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	logx "pomobridge/pkg/logx"
)

func get(t *testing.T, url, bearer string) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestReconfigureEnableDisable(t *testing.T) {
	s := New(logx.Nop())
	ctx := context.Background()
	t.Cleanup(func() { s.Stop(ctx) })

	if err := s.Reconfigure(ctx, Config{Enabled: true, Addr: "127.0.0.1:0"}); err != nil {
		t.Fatalf("enable: %v", err)
	}
	addr := s.Addr()
	if addr == "" {
		t.Fatal("expected a bound address")
	}
	if code := get(t, "http://"+addr+"/debug/pprof/", ""); code != http.StatusOK {
		t.Fatalf("index status = %d", code)
	}

	if err := s.Reconfigure(ctx, Config{Enabled: false}); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if got := s.Addr(); got != "" {
		t.Fatalf("expected listener closed, still on %s", got)
	}
}

func TestTokenAndPrefix(t *testing.T) {
	s := New(logx.Nop())
	ctx := context.Background()
	t.Cleanup(func() { s.Stop(ctx) })

	if err := s.Reconfigure(ctx, Config{Enabled: true, Addr: "127.0.0.1:0", Prefix: "dbg", Token: "secret"}); err != nil {
		t.Fatalf("enable: %v", err)
	}
	base := "http://" + s.Addr()

	tests := []struct {
		name   string
		url    string
		bearer string
		want   int
	}{
		{"no token", base + "/dbg/", "", http.StatusUnauthorized},
		{"wrong bearer", base + "/dbg/", "nope", http.StatusUnauthorized},
		{"bearer", base + "/dbg/", "secret", http.StatusOK},
		{"query token", base + "/dbg/?token=secret", "", http.StatusOK},
		{"healthz", base + "/healthz", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		if got := get(t, tt.url, tt.bearer); got != tt.want {
			t.Fatalf("%s: status = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestInsecureBindRefused(t *testing.T) {
	s := New(logx.Nop())
	err := s.Reconfigure(context.Background(), Config{Enabled: true, Addr: "0.0.0.0:0"})
	if !errors.Is(err, ErrInsecureBind) {
		t.Fatalf("err = %v, want ErrInsecureBind", err)
	}
	if s.Addr() != "" {
		t.Fatal("refused server must not listen")
	}
}

func TestHelpers(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{"": "/debug/pprof/", "dbg": "/dbg/", "/x/": "/x/"} {
		if got := normalizePrefix(in); got != want {
			t.Fatalf("normalizePrefix(%q) = %q, want %q", in, got, want)
		}
	}
	for addr, want := range map[string]bool{
		"127.0.0.1:6061": true,
		"localhost:1":    true,
		"[::1]:1":        true,
		":6061":          false,
		"10.0.0.1:1":     false,
		"garbage":        false,
	} {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}
