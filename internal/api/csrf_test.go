package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newCSRFServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *http.Client, *int32) {
	t.Helper()
	var tokenFetches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/csrf" {
			n := atomic.AddInt32(&tokenFetches, 1)
			fmt.Fprintf(w, `{"token":"tok-%d"}`, n)
			return
		}
		handler(w, r)
	}))
	hc := &http.Client{Transport: &CSRFTransport{TokenURL: srv.URL + "/api/csrf"}}
	return srv, hc, &tokenFetches
}

func TestCSRF_TokenAttachedAndCached(t *testing.T) {
	t.Parallel()
	var got []string
	srv, hc, fetches := newCSRFServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("X-CSRF-Token"))
	})
	defer srv.Close()

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/api/like", nil)
		resp, err := hc.Do(req)
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
		_ = resp.Body.Close()
	}
	if n := atomic.LoadInt32(fetches); n != 1 {
		t.Fatalf("token fetched %d times, want 1 (cached)", n)
	}
	for _, tok := range got {
		if tok != "tok-1" {
			t.Fatalf("header = %q, want tok-1", tok)
		}
	}
}

func TestCSRF_SafeMethodSkipsToken(t *testing.T) {
	t.Parallel()
	srv, hc, fetches := newCSRFServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CSRF-Token") != "" {
			t.Error("GET should not carry a CSRF token")
		}
	})
	defer srv.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/api/gallery/public", nil)
	resp, err := hc.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	_ = resp.Body.Close()
	if n := atomic.LoadInt32(fetches); n != 0 {
		t.Fatalf("token fetched %d times for a GET, want 0", n)
	}
}

func TestCSRF_RefreshOnceOn403(t *testing.T) {
	t.Parallel()
	var mutations int32
	srv, hc, fetches := newCSRFServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != "payload" {
			t.Errorf("body not replayed on retry: %q", body)
		}
		if atomic.AddInt32(&mutations, 1) == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.Header.Get("X-CSRF-Token") != "tok-2" {
			t.Errorf("retry used stale token %q", r.Header.Get("X-CSRF-Token"))
		}
	})
	defer srv.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/api/like", bytes.NewReader([]byte("payload")))
	resp, err := hc.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d after refresh, want 200", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&mutations); n != 2 {
		t.Fatalf("mutation sent %d times, want 2 (original + one retry)", n)
	}
	if n := atomic.LoadInt32(fetches); n != 2 {
		t.Fatalf("token fetched %d times, want 2 (initial + refresh)", n)
	}
}

func TestCSRF_PersistentForbiddenNotRetriedTwice(t *testing.T) {
	t.Parallel()
	var mutations int32
	srv, hc, _ := newCSRFServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&mutations, 1)
		w.WriteHeader(http.StatusForbidden)
	})
	defer srv.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/api/like", nil)
	resp, err := hc.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 surfaced", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&mutations); n != 2 {
		t.Fatalf("mutation sent %d times, want exactly 2", n)
	}
}
