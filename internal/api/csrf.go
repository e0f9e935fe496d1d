package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// csrfHeaderName is the header state-changing requests must carry.
const csrfHeaderName = "X-CSRF-Token"

// CSRFTransport is an http.RoundTripper that attaches the CSRF token to
// every non-safe request. The token is fetched lazily from TokenURL and
// cached; a 403 response refreshes it once and retries the request exactly
// once.
type CSRFTransport struct {
	Base     http.RoundTripper
	TokenURL string

	mu    sync.Mutex
	token string
}

func (t *CSRFTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *CSRFTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if isSafeMethod(req.Method) {
		return t.base().RoundTrip(req)
	}

	token, err := t.ensureToken(req.Context())
	if err != nil {
		// Best effort: send without a token and let the server decide.
		token = ""
	}

	resp, err := t.send(req, token)
	if err != nil || resp.StatusCode != http.StatusForbidden {
		return resp, err
	}

	// Stale token. Refresh once and retry once.
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	csrfRefreshTotal.Inc()

	t.invalidate()
	token, err = t.ensureToken(req.Context())
	if err != nil {
		return nil, fmt.Errorf("csrf refresh: %w", err)
	}
	return t.send(req, token)
}

// send clones req so the original stays replayable and issues it with the
// token header set. A request whose body cannot be replayed is sent as-is;
// in practice every mutation here is built from a bytes.Reader so GetBody
// is always populated.
func (t *CSRFTransport) send(req *http.Request, token string) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	if token != "" {
		clone.Header.Set(csrfHeaderName, token)
	}
	return t.base().RoundTrip(clone)
}

func (t *CSRFTransport) ensureToken(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token != "" {
		return t.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.TokenURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("csrf token endpoint: status %d", resp.StatusCode)
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	t.token = payload.Token
	return t.token, nil
}

func (t *CSRFTransport) invalidate() {
	t.mu.Lock()
	t.token = ""
	t.mu.Unlock()
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
