// Package api implements the REST operations of the aud: backend.
//
// The backend has grown several generations of endpoint shapes; every
// mutation here is expressed as an ordered fallback chain of candidate
// requests evaluated by Do until a validator accepts one. Callers receive
// a normalized Snapshot regardless of which generation answered.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/audlabs/audfeed/internal/apierrors"
	"github.com/audlabs/audfeed/internal/types"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 1 << 20

// Attempt describes one candidate request in a fallback chain.
type Attempt struct {
	Method string
	Path   string // relative, starts with "/"
	Query  url.Values
	JSON   any // optional request body, marshalled as JSON
}

// Validator reports whether a normalized response is internally consistent
// with the mutation that was requested. A nil return accepts the response.
type Validator func(types.Snapshot) error

// Do runs each attempt in order until one returns an acceptable response.
//
//   - Network errors abort the whole chain as recoverable: they would hit
//     every candidate equally, and the executor retries the chain later.
//   - 401 aborts as irrecoverable; the session-expiry path owns it.
//   - Any other non-2xx moves on to the next candidate (endpoint-shape
//     mismatch across backend generations).
//   - A 2xx whose body the validator rejects also moves on.
//
// When the chain is exhausted the last classified error is returned.
func Do(ctx context.Context, hc *http.Client, baseURL, operation string, attempts []Attempt, validate Validator) (types.Snapshot, error) {
	var lastErr error
	for i, a := range attempts {
		if err := ctx.Err(); err != nil {
			return types.Snapshot{}, err
		}
		if i > 0 {
			fallbackDepth.WithLabelValues(operation).Inc()
		}

		req, err := buildRequest(ctx, baseURL, a)
		if err != nil {
			return types.Snapshot{}, err
		}

		resp, err := hc.Do(req)
		if err != nil {
			return types.Snapshot{}, apierrors.NewNetworkError(operation, err)
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			return types.Snapshot{}, apierrors.NewHTTPError(resp.StatusCode, string(body), operation)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			lastErr = apierrors.NewHTTPError(resp.StatusCode, string(body), operation)
			continue
		}

		snap, err := types.Normalize(body)
		if err != nil {
			lastErr = fmt.Errorf("%s: malformed response: %w", operation, err)
			continue
		}
		if validate != nil {
			if err := validate(snap); err != nil {
				lastErr = fmt.Errorf("%s: inconsistent response: %w", operation, err)
				continue
			}
		}
		return snap, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%s: no endpoint candidates", operation)
	}
	return types.Snapshot{}, lastErr
}

func buildRequest(ctx context.Context, baseURL string, a Attempt) (*http.Request, error) {
	u := baseURL + a.Path
	if len(a.Query) > 0 {
		u += "?" + a.Query.Encode()
	}

	var body io.Reader
	if a.JSON != nil {
		buf, err := json.Marshal(a.JSON)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, a.Method, u, body)
	if err != nil {
		return nil, err
	}
	if a.JSON != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
