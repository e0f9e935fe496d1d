package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/audlabs/audfeed/internal/apierrors"
	"github.com/audlabs/audfeed/internal/types"
)

// FetchPage retrieves one page of the public feed. The cursor is sent under
// both its current and legacy parameter names; servers read whichever they
// know. An empty label fetches every label.
func FetchPage(ctx context.Context, hc *http.Client, baseURL string, limit int, cursor, label string) (*types.FeedPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
		q.Set("after", cursor)
	}
	if label != "" {
		q.Set("label", label)
	}

	u := baseURL + "/api/gallery/public"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, apierrors.NewNetworkError("feed page", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		return nil, apierrors.NewHTTPError(resp.StatusCode, string(body), "feed page")
	}

	var page types.FeedPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, err
	}
	return &page, nil
}
