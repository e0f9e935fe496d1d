package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/audlabs/audfeed/internal/apierrors"
	"github.com/audlabs/audfeed/internal/types"
)

// GetItem fetches the authoritative detail/snapshot for one item. Used for
// lazy author enrichment and for snapshot refreshes triggered by push
// events. Falls back from the items endpoint to the older gallery path.
func GetItem(ctx context.Context, hc *http.Client, baseURL, id string) (*types.Item, error) {
	item := url.PathEscape(id)
	var lastErr error
	for _, path := range []string{"/api/items/" + item, "/api/gallery/" + item} {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		resp, err := hc.Do(req)
		if err != nil {
			return nil, apierrors.NewNetworkError("item detail", err)
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			lastErr = apierrors.NewHTTPError(resp.StatusCode, string(body), "item detail")
			continue
		}
		var it types.Item
		if err := json.Unmarshal(body, &it); err != nil {
			lastErr = fmt.Errorf("item detail: %w", err)
			continue
		}
		if it.ID == "" {
			it.ID = id
		}
		return &it, nil
	}
	return nil, lastErr
}

// DeleteItem removes an item. Unlike the interaction mutations this error
// is surfaced to the caller: an optimistic removal that failed cannot be
// silently reversed without confusing the user.
func DeleteItem(ctx context.Context, hc *http.Client, baseURL, id string) error {
	item := url.PathEscape(id)
	attempts := []Attempt{
		{Method: http.MethodDelete, Path: "/api/items/" + item},
		{Method: http.MethodPost, Path: "/api/items/" + item + "/delete"},
		{Method: http.MethodPost, Path: "/api/delete", Query: url.Values{"item": {id}}},
	}
	_, err := Do(ctx, hc, baseURL, "delete", attempts, nil)
	return err
}
