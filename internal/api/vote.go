package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/audlabs/audfeed/internal/types"
)

type votePayload struct {
	Item  string `json:"item,omitempty"`
	Label string `json:"label"`
}

// Vote casts the session's single choice on an item. Endpoint generations,
// newest first: PUT with a label query, PUT with a JSON body, POST to the
// votes collection, then the legacy flat endpoint.
func Vote(ctx context.Context, hc *http.Client, baseURL, id, ns, label string) (types.Snapshot, error) {
	validate := func(s types.Snapshot) error {
		if s.My != nil && *s.My != "" && *s.My != label {
			return fmt.Errorf("server reported choice %q, requested %q", *s.My, label)
		}
		return nil
	}

	item := url.PathEscape(id)
	attempts := []Attempt{
		{Method: http.MethodPut, Path: "/api/items/" + item + "/vote", Query: url.Values{"label": {label}, "ns": {ns}}},
		{Method: http.MethodPut, Path: "/api/items/" + item + "/vote", JSON: votePayload{Label: label}},
		{Method: http.MethodPost, Path: "/api/items/" + item + "/votes", JSON: votePayload{Label: label}},
		{Method: http.MethodPost, Path: "/api/votes", JSON: votePayload{Item: id, Label: label}},
	}

	return Do(ctx, hc, baseURL, "vote", attempts, validate)
}

// Unvote clears the session's choice on an item.
func Unvote(ctx context.Context, hc *http.Client, baseURL, id, ns string) (types.Snapshot, error) {
	validate := func(s types.Snapshot) error {
		if s.My != nil && *s.My != "" {
			return fmt.Errorf("server still reports choice %q after unvote", *s.My)
		}
		return nil
	}

	item := url.PathEscape(id)
	attempts := []Attempt{
		{Method: http.MethodDelete, Path: "/api/items/" + item + "/vote", Query: url.Values{"ns": {ns}}},
		{Method: http.MethodDelete, Path: "/api/items/" + item + "/votes"},
		{Method: http.MethodDelete, Path: "/api/votes", Query: url.Values{"item": {id}}},
		{Method: http.MethodPost, Path: "/api/items/" + item + "/unvote"},
	}

	return Do(ctx, hc, baseURL, "unvote", attempts, validate)
}
