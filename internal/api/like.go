package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/audlabs/audfeed/internal/types"
)

// Like sets or clears the session's like on an item and returns whatever
// normalized state the accepting endpoint reported. The response is
// acceptable when its liked field is absent or agrees with the request;
// an explicit disagreement is treated as a shape mismatch and cascades to
// the next candidate.
func Like(ctx context.Context, hc *http.Client, baseURL, id, ns string, liked bool) (types.Snapshot, error) {
	validate := func(s types.Snapshot) error {
		if s.Liked != nil && *s.Liked != liked {
			return fmt.Errorf("server reported liked=%v, requested %v", *s.Liked, liked)
		}
		return nil
	}

	nsq := url.Values{"ns": {ns}}
	item := url.PathEscape(id)

	var attempts []Attempt
	if liked {
		attempts = []Attempt{
			{Method: http.MethodPut, Path: "/api/items/" + item + "/like", Query: nsq},
			{Method: http.MethodPut, Path: "/api/gallery/" + item + "/like"},
			{Method: http.MethodPost, Path: "/api/like", Query: url.Values{"item": {id}}},
		}
	} else {
		attempts = []Attempt{
			{Method: http.MethodDelete, Path: "/api/items/" + item + "/like", Query: nsq},
			{Method: http.MethodDelete, Path: "/api/gallery/" + item + "/like"},
			{Method: http.MethodPost, Path: "/api/unlike", Query: url.Values{"item": {id}}},
		}
	}

	return Do(ctx, hc, baseURL, "like", attempts, validate)
}
