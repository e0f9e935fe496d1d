// Package identity answers one question: does this item belong to the
// signed-in account? Owner-only affordances (delete) hang off the answer,
// so a wrong yes is worse than a wrong no.
package identity

import (
	"context"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/audlabs/audfeed/internal/types"
)

// Fetch loads the full item record when the feed payload was too thin to
// decide ownership locally.
type Fetch func(ctx context.Context, id string) (types.Item, error)

const ownershipTTL = 10 * time.Minute

// Resolver decides ownership in three tiers: an explicit server flag on
// the item, then a local compare against the session's user id or email,
// then a one-time enrichment fetch. Fetch results are cached and
// concurrent lookups for the same id collapse into one request.
type Resolver struct {
	userID string
	email  string
	fetch  Fetch
	group  singleflight.Group
	cache  *cache.Cache
	log    zerolog.Logger
}

// NewResolver builds a resolver for the signed-in account. fetch may be
// nil, in which case undecidable items resolve to not-mine.
func NewResolver(userID, email string, fetch Fetch, log zerolog.Logger) *Resolver {
	return &Resolver{
		userID: userID,
		email:  NormalizeEmail(email),
		fetch:  fetch,
		cache:  cache.New(ownershipTTL, 2*ownershipTTL),
		log:    log,
	}
}

// IsMineStrict decides from local evidence only. The second return is
// false when the item carries nothing to compare; the item living in the
// session's namespace is never treated as evidence.
func (r *Resolver) IsMineStrict(it types.Item) (mine, decided bool) {
	if it.Mine != nil {
		return *it.Mine, true
	}
	if it.User.ID != "" && r.userID != "" {
		return it.User.ID == r.userID, true
	}
	if it.User.Email != "" && r.email != "" {
		return NormalizeEmail(it.User.Email) == r.email, true
	}
	return false, false
}

// IsMine decides ownership, fetching the full item once if the local
// evidence is inconclusive. A failed fetch resolves to not-mine without
// caching, so a later call can retry.
func (r *Resolver) IsMine(ctx context.Context, it types.Item) bool {
	if mine, decided := r.IsMineStrict(it); decided {
		return mine
	}
	if r.fetch == nil || it.ID == "" {
		return false
	}
	if v, found := r.cache.Get(it.ID); found {
		return v.(bool)
	}

	v, err, _ := r.group.Do(it.ID, func() (interface{}, error) {
		full, err := r.fetch(ctx, it.ID)
		if err != nil {
			return false, err
		}
		mine, decided := r.IsMineStrict(full)
		if !decided {
			// The full record is equally thin. Cache the no so we do
			// not refetch an undecidable item on every repaint.
			mine = false
		}
		r.cache.SetDefault(it.ID, mine)
		return mine, nil
	})
	if err != nil {
		r.log.Debug().Err(err).Str("item", it.ID).Msg("identity: enrichment fetch failed")
		return false
	}
	return v.(bool)
}

// NormalizeEmail canonicalizes an address for comparison: lowercase,
// plus-tag stripped, and dots removed from the local part for gmail
// domains, where they are not significant.
func NormalizeEmail(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return addr
	}
	local, domain := addr[:at], addr[at+1:]
	if i := strings.IndexByte(local, '+'); i >= 0 {
		local = local[:i]
	}
	if domain == "gmail.com" || domain == "googlemail.com" {
		local = strings.ReplaceAll(local, ".", "")
		domain = "gmail.com"
	}
	return local + "@" + domain
}
