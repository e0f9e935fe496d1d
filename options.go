package audfeed

// This file defines functional options that configure the Client during
// construction. Keeping them in a standalone file avoids cluttering
// client.go and makes it easy to discover all available knobs at a glance.

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/audlabs/audfeed/internal/media"
	"github.com/audlabs/audfeed/internal/transport"
)

// Option configures a Client during construction in New.
//
// Options are applied before the CSRF transport wrapper is installed, so
// transport-related options (like debug logging) sit underneath it.
// Options must be deterministic and side-effect free.
type Option func(*Client) error

// WithHTTPTimeout sets the underlying http.Client Timeout used by the
// engine. Prefer per-request context deadlines where possible; this is a
// coarse safety net bounding one HTTP request end to end.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		c.http.Timeout = d
		return nil
	}
}

// WithDebugLogging wraps the client's transport so each request/response
// is dumped to the log when enabled is true.
func WithDebugLogging(enabled bool) Option {
	return func(c *Client) error {
		if enabled {
			base := c.http.Transport
			if base == nil {
				base = defaultBaseTransport()
			}
			c.http.Transport = &debugTransport{base: base}
		}
		return nil
	}
}

// WithLogger replaces the default logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) error {
		c.log = log
		return nil
	}
}

// WithSocketURL points the engine at the server push endpoint
// (ws:// or wss://). Without it the engine relies on the bus and
// rate-limited snapshot refreshes alone.
func WithSocketURL(url string) Option {
	return func(c *Client) error {
		c.socketURL = url
		return nil
	}
}

// WithRedis relays events between sessions through redis pub/sub instead
// of the in-process bus.
func WithRedis(rdb *redis.Client) Option {
	return func(c *Client) error {
		if rdb == nil {
			return fmt.Errorf("redis client must not be nil")
		}
		c.rdb = rdb
		return nil
	}
}

// WithBus installs a specific session bus, overriding both the redis and
// in-process defaults. Sessions sharing one bus converge with each other.
func WithBus(bus transport.Bus) Option {
	return func(c *Client) error {
		if bus == nil {
			return fmt.Errorf("bus must not be nil")
		}
		c.bus = bus
		return nil
	}
}

// WithStickiness overrides the window during which a remote update that
// contradicts a fresh local like/vote is ignored.
func WithStickiness(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return fmt.Errorf("stickiness must be >= 0")
		}
		c.stickiness = d
		return nil
	}
}

// WithDedupWindow overrides how long an event fingerprint suppresses
// duplicate deliveries.
func WithDedupWindow(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return fmt.Errorf("dedup window must be >= 0")
		}
		c.dedupWindow = d
		return nil
	}
}

// WithStatePath persists reconciled interaction state to path on Close
// and primes from it on Start.
func WithStatePath(path string) Option {
	return func(c *Client) error {
		c.statePath = path
		return nil
	}
}

// WithIdentity supplies the signed-in account's id and email for
// ownership checks. Both may be empty, in which case only items carrying
// an explicit ownership flag are treated as owned.
func WithIdentity(userID, email string) Option {
	return func(c *Client) error {
		c.userID = userID
		c.email = email
		return nil
	}
}

// WithLabelGate restricts which vote labels the account may use. Labels
// the gate rejects fail with ErrLabelLocked.
func WithLabelGate(gate func(label string) bool) Option {
	return func(c *Client) error {
		c.labelGate = gate
		return nil
	}
}

// WithPageSize sets how many items each feed page requests.
func WithPageSize(n int) Option {
	return func(c *Client) error {
		if n <= 0 {
			return fmt.Errorf("page size must be > 0")
		}
		c.pageSize = n
		return nil
	}
}

// WithoutShuffle disables per-page shuffling, giving server order.
func WithoutShuffle() Option {
	return func(c *Client) error {
		c.noShuffle = true
		return nil
	}
}

// WithMediaHooks installs the embedder's media callbacks (prefetch,
// play, pause).
func WithMediaHooks(hooks media.Hooks) Option {
	return func(c *Client) error {
		c.mediaHooks = hooks
		return nil
	}
}

// WithSnapshotRefreshRate bounds how often modal opens trigger an
// authoritative item refetch, in refreshes per second.
func WithSnapshotRefreshRate(perSecond float64) Option {
	return func(c *Client) error {
		if perSecond <= 0 {
			return fmt.Errorf("refresh rate must be > 0")
		}
		c.refreshRate = perSecond
		return nil
	}
}

// WithExecutor replaces the default sharded executor. Mainly for tests.
func WithExecutor(exec executor) Option {
	return func(c *Client) error {
		if exec == nil {
			return fmt.Errorf("executor must not be nil")
		}
		c.exec = exec
		return nil
	}
}
