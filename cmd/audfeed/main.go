// Command audfeed is a terminal front end for the feed engine: it pages
// the public feed, mirrors like/vote state live across sessions, and
// exposes one-shot interaction subcommands for scripting.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	audfeed "github.com/audlabs/audfeed"
)

// config is populated from AUD_* environment variables.
type config struct {
	BaseURL    string        `envconfig:"BASE_URL" required:"true"`
	NS         string        `envconfig:"NS" required:"true"`
	SocketURL  string        `envconfig:"SOCKET_URL"`
	RedisAddr  string        `envconfig:"REDIS_ADDR"`
	StatePath  string        `envconfig:"STATE_PATH"`
	UserID     string        `envconfig:"USER_ID"`
	Email      string        `envconfig:"EMAIL"`
	Stickiness time.Duration `envconfig:"STICKINESS"`
	PageSize   int           `envconfig:"PAGE_SIZE" default:"30"`
	Debug      bool          `envconfig:"DEBUG"`
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "audfeed",
		Short:         "aud: feed engine CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(watchCmd(), likeCmd(), voteCmd(), deleteCmd())
	return cmd
}

func buildClient(cfg config, log zerolog.Logger) *audfeed.Client {
	opts := []audfeed.Option{
		audfeed.WithLogger(log),
		audfeed.WithPageSize(cfg.PageSize),
		audfeed.WithIdentity(cfg.UserID, cfg.Email),
	}
	if cfg.SocketURL != "" {
		opts = append(opts, audfeed.WithSocketURL(cfg.SocketURL))
	}
	if cfg.RedisAddr != "" {
		opts = append(opts, audfeed.WithRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})))
	}
	if cfg.StatePath != "" {
		opts = append(opts, audfeed.WithStatePath(cfg.StatePath))
	}
	if cfg.Stickiness > 0 {
		opts = append(opts, audfeed.WithStickiness(cfg.Stickiness))
	}
	if cfg.Debug {
		opts = append(opts, audfeed.WithDebugLogging(true))
	}
	return audfeed.New(cfg.BaseURL, cfg.NS, opts...)
}

func setup() (config, zerolog.Logger, error) {
	var cfg config
	if err := envconfig.Process("aud", &cfg); err != nil {
		return cfg, zerolog.Logger{}, fmt.Errorf("config: %w", err)
	}
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	return cfg, log, nil
}

func watchCmd() *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream the feed and live interaction state to the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c := buildClient(cfg, log)
			defer func() { _ = c.Close() }()
			if err := c.Start(ctx); err != nil {
				return err
			}
			if label != "" {
				if err := c.SetLabelFilter(label); err != nil {
					return err
				}
			}
			if _, err := c.LoadMore(ctx); err != nil {
				return err
			}
			c.MountAllMedia(ctx)
			render(c)

			// Repaint on any state change of a loaded item.
			dirty := make(chan struct{}, 1)
			for _, card := range c.Cards() {
				c.Subscribe(card.ID, func() {
					select {
					case dirty <- struct{}{}:
					default:
					}
				})
			}
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-dirty:
					render(c)
				}
			}
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "only show items filtered to one vote label")
	return cmd
}

func render(c *audfeed.Client) {
	fmt.Print("\033[H\033[2J")
	for _, card := range c.Cards() {
		heart := " "
		if card.Liked {
			heart = "♥"
		}
		fmt.Printf("%s %-12s %3d likes  ", heart, card.ID, card.Likes)
		for _, lc := range card.Votes {
			marker := " "
			if card.MyChoice == lc.Label {
				marker = "*"
			}
			fmt.Printf("%s%s:%d ", marker, lc.Label, lc.Count)
		}
		fmt.Printf(" %s\n", card.Caption)
	}
}

func likeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "like <item-id>",
		Short: "Toggle the like on an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *audfeed.Client) error {
				if err := c.ToggleLike(ctx, args[0]); err != nil {
					return err
				}
				return c.AwaitConsistency(ctx, args[0])
			})
		},
	}
}

func voteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vote <item-id> <label>",
		Short: "Cast or clear a vote on an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *audfeed.Client) error {
				if err := c.CastVote(ctx, args[0], args[1]); err != nil {
					return err
				}
				return c.AwaitConsistency(ctx, args[0])
			})
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <item-id>",
		Short: "Delete an owned item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *audfeed.Client) error {
				return c.Delete(ctx, args[0])
			})
		},
	}
}

func withClient(ctx context.Context, fn func(context.Context, *audfeed.Client) error) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	c := buildClient(cfg, log)
	defer func() { _ = c.Close() }()
	if err := c.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, c)
}
