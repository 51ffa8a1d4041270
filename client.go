// Package vistream provides a Go SDK for the ViStream video-sharing API.
//
// The SDK centers on an authenticated HTTP transport that attaches the
// bearer access token to every request, transparently renews it when it is
// expired or rejected, and replays a 401-failed request exactly once.
// Resource gateways (video feed, playlists, watch later) are thin typed
// façades over that transport; concrete implementations are injected via
// Option functions, keeping the root package free of wiring.
//
// Most callers want the rest package, which assembles everything:
//
//	client, err := rest.Connect(vistream.Config{BaseURL: "https://api.example.com/api/v1"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	page, err := client.Feed().List(ctx, vistream.ListOptions{Limit: 8})
package vistream

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Client is the main entry point for ViStream operations.
// Service implementations are injected via Option functions.
type Client struct {
	config    Config
	logger    *slog.Logger
	store     TokenStore
	refresher TokenRefresher
	feed      FeedService
	playlists PlaylistService
	watch     WatchLaterService
	users     UserService
}

// Config holds connection and behavior configuration.
type Config struct {
	// BaseURL is the server base URL all endpoint paths resolve against,
	// e.g. "https://api.example.com/api/v1".
	BaseURL string `toml:"base_url"`

	// RequestTimeout bounds a single API request. Default: 30 seconds.
	// Uploads are exempt and bounded by the transport only.
	RequestTimeout time.Duration `toml:"request_timeout"`

	// RefreshTimeout bounds the token renewal round trip. Default: 10 seconds.
	RefreshTimeout time.Duration `toml:"refresh_timeout"`

	// TokenSkew is the safety margin subtracted from the access token
	// lifetime so it is renewed before it expires mid-flight.
	// Default: 60 seconds.
	TokenSkew time.Duration `toml:"token_skew"`

	// TokenStorePath, when set, persists credentials to a file at this
	// path. Empty means in-memory only.
	TokenStorePath string `toml:"token_store_path"`

	// RateLimit caps outgoing requests per second. Zero disables
	// client-side limiting.
	RateLimit float64 `toml:"rate_limit"`

	// RateBurst is the burst size for the rate limiter. Default: 1 when
	// RateLimit is set.
	RateBurst int `toml:"rate_burst"`

	// MetricsEnabled registers Prometheus metrics for SDK operations.
	MetricsEnabled bool `toml:"metrics_enabled"`
}

// Defaults applied by NewClient.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultRefreshTimeout = 10 * time.Second
	DefaultTokenSkew      = 60 * time.Second
)

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a structured logger for the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTokenStore sets the credential store implementation.
func WithTokenStore(s TokenStore) Option {
	return func(c *Client) { c.store = s }
}

// WithRefresher sets the token renewal implementation.
func WithRefresher(r TokenRefresher) Option {
	return func(c *Client) { c.refresher = r }
}

// WithFeedService sets the video feed implementation.
func WithFeedService(f FeedService) Option {
	return func(c *Client) { c.feed = f }
}

// WithPlaylistService sets the playlist implementation.
func WithPlaylistService(p PlaylistService) Option {
	return func(c *Client) { c.playlists = p }
}

// WithWatchLaterService sets the watch-later implementation.
func WithWatchLaterService(w WatchLaterService) Option {
	return func(c *Client) { c.watch = w }
}

// WithUserService sets the user profile implementation.
func WithUserService(u UserService) Option {
	return func(c *Client) { c.users = u }
}

// NewClient creates a new ViStream client with the given configuration and
// options. Service implementations must be injected; see the rest package
// for the standard wiring.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("vistream: BaseURL is required")
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RefreshTimeout == 0 {
		cfg.RefreshTimeout = DefaultRefreshTimeout
	}
	if cfg.TokenSkew == 0 {
		cfg.TokenSkew = DefaultTokenSkew
	}
	if cfg.RateLimit > 0 && cfg.RateBurst == 0 {
		cfg.RateBurst = 1
	}

	c := &Client{config: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Config returns the client configuration.
func (c *Client) Config() Config { return c.config }

// Logger returns the client's structured logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// TokenStore returns the credential store, or nil if not configured.
func (c *Client) TokenStore() TokenStore { return c.store }

// Refresher returns the token renewal service, or nil if not configured.
func (c *Client) Refresher() TokenRefresher { return c.refresher }

// Feed returns the video feed service, or nil if not configured.
func (c *Client) Feed() FeedService { return c.feed }

// Playlists returns the playlist service, or nil if not configured.
func (c *Client) Playlists() PlaylistService { return c.playlists }

// WatchLater returns the watch-later service, or nil if not configured.
func (c *Client) WatchLater() WatchLaterService { return c.watch }

// Users returns the user profile service, or nil if not configured.
func (c *Client) Users() UserService { return c.users }

// SignOut clears the stored credentials. The server-side session, if any,
// is untouched.
func (c *Client) SignOut() error {
	if c.store == nil {
		return nil
	}
	return c.store.Clear()
}

// Close releases all resources held by the client.
// Any injected service that implements io.Closer will be closed.
func (c *Client) Close() error {
	closers := []interface{}{
		c.store, c.refresher, c.feed,
		c.playlists, c.watch, c.users,
	}
	var firstErr error
	for _, svc := range closers {
		if cl, ok := svc.(io.Closer); ok && cl != nil {
			if err := cl.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
