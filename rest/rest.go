// Package rest wires the SDK against the ViStream REST API.
//
// It assembles the standard stack (token store, expiry inspector,
// single-flight refresh coordinator, authenticated transport, and the
// resource gateways) and injects it all into a vistream.Client:
//
//	client, err := rest.Connect(vistream.Config{
//	    BaseURL: "https://api.example.com/api/v1",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	page, err := client.Feed().List(ctx, vistream.ListOptions{Limit: 8})
package rest

import (
	"net/http"
	"net/http/cookiejar"

	vistream "github.com/vistream/vistream-go"
	"github.com/vistream/vistream-go/feed"
	"github.com/vistream/vistream-go/metrics"
	"github.com/vistream/vistream-go/playlist"
	"github.com/vistream/vistream-go/refresh"
	"github.com/vistream/vistream-go/token"
	"github.com/vistream/vistream-go/tokenstore"
	"github.com/vistream/vistream-go/transport"
	"github.com/vistream/vistream-go/user"
	"github.com/vistream/vistream-go/watchlater"
)

// Connect builds a fully wired client for the API at cfg.BaseURL. Extra
// options are applied before the standard wiring, so WithLogger and
// WithTokenStore are honored; the gateway services are always the REST
// implementations.
func Connect(cfg vistream.Config, opts ...vistream.Option) (*vistream.Client, error) {
	// Probe construction applies the config defaults and surfaces any
	// caller-supplied logger and store before the stack is built.
	probe, err := vistream.NewClient(cfg, opts...)
	if err != nil {
		return nil, err
	}
	cfg = probe.Config()
	logger := probe.Logger()

	store := probe.TokenStore()
	if store == nil {
		if cfg.TokenStorePath != "" {
			store, err = tokenstore.NewFile(cfg.TokenStorePath)
			if err != nil {
				return nil, err
			}
		} else {
			store = tokenstore.NewMemory()
		}
	}

	m := metrics.New(cfg.MetricsEnabled)

	// One HTTP client for transport and refresh, so the refresh-token
	// cookie issued at sign-in travels with renewal requests too.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Jar: jar}

	coordinator := refresh.New(cfg.BaseURL, store,
		refresh.WithHTTPClient(httpClient),
		refresh.WithTimeout(cfg.RefreshTimeout),
		refresh.WithLogger(logger),
		refresh.WithMetrics(m),
	)

	transportOpts := []transport.Option{
		transport.WithHTTPClient(httpClient),
		transport.WithTimeout(cfg.RequestTimeout),
		transport.WithInspector(token.NewInspector(token.WithSkew(cfg.TokenSkew))),
		transport.WithLogger(logger),
		transport.WithMetrics(m),
	}
	if cfg.RateLimit > 0 {
		transportOpts = append(transportOpts, transport.WithRateLimit(cfg.RateLimit, cfg.RateBurst))
	}
	t := transport.New(cfg.BaseURL, store, coordinator, transportOpts...)

	wired := append(opts,
		vistream.WithTokenStore(store),
		vistream.WithRefresher(coordinator),
		vistream.WithFeedService(feed.New(t)),
		vistream.WithPlaylistService(playlist.New(t)),
		vistream.WithWatchLaterService(watchlater.New(t)),
		vistream.WithUserService(user.New(t)),
	)
	return vistream.NewClient(cfg, wired...)
}
