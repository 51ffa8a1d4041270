// Package refresh renews the access token with single-flight semantics: no
// matter how many callers observe an expired or rejected token at once,
// exactly one renewal round trip is made and all callers share its result.
package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	vistream "github.com/vistream/vistream-go"
	"github.com/vistream/vistream-go/metrics"
)

// EndpointPath is the renewal endpoint, relative to the server base URL.
const EndpointPath = "/users/refresh-token"

// Coordinator implements vistream.TokenRefresher against the REST renewal
// endpoint.
type Coordinator struct {
	tokenURL   string
	store      vistream.TokenStore
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics

	sf singleflight.Group
}

// compile-time check
var _ vistream.TokenRefresher = (*Coordinator)(nil)

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithHTTPClient sets a custom HTTP client for renewal requests. Pass the
// same client the transport uses so a cookie-borne refresh token is sent.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Coordinator) { r.httpClient = c }
}

// WithTimeout bounds the renewal round trip. Default: 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(r *Coordinator) { r.timeout = d }
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Coordinator) { r.logger = l }
}

// WithMetrics records renewal outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Coordinator) { r.metrics = m }
}

// New creates a Coordinator renewing against baseURL+EndpointPath and
// persisting the rotated pair in store.
func New(baseURL string, store vistream.TokenStore, opts ...Option) *Coordinator {
	r := &Coordinator{
		tokenURL:   baseURL + EndpointPath,
		store:      store,
		httpClient: &http.Client{},
		timeout:    vistream.DefaultRefreshTimeout,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Renew returns a fresh access token, joining any renewal already in
// flight. A caller whose context is cancelled while waiting detaches with
// vistream.ErrCancelled; the shared renewal itself continues and is bounded
// only by the coordinator's own timeout.
func (r *Coordinator) Renew(ctx context.Context) (string, error) {
	ch := r.sf.DoChan("renew", func() (interface{}, error) {
		return r.renew()
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("vistream/refresh: %w: %v", vistream.ErrCancelled, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// tokenResponse covers both response shapes the server has been observed to
// use: the standard envelope with the pair under data, and the bare pair.
type tokenResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Data    struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"data"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// renew performs the single shared renewal round trip. It runs detached
// from caller contexts under the coordinator's own timeout, so one caller
// giving up does not abort the renewal everyone else is waiting on.
func (r *Coordinator) renew() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	tok, err := r.exchange(ctx)
	if err != nil {
		// A failed renewal leaves no usable credentials behind.
		if clearErr := r.store.Clear(); clearErr != nil {
			r.logger.Warn("clearing credentials after failed renewal", "error", clearErr)
		}
		r.metrics.ObserveRefresh("failure")
		r.logger.Warn("token renewal failed", "error", err)
		return "", fmt.Errorf("vistream/refresh: %w: %v", vistream.ErrUnauthenticated, err)
	}

	if err := r.store.Put(vistream.KeyAccessToken, tok.AccessToken); err != nil {
		return "", fmt.Errorf("vistream/refresh: store access token: %w", err)
	}
	if tok.RefreshToken != "" {
		if err := r.store.Put(vistream.KeyRefreshToken, tok.RefreshToken); err != nil {
			return "", fmt.Errorf("vistream/refresh: store refresh token: %w", err)
		}
	}

	r.metrics.ObserveRefresh("success")
	r.logger.Debug("access token renewed")
	return tok.AccessToken, nil
}

// exchange posts the refresh token and parses the rotated pair. The token
// is sent in the JSON body and, via the shared HTTP client's cookie jar,
// as a cookie when the server issued one at sign-in.
func (r *Coordinator) exchange(ctx context.Context) (*vistream.TokenPair, error) {
	refreshToken, _, err := r.store.Get(vistream.KeyRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("read refresh token: %w", err)
	}

	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("renewal request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("renewal endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if tr.Success != nil && !*tr.Success {
		return nil, fmt.Errorf("renewal rejected: %s", tr.Message)
	}

	pair := &vistream.TokenPair{
		AccessToken:  tr.Data.AccessToken,
		RefreshToken: tr.Data.RefreshToken,
	}
	if pair.AccessToken == "" {
		pair.AccessToken = tr.AccessToken
		pair.RefreshToken = tr.RefreshToken
	}
	if pair.AccessToken == "" {
		return nil, fmt.Errorf("empty accessToken in response")
	}
	return pair, nil
}
