// Package transport implements the authenticated HTTP client every gateway
// sends through.
//
// The client reads the access token from the store before each request,
// renews it up front when expiry prediction says it will not survive the
// round trip, and on a 401 renews once and replays the request exactly
// once. Renewal is delegated to a single-flight TokenRefresher, so a burst
// of rejected requests still produces one renewal round trip.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	vistream "github.com/vistream/vistream-go"
	"github.com/vistream/vistream-go/metrics"
	"github.com/vistream/vistream-go/token"
)

// Request describes one API call. It is immutable after dispatch; the body
// is carried as bytes so a 401-triggered replay can rebuild the request.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Header      http.Header
	Body        []byte
	ContentType string

	// Progress receives upload progress callbacks.
	Progress vistream.ProgressFunc

	// NoTimeout exempts the request from the per-request timeout. Used for
	// uploads, which are bounded by the transport alone.
	NoTimeout bool
}

// Response is a decoded API envelope.
type Response struct {
	Status     int
	Data       json.RawMessage
	Message    string
	Pagination *vistream.Page
}

// Decode unmarshals the envelope's data payload into out.
func (r *Response) Decode(out any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("vistream/transport: empty response data")
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("vistream/transport: decode response data: %w", err)
	}
	return nil
}

// Client sends authenticated requests to the ViStream API.
type Client struct {
	baseURL    string
	store      vistream.TokenStore
	refresher  vistream.TokenRefresher
	inspector  *token.Inspector
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	limiter    *rate.Limiter
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. The default carries a cookie
// jar so a cookie-borne refresh token set at sign-in keeps flowing.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Client) { t.httpClient = c }
}

// WithTimeout bounds a single request. Default: 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(t *Client) { t.timeout = d }
}

// WithInspector sets the expiry predictor.
func WithInspector(i *token.Inspector) Option {
	return func(t *Client) { t.inspector = i }
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Client) { t.logger = l }
}

// WithMetrics records request outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Client) { t.metrics = m }
}

// WithRateLimit caps outgoing requests client-side.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(t *Client) { t.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// New creates a transport client against baseURL. The store supplies the
// access token; the refresher renews it.
func New(baseURL string, store vistream.TokenStore, refresher vistream.TokenRefresher, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	t := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		store:      store,
		refresher:  refresher,
		inspector:  token.NewInspector(),
		httpClient: &http.Client{Jar: jar},
		timeout:    vistream.DefaultRequestTimeout,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// HTTPClient returns the underlying HTTP client, for sharing its cookie jar
// with the refresh coordinator.
func (t *Client) HTTPClient() *http.Client { return t.httpClient }

// Do sends one API request. It attaches the bearer token, renews it before
// dispatch when it is predicted to be expired, and on a 401 renews once and
// replays the request exactly once. A second 401 surfaces as
// vistream.ErrUnauthenticated.
func (t *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("vistream/transport: %w: %v", vistream.ErrCancelled, err)
	}
	req = guardProgress(req)
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("vistream/transport: %w: %v", vistream.ErrCancelled, err)
		}
	}

	accessToken, ok, err := t.store.Get(vistream.KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("vistream/transport: read access token: %w", err)
	}
	if !ok || accessToken == "" {
		return nil, fmt.Errorf("vistream/transport: %w: no access token", vistream.ErrUnauthenticated)
	}

	// Conservative pre-renewal: do not send a token that may expire in
	// flight. A malformed token counts as expired here.
	if t.inspector.Expired(accessToken) {
		accessToken, err = t.refresher.Renew(ctx)
		if err != nil {
			return nil, err
		}
	}

	resp, err := t.dispatch(ctx, req, accessToken)
	if err != nil {
		return nil, err
	}

	if resp.Status == http.StatusUnauthorized {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("vistream/transport: %w: %v", vistream.ErrCancelled, err)
		}
		accessToken, err = t.refresher.Renew(ctx)
		if err != nil {
			return nil, err
		}

		t.metrics.ObserveReplay()
		t.logger.Debug("replaying request after token renewal", "method", req.Method, "path", req.Path)
		resp, err = t.dispatch(ctx, req, accessToken)
		if err != nil {
			return nil, err
		}
		if resp.Status == http.StatusUnauthorized {
			return nil, fmt.Errorf("vistream/transport: %w: replay rejected", vistream.ErrUnauthenticated)
		}
	}

	return t.check(resp)
}

// check maps the HTTP status and envelope onto the error taxonomy.
func (t *Client) check(resp *Response) (*Response, error) {
	switch {
	case resp.Status == http.StatusForbidden:
		return nil, fmt.Errorf("vistream/transport: %w: %s", vistream.ErrForbidden, resp.Message)
	case resp.Status < 200 || resp.Status > 299:
		return nil, &vistream.APIError{Status: resp.Status, Message: resp.Message}
	}
	return resp, nil
}

// envelope is the uniform server response shape. Success is a pointer so
// its absence on a 2xx can be treated as success.
type envelope struct {
	Success    *bool           `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Pagination *vistream.Page  `json:"pagination"`
}

// dispatch performs one HTTP round trip and parses the envelope.
func (t *Client) dispatch(ctx context.Context, req *Request, accessToken string) (*Response, error) {
	if !req.NoTimeout && t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	fullURL := t.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		if req.Progress != nil {
			body = newProgressReader(req.Body, req.Progress)
		} else {
			body = bytes.NewReader(req.Body)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("vistream/transport: create request: %w", err)
	}
	if len(req.Body) > 0 {
		httpReq.ContentLength = int64(len(req.Body))
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	requestID := vistream.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set("X-Request-Id", requestID)

	start := time.Now()
	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
			return nil, fmt.Errorf("vistream/transport: %w: %v", vistream.ErrCancelled, err)
		}
		return nil, &vistream.NetworkError{URL: fullURL, Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &vistream.NetworkError{URL: fullURL, Err: err}
	}

	duration := time.Since(start)
	t.metrics.ObserveRequest(req.Method, codeClass(httpResp.StatusCode), duration.Seconds())
	t.logger.Debug("api request",
		"method", req.Method,
		"path", req.Path,
		"status", httpResp.StatusCode,
		"duration", duration,
		"request_id", requestID,
	)

	resp := &Response{Status: httpResp.StatusCode}
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && (env.Data != nil || env.Success != nil) {
		resp.Data = env.Data
		resp.Message = env.Message
		resp.Pagination = env.Pagination
		if env.Success != nil && !*env.Success && resp.Status >= 200 && resp.Status <= 299 {
			// Some endpoints report failure inside a 200 envelope.
			return nil, &vistream.APIError{Status: resp.Status, Message: env.Message}
		}
	} else {
		resp.Data = raw
	}

	if req.Progress != nil && resp.Status >= 200 && resp.Status <= 299 {
		req.Progress(1.0)
	}

	return resp, nil
}

// codeClass buckets a status code for metrics labels ("2xx", "4xx", ...).
func codeClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}

// Get sends a GET request.
func (t *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return t.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post sends a POST request with a JSON body.
func (t *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return t.sendJSON(ctx, http.MethodPost, path, body)
}

// Put sends a PUT request with a JSON body.
func (t *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return t.sendJSON(ctx, http.MethodPut, path, body)
}

// Delete sends a DELETE request.
func (t *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return t.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

func (t *Client) sendJSON(ctx context.Context, method, path string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("vistream/transport: encode request body: %w", err)
		}
	}
	return t.Do(ctx, &Request{
		Method:      method,
		Path:        path,
		Body:        payload,
		ContentType: "application/json",
	})
}

// Upload sends a prebuilt multipart body with progress reporting. The
// per-request timeout is disabled; uploads are bounded by the transport.
func (t *Client) Upload(ctx context.Context, method, path string, body []byte, contentType string, progress vistream.ProgressFunc) (*Response, error) {
	resp, err := t.Do(ctx, &Request{
		Method:      method,
		Path:        path,
		Body:        body,
		ContentType: contentType,
		Progress:    progress,
		NoTimeout:   true,
	})
	if err == nil {
		t.metrics.ObserveUploadBytes(int64(len(body)))
	}
	return resp, err
}
