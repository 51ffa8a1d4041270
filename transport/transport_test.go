package transport_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	vistream "github.com/vistream/vistream-go"
	"github.com/vistream/vistream-go/refresh"
	"github.com/vistream/vistream-go/tokenstore"
	"github.com/vistream/vistream-go/transport"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func freshStore(t *testing.T, accessToken string) *tokenstore.Memory {
	t.Helper()
	store := tokenstore.NewMemory()
	if err := store.Put(vistream.KeyAccessToken, accessToken); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(vistream.KeyRefreshToken, "valid-refresh"); err != nil {
		t.Fatal(err)
	}
	return store
}

// stubRefresher satisfies vistream.TokenRefresher with a canned result.
type stubRefresher struct {
	calls atomic.Int64
	store vistream.TokenStore
	token string
	err   error
}

func (r *stubRefresher) Renew(_ context.Context) (string, error) {
	r.calls.Add(1)
	if r.err != nil {
		return "", r.err
	}
	if r.store != nil {
		_ = r.store.Put(vistream.KeyAccessToken, r.token)
	}
	return r.token, nil
}

func envelopeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func TestDo_AttachesBearerAndRequestID(t *testing.T) {
	var gotAuth, gotReqID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-Id")
		envelopeJSON(w, map[string]string{"ok": "yes"})
	}))
	defer server.Close()

	tok := signedToken(t, time.Now().Add(time.Hour))
	store := freshStore(t, tok)
	c := transport.New(server.URL, store, &stubRefresher{store: store})

	ctx := vistream.WithRequestID(context.Background(), "req-42")
	if _, err := c.Get(ctx, "/users/current-user", nil); err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	if gotAuth != "Bearer "+tok {
		t.Errorf("Authorization = %q, want bearer with stored token", gotAuth)
	}
	if gotReqID != "req-42" {
		t.Errorf("X-Request-Id = %q, want req-42", gotReqID)
	}
}

func TestDo_MintsRequestIDWhenAbsent(t *testing.T) {
	var gotReqID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = r.Header.Get("X-Request-Id")
		envelopeJSON(w, map[string]string{})
	}))
	defer server.Close()

	store := freshStore(t, signedToken(t, time.Now().Add(time.Hour)))
	c := transport.New(server.URL, store, &stubRefresher{store: store})

	if _, err := c.Get(context.Background(), "/x", nil); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if gotReqID == "" {
		t.Error("transport should mint an X-Request-Id when the context has none")
	}
}

func TestDo_NoToken(t *testing.T) {
	c := transport.New("http://unreachable.invalid", tokenstore.NewMemory(), &stubRefresher{})

	_, err := c.Get(context.Background(), "/x", nil)
	if !errors.Is(err, vistream.ErrUnauthenticated) {
		t.Fatalf("Get() error = %v, want ErrUnauthenticated", err)
	}
}

// Stale token: renewal happens before dispatch and the request carries the
// new bearer.
func TestDo_StaleTokenRenewedBeforeDispatch(t *testing.T) {
	newTok := signedToken(t, time.Now().Add(time.Hour))
	var gotAuth string
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		envelopeJSON(w, map[string]any{"videos": []any{}, "pagination": map[string]int{"page": 1}})
	}))
	defer server.Close()

	staleTok := signedToken(t, time.Now().Add(-time.Second))
	store := freshStore(t, staleTok)
	refresher := &stubRefresher{store: store, token: newTok}
	c := transport.New(server.URL, store, refresher)

	query := map[string][]string{
		"limit":    {"8"},
		"page":     {"1"},
		"sortBy":   {"createdAt"},
		"sortType": {"desc"},
	}
	if _, err := c.Get(context.Background(), "/videos/get-all-videos", query); err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	if got := refresher.calls.Load(); got != 1 {
		t.Errorf("renewals = %d, want 1", got)
	}
	if gotAuth != "Bearer "+newTok {
		t.Errorf("Authorization = %q, want the renewed token", gotAuth)
	}
	if gotQuery != "limit=8&page=1&sortBy=createdAt&sortType=desc" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestDo_StaleTokenRenewalFails(t *testing.T) {
	store := freshStore(t, signedToken(t, time.Now().Add(-time.Minute)))
	refresher := &stubRefresher{err: vistream.ErrUnauthenticated}
	c := transport.New("http://unreachable.invalid", store, refresher)

	_, err := c.Get(context.Background(), "/x", nil)
	if !errors.Is(err, vistream.ErrUnauthenticated) {
		t.Fatalf("Get() error = %v, want ErrUnauthenticated", err)
	}
}

// 401 storm: ten concurrent calls against a server that rejects the old
// token produce exactly one renewal round trip, then all replays succeed.
func TestDo_Concurrent401Storm(t *testing.T) {
	var refreshCalls, dataCalls atomic.Int64
	newTok := signedToken(t, time.Now().Add(time.Hour))

	mux := http.NewServeMux()
	mux.HandleFunc(refresh.EndpointPath, func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		time.Sleep(30 * time.Millisecond)
		envelopeJSON(w, map[string]string{"accessToken": newTok, "refreshToken": "rotated"})
	})
	mux.HandleFunc("/videos/get-all-videos", func(w http.ResponseWriter, r *http.Request) {
		dataCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+newTok {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "jwt expired"})
			return
		}
		envelopeJSON(w, map[string]any{"videos": []any{}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	// The old token still looks fresh client-side; the server has revoked it.
	// Its exp must differ from newTok's, or the two HS256 tokens are
	// byte-identical and the server never rejects the "old" one.
	store := freshStore(t, signedToken(t, time.Now().Add(30*time.Minute)))
	coordinator := refresh.New(server.URL, store)
	c := transport.New(server.URL, store, coordinator)

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Get(context.Background(), "/videos/get-all-videos", nil)
		}(i)
	}
	wg.Wait()

	if got := refreshCalls.Load(); got != 1 {
		t.Errorf("renewal round trips = %d, want exactly 1", got)
	}
	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d error: %v", i, err)
		}
	}
}

// A replayed request that gets a second 401 surfaces ErrUnauthenticated;
// exactly one replay happens.
func TestDo_SecondUnauthorizedStops(t *testing.T) {
	var dataCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dataCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := freshStore(t, signedToken(t, time.Now().Add(time.Hour)))
	refresher := &stubRefresher{store: store, token: signedToken(t, time.Now().Add(time.Hour))}
	c := transport.New(server.URL, store, refresher)

	_, err := c.Get(context.Background(), "/x", nil)
	if !errors.Is(err, vistream.ErrUnauthenticated) {
		t.Fatalf("Get() error = %v, want ErrUnauthenticated", err)
	}
	if got := dataCalls.Load(); got != 2 {
		t.Errorf("dispatches = %d, want 2 (original + one replay)", got)
	}
	if got := refresher.calls.Load(); got != 1 {
		t.Errorf("renewals = %d, want 1", got)
	}
}

func TestDo_RenewalFailureMeansNoReplay(t *testing.T) {
	var dataCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dataCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := freshStore(t, signedToken(t, time.Now().Add(time.Hour)))
	refresher := &stubRefresher{err: vistream.ErrUnauthenticated}
	c := transport.New(server.URL, store, refresher)

	_, err := c.Get(context.Background(), "/x", nil)
	if !errors.Is(err, vistream.ErrUnauthenticated) {
		t.Fatalf("Get() error = %v, want ErrUnauthenticated", err)
	}
	if got := dataCalls.Load(); got != 1 {
		t.Errorf("dispatches = %d, want 1 (no replay after failed renewal)", got)
	}
}

func TestDo_Forbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "not your playlist"})
	}))
	defer server.Close()

	store := freshStore(t, signedToken(t, time.Now().Add(time.Hour)))
	c := transport.New(server.URL, store, &stubRefresher{store: store})

	_, err := c.Get(context.Background(), "/x", nil)
	if !errors.Is(err, vistream.ErrForbidden) {
		t.Fatalf("Get() error = %v, want ErrForbidden", err)
	}
}

func TestDo_APIErrorCarriesServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "video not found"})
	}))
	defer server.Close()

	store := freshStore(t, signedToken(t, time.Now().Add(time.Hour)))
	c := transport.New(server.URL, store, &stubRefresher{store: store})

	_, err := c.Get(context.Background(), "/x", nil)
	var apiErr *vistream.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Get() error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Message != "video not found" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestDo_EnvelopeFailureInsideOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "upload rejected"})
	}))
	defer server.Close()

	store := freshStore(t, signedToken(t, time.Now().Add(time.Hour)))
	c := transport.New(server.URL, store, &stubRefresher{store: store})

	_, err := c.Get(context.Background(), "/x", nil)
	var apiErr *vistream.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Get() error = %v, want *APIError", err)
	}
	if apiErr.Message != "upload rejected" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestDo_MissingSuccessFieldIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"_id": "v1"}})
	}))
	defer server.Close()

	store := freshStore(t, signedToken(t, time.Now().Add(time.Hour)))
	c := transport.New(server.URL, store, &stubRefresher{store: store})

	resp, err := c.Get(context.Background(), "/x", nil)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	var out struct {
		ID string `json:"_id"`
	}
	if err := resp.Decode(&out); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if out.ID != "v1" {
		t.Errorf("decoded ID = %q", out.ID)
	}
}

func TestDo_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close() // nothing is listening anymore

	store := freshStore(t, signedToken(t, time.Now().Add(time.Hour)))
	c := transport.New(url, store, &stubRefresher{store: store})

	_, err := c.Get(context.Background(), "/x", nil)
	var netErr *vistream.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Get() error = %v, want *NetworkError", err)
	}
}

func TestDo_CancelledBeforeDispatch(t *testing.T) {
	var dataCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dataCalls.Add(1)
	}))
	defer server.Close()

	store := freshStore(t, signedToken(t, time.Now().Add(time.Hour)))
	c := transport.New(server.URL, store, &stubRefresher{store: store})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx, "/x", nil)
	if !errors.Is(err, vistream.ErrCancelled) {
		t.Fatalf("Get() error = %v, want ErrCancelled", err)
	}
	if dataCalls.Load() != 0 {
		t.Error("no I/O should happen after pre-dispatch cancellation")
	}
}

func TestDo_CancelledMidFlight(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	store := freshStore(t, signedToken(t, time.Now().Add(time.Hour)))
	c := transport.New(server.URL, store, &stubRefresher{store: store})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, "/x", nil)
		done <- err
	}()
	<-started
	cancel()

	if err := <-done; !errors.Is(err, vistream.ErrCancelled) {
		t.Fatalf("Get() error = %v, want ErrCancelled", err)
	}
}

func TestUpload_ProgressMonotoneEndingAtOne(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		envelopeJSON(w, map[string]string{"_id": "v-new"})
	}))
	defer server.Close()

	store := freshStore(t, signedToken(t, time.Now().Add(time.Hour)))
	c := transport.New(server.URL, store, &stubRefresher{store: store})

	var mu sync.Mutex
	var fractions []float64
	progress := func(f float64) {
		mu.Lock()
		fractions = append(fractions, f)
		mu.Unlock()
	}

	body := make([]byte, 1<<20)
	_, err := c.Upload(context.Background(), http.MethodPut, "/playlists/p1/addVideoToPlaylist", body, "multipart/form-data; boundary=x", progress)
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(fractions) == 0 {
		t.Fatal("no progress reported")
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] < fractions[i-1] {
			t.Fatalf("progress went backwards: %v then %v", fractions[i-1], fractions[i])
		}
	}
	if last := fractions[len(fractions)-1]; last != 1.0 {
		t.Errorf("final progress = %v, want 1.0", last)
	}
}

func TestUpload_NoFinalProgressOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "storage down"})
	}))
	defer server.Close()

	store := freshStore(t, signedToken(t, time.Now().Add(time.Hour)))
	c := transport.New(server.URL, store, &stubRefresher{store: store})

	var mu sync.Mutex
	var fractions []float64
	progress := func(f float64) {
		mu.Lock()
		fractions = append(fractions, f)
		mu.Unlock()
	}

	body := make([]byte, 1<<20)
	_, err := c.Upload(context.Background(), http.MethodPut, "/x", body, "multipart/form-data; boundary=x", progress)
	if err == nil {
		t.Fatal("Upload() expected error")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, f := range fractions {
		if f >= 1.0 {
			t.Errorf("progress reached %v on a failed upload", f)
		}
	}
}

func TestDo_RateLimitDelaysDispatch(t *testing.T) {
	var dataCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dataCalls.Add(1)
		envelopeJSON(w, map[string]string{})
	}))
	defer server.Close()

	store := freshStore(t, signedToken(t, time.Now().Add(time.Hour)))
	c := transport.New(server.URL, store, &stubRefresher{store: store},
		transport.WithRateLimit(20, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), "/x", nil); err != nil {
			t.Fatalf("Get() error: %v", err)
		}
	}
	// 20 rps with burst 1 forces ~50ms between the 3 calls.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("3 calls took %v, want rate limiting to spread them out", elapsed)
	}
	if dataCalls.Load() != 3 {
		t.Errorf("dataCalls = %d, want 3", dataCalls.Load())
	}
}
