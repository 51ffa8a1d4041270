package feed_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vistream "github.com/vistream/vistream-go"
	"github.com/vistream/vistream-go/feed"
	"github.com/vistream/vistream-go/tokenstore"
	"github.com/vistream/vistream-go/transport"
)

type noopRefresher struct{}

func (noopRefresher) Renew(context.Context) (string, error) {
	return "", vistream.ErrUnauthenticated
}

func newService(t *testing.T, handler http.Handler) *feed.Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	store := tokenstore.NewMemory()
	require.NoError(t, store.Put(vistream.KeyAccessToken, raw))

	return feed.New(transport.New(server.URL, store, noopRefresher{}))
}

func TestList_HomeFeed(t *testing.T) {
	var gotPath, gotQuery string
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"videos": []map[string]any{
					{"_id": "v1", "title": "First"},
					{"_id": "v2", "title": "Second"},
				},
				"pagination": map[string]any{"page": 2, "limit": 8, "total": 40, "hasMore": true},
			},
		})
	}))

	page, err := svc.List(context.Background(), vistream.ListOptions{Page: 2, Limit: 8})
	require.NoError(t, err)

	assert.Equal(t, "/videos/get-all-videos", gotPath)
	assert.Equal(t, "limit=8&page=2&sortBy=createdAt&sortType=desc", gotQuery)

	require.Len(t, page.Videos, 2)
	assert.Equal(t, "v1", page.Videos[0].ID)
	assert.Equal(t, vistream.Page{Page: 2, Limit: 8, Total: 40, HasMore: true}, page.Page)
}

func TestList_DefaultsApplied(t *testing.T) {
	var gotQuery string
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"videos": []any{}},
		})
	}))

	_, err := svc.List(context.Background(), vistream.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "limit=12&page=1&sortBy=createdAt&sortType=desc", gotQuery)
}

func TestList_SearchQueryForwarded(t *testing.T) {
	var gotQuery string
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"videos": []any{}},
		})
	}))

	_, err := svc.List(context.Background(), vistream.ListOptions{Query: "cat videos"})
	require.NoError(t, err)
	assert.Equal(t, "cat videos", gotQuery)
}

// A channel listing arrives as a bare array; the page descriptor is
// synthesized from the request.
func TestList_ChannelFeedBareArray(t *testing.T) {
	var gotPath string
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": []map[string]any{
				{"_id": "v7", "title": "Channel upload"},
			},
		})
	}))

	page, err := svc.List(context.Background(), vistream.ListOptions{UserID: "user-9", Limit: 5})
	require.NoError(t, err)

	assert.Equal(t, "/videos/get-videos-of-user/user-9", gotPath)
	require.Len(t, page.Videos, 1)
	assert.Equal(t, "v7", page.Videos[0].ID)
	assert.Equal(t, vistream.Page{Page: 1, Limit: 5, Total: 1}, page.Page)
}

func TestList_ChannelFeedWrappedShape(t *testing.T) {
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"videos":     []map[string]any{{"_id": "v8"}},
				"pagination": map[string]any{"page": 1, "limit": 12, "total": 30, "hasMore": true},
			},
		})
	}))

	page, err := svc.List(context.Background(), vistream.ListOptions{UserID: "user-9"})
	require.NoError(t, err)
	require.Len(t, page.Videos, 1)
	assert.True(t, page.Page.HasMore)
	assert.Equal(t, 30, page.Page.Total)
}

func TestList_Validation(t *testing.T) {
	var hits atomic.Int64
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))

	tests := []struct {
		name      string
		opts      vistream.ListOptions
		wantField string
	}{
		{"limit above cap", vistream.ListOptions{Limit: 101}, "limit"},
		{"negative limit", vistream.ListOptions{Limit: -1}, "limit"},
		{"negative page", vistream.ListOptions{Page: -3}, "page"},
		{"bad sort direction", vistream.ListOptions{SortType: "descending"}, "sortType"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.List(context.Background(), tt.opts)
			var verr *vistream.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
	assert.Zero(t, hits.Load(), "invalid options must not reach the network")
}

func TestList_LimitAtCapAccepted(t *testing.T) {
	var gotLimit string
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"videos": []any{}},
		})
	}))

	_, err := svc.List(context.Background(), vistream.ListOptions{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, "100", gotLimit)
}

func TestGet(t *testing.T) {
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/videos/get-video/v1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"_id": "v1", "title": "First", "duration": 12.5},
		})
	}))

	video, err := svc.Get(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", video.ID)
	assert.Equal(t, "First", video.Title)
	assert.Equal(t, 12.5, video.Duration)
}

func TestGet_EmptyID(t *testing.T) {
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))

	_, err := svc.Get(context.Background(), "")
	var verr *vistream.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "videoID", verr.Field)
}

func TestGet_NotFound(t *testing.T) {
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "video not found"})
	}))

	_, err := svc.Get(context.Background(), "gone")
	var apiErr *vistream.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "video not found", apiErr.Message)
}
