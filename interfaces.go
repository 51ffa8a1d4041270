package vistream

import (
	"context"
	"io"
)

// Token store keys. Nothing else is persisted client-side.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
)

// TokenStore persists the opaque credential strings. Operations are atomic
// per key; no ordering is promised across keys. Implementations must store
// only the opaque values, never decoded claims.
// Implementations: tokenstore/ (memory, file), fake/ (testing).
type TokenStore interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)

	// Put stores value under key, replacing any previous value.
	Put(key, value string) error

	// Delete removes key if present.
	Delete(key string) error

	// Clear removes all keys.
	Clear() error
}

// TokenRefresher renews the access token. Implementations must be
// single-flight: concurrent callers share one renewal round trip. On
// failure the credential store is cleared and the error matches
// ErrUnauthenticated.
type TokenRefresher interface {
	// Renew exchanges the refresh token for a new pair and returns the new
	// access token.
	Renew(ctx context.Context) (string, error)
}

// ProgressFunc receives upload progress as a fraction in [0,1]. Calls are
// monotonically non-decreasing; the final call is 1.0 exactly when the
// upload succeeded.
type ProgressFunc func(fraction float64)

// FileInput is one file of a multipart upload.
type FileInput struct {
	Name        string
	ContentType string
	Data        []byte
}

// AddVideoInput is the payload for uploading a video into a playlist.
type AddVideoInput struct {
	Title       string
	Description string
	VideoFile   FileInput
	Thumbnail   FileInput

	// Progress, when non-nil, receives upload progress callbacks.
	Progress ProgressFunc
}

// ListOptions selects and orders a page of the video feed.
type ListOptions struct {
	Page     int
	Limit    int
	SortBy   string
	SortType string
	Query    string

	// UserID switches the listing to a single channel's uploads.
	UserID string
}

// FeedService lists and fetches videos.
// Implementations: feed/ (REST), fake/ (testing).
type FeedService interface {
	// List returns one page of videos. Zero-valued options get defaults
	// (page 1, limit 12, createdAt desc).
	List(ctx context.Context, opts ListOptions) (*VideoPage, error)

	// Get returns a single video by ID.
	Get(ctx context.Context, videoID string) (*Video, error)
}

// PlaylistService fetches playlists and uploads videos into them.
// Implementations: playlist/ (REST), fake/ (testing).
type PlaylistService interface {
	// Get returns a playlist by ID.
	Get(ctx context.Context, playlistID string) (*Playlist, error)

	// Hydrate fetches a playlist and resolves each of its video IDs,
	// preserving order. Individual lookup failures are embedded in the
	// result, never returned as the overall error.
	Hydrate(ctx context.Context, playlistID string) (*HydratedPlaylist, error)

	// AddVideo uploads a video and adds it to the playlist.
	AddVideo(ctx context.Context, playlistID string, in AddVideoInput) (*Video, error)
}

// WatchLaterService manages the authenticated user's watch-later list.
// The server keeps the list most-recent-first.
// Implementations: watchlater/ (REST), fake/ (testing).
type WatchLaterService interface {
	List(ctx context.Context) ([]Video, error)
	Remove(ctx context.Context, videoID string) error
	Clear(ctx context.Context) error
}

// UserService provides the authenticated user's profile.
type UserService interface {
	// Current returns the user the access token belongs to.
	Current(ctx context.Context) (*User, error)
}

var _ io.Closer = (*Client)(nil)
