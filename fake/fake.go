// Package fake provides in-memory implementations of all vistream service
// interfaces for testing.
//
// Use fake.NewClient() in unit tests to avoid network calls and external
// dependencies.
package fake

import (
	"context"
	"fmt"
	"sync"

	vistream "github.com/vistream/vistream-go"
	"github.com/vistream/vistream-go/tokenstore"
	"github.com/vistream/vistream-go/upload"
)

// Option configures the fake client.
type Option func(*state)

type state struct {
	mu        sync.RWMutex
	user      *vistream.User
	videos    map[string]*vistream.Video    // videoID → Video
	playlists map[string]*vistream.Playlist // playlistID → Playlist
	later     []string                      // watch-later videoIDs, most recent first
	nextID    int
}

// WithUser sets the authenticated user's profile.
func WithUser(id, username, email string) Option {
	return func(s *state) {
		s.user = &vistream.User{
			ID:       id,
			Username: username,
			Email:    email,
			FullName: username,
		}
	}
}

// WithVideo adds a fake video.
func WithVideo(v vistream.Video) Option {
	return func(s *state) {
		s.videos[v.ID] = &v
	}
}

// WithPlaylist adds a fake playlist.
func WithPlaylist(p vistream.Playlist) Option {
	return func(s *state) {
		s.playlists[p.ID] = &p
	}
}

// WithWatchLater seeds the watch-later list, most recent first.
func WithWatchLater(videoIDs ...string) Option {
	return func(s *state) {
		s.later = append(s.later, videoIDs...)
	}
}

// NewClient creates a *vistream.Client with all services wired to
// in-memory fakes and an in-memory token store pre-loaded with dummy
// credentials.
func NewClient(opts ...Option) *vistream.Client {
	s := &state{
		videos:    make(map[string]*vistream.Video),
		playlists: make(map[string]*vistream.Playlist),
	}
	for _, o := range opts {
		o(s)
	}

	store := tokenstore.NewMemory()
	_ = store.Put(vistream.KeyAccessToken, "fake-access-token")
	_ = store.Put(vistream.KeyRefreshToken, "fake-refresh-token")

	c, _ := vistream.NewClient(
		vistream.Config{BaseURL: "fake://localhost"},
		vistream.WithTokenStore(store),
		vistream.WithRefresher(&fakeRefresher{}),
		vistream.WithFeedService(&fakeFeed{s: s}),
		vistream.WithPlaylistService(&fakePlaylists{s: s}),
		vistream.WithWatchLaterService(&fakeWatchLater{s: s}),
		vistream.WithUserService(&fakeUsers{s: s}),
	)
	return c
}

// --- TokenRefresher ---

type fakeRefresher struct{}

func (f *fakeRefresher) Renew(_ context.Context) (string, error) {
	return "fake-access-token", nil
}

// --- FeedService ---

type fakeFeed struct{ s *state }

func (f *fakeFeed) List(_ context.Context, opts vistream.ListOptions) (*vistream.VideoPage, error) {
	f.s.mu.RLock()
	defer f.s.mu.RUnlock()

	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit < 1 {
		limit = 12
	}

	all := make([]vistream.Video, 0, len(f.s.videos))
	for _, v := range f.s.videos {
		if opts.UserID != "" && v.Owner != opts.UserID {
			continue
		}
		all = append(all, *v)
	}

	total := len(all)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &vistream.VideoPage{
		Videos: all[start:end],
		Page: vistream.Page{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasMore: end < total,
		},
	}, nil
}

func (f *fakeFeed) Get(_ context.Context, videoID string) (*vistream.Video, error) {
	f.s.mu.RLock()
	defer f.s.mu.RUnlock()

	v, ok := f.s.videos[videoID]
	if !ok {
		return nil, &vistream.APIError{Status: 404, Message: fmt.Sprintf("video %q not found", videoID)}
	}
	out := *v
	return &out, nil
}

// --- PlaylistService ---

type fakePlaylists struct{ s *state }

func (f *fakePlaylists) Get(_ context.Context, playlistID string) (*vistream.Playlist, error) {
	f.s.mu.RLock()
	defer f.s.mu.RUnlock()

	p, ok := f.s.playlists[playlistID]
	if !ok {
		return nil, &vistream.APIError{Status: 404, Message: fmt.Sprintf("playlist %q not found", playlistID)}
	}
	out := *p
	return &out, nil
}

func (f *fakePlaylists) Hydrate(ctx context.Context, playlistID string) (*vistream.HydratedPlaylist, error) {
	p, err := f.Get(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	f.s.mu.RLock()
	defer f.s.mu.RUnlock()

	items := make([]vistream.HydrateItem, len(p.VideoIDs))
	for i, id := range p.VideoIDs {
		if v, ok := f.s.videos[id]; ok {
			out := *v
			items[i] = vistream.HydrateItem{ID: id, Video: &out}
		} else {
			items[i] = vistream.HydrateItem{
				ID:  id,
				Err: &vistream.APIError{Status: 404, Message: fmt.Sprintf("video %q not found", id)},
			}
		}
	}
	return &vistream.HydratedPlaylist{Playlist: p, Items: items}, nil
}

func (f *fakePlaylists) AddVideo(_ context.Context, playlistID string, in vistream.AddVideoInput) (*vistream.Video, error) {
	if err := upload.Validate(in); err != nil {
		return nil, err
	}

	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	p, ok := f.s.playlists[playlistID]
	if !ok {
		return nil, &vistream.APIError{Status: 404, Message: fmt.Sprintf("playlist %q not found", playlistID)}
	}

	f.s.nextID++
	v := &vistream.Video{
		ID:          fmt.Sprintf("video-%d", f.s.nextID),
		Title:       in.Title,
		Description: in.Description,
		Owner:       f.ownerID(),
	}
	f.s.videos[v.ID] = v
	p.VideoIDs = append(p.VideoIDs, v.ID)

	if in.Progress != nil {
		in.Progress(1.0)
	}
	out := *v
	return &out, nil
}

func (f *fakePlaylists) ownerID() string {
	if f.s.user != nil {
		return f.s.user.ID
	}
	return "fake-user"
}

// --- WatchLaterService ---

type fakeWatchLater struct{ s *state }

func (f *fakeWatchLater) List(_ context.Context) ([]vistream.Video, error) {
	f.s.mu.RLock()
	defer f.s.mu.RUnlock()

	videos := make([]vistream.Video, 0, len(f.s.later))
	for _, id := range f.s.later {
		if v, ok := f.s.videos[id]; ok {
			videos = append(videos, *v)
		}
	}
	return videos, nil
}

func (f *fakeWatchLater) Remove(_ context.Context, videoID string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	for i, id := range f.s.later {
		if id == videoID {
			f.s.later = append(f.s.later[:i], f.s.later[i+1:]...)
			return nil
		}
	}
	// Removing an absent entry mirrors the server: success either way.
	return nil
}

func (f *fakeWatchLater) Clear(_ context.Context) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.later = nil
	return nil
}

// --- UserService ---

type fakeUsers struct{ s *state }

func (f *fakeUsers) Current(_ context.Context) (*vistream.User, error) {
	f.s.mu.RLock()
	defer f.s.mu.RUnlock()

	if f.s.user == nil {
		return nil, fmt.Errorf("vistream/fake: %w: no user configured", vistream.ErrUnauthenticated)
	}
	out := *f.s.user
	return &out, nil
}
