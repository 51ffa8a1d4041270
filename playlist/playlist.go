// Package playlist provides the playlist gateway: fetching, full hydration
// of the member videos, and multipart video upload into a playlist.
package playlist

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	vistream "github.com/vistream/vistream-go"
	"github.com/vistream/vistream-go/transport"
	"github.com/vistream/vistream-go/upload"
)

// MaxHydrateParallel caps concurrent video lookups during Hydrate.
const MaxHydrateParallel = 8

// Service implements vistream.PlaylistService over the REST API.
type Service struct {
	transport *transport.Client
}

// compile-time check
var _ vistream.PlaylistService = (*Service)(nil)

// New creates a playlist gateway over the given transport.
func New(t *transport.Client) *Service {
	return &Service{transport: t}
}

// Get returns a playlist by ID.
func (s *Service) Get(ctx context.Context, playlistID string) (*vistream.Playlist, error) {
	if playlistID == "" {
		return nil, &vistream.ValidationError{Field: "playlistID", Reason: "required"}
	}

	resp, err := s.transport.Get(ctx, "/playlists/getPlaylist/"+url.PathEscape(playlistID), nil)
	if err != nil {
		return nil, fmt.Errorf("vistream/playlist: get %s: %w", playlistID, err)
	}

	var pl vistream.Playlist
	if err := resp.Decode(&pl); err != nil {
		return nil, fmt.Errorf("vistream/playlist: get %s: %w", playlistID, err)
	}
	return &pl, nil
}

// Hydrate fetches the playlist and resolves every member video, preserving
// the order of Playlist.VideoIDs regardless of completion order. At most
// MaxHydrateParallel lookups run at once. A failed lookup becomes a
// HydrateItem with Err set in its slot; it never aborts the hydration.
func (s *Service) Hydrate(ctx context.Context, playlistID string) (*vistream.HydratedPlaylist, error) {
	pl, err := s.Get(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	items := make([]vistream.HydrateItem, len(pl.VideoIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxHydrateParallel)
	for i, id := range pl.VideoIDs {
		g.Go(func() error {
			video, err := s.getVideo(gctx, id)
			items[i] = vistream.HydrateItem{ID: id, Video: video, Err: err}
			return nil
		})
	}
	// Workers never return errors; per-video failures live in their slots.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("vistream/playlist: hydrate %s: %w: %v", playlistID, vistream.ErrCancelled, err)
	}

	return &vistream.HydratedPlaylist{Playlist: pl, Items: items}, nil
}

func (s *Service) getVideo(ctx context.Context, videoID string) (*vistream.Video, error) {
	resp, err := s.transport.Get(ctx, "/videos/get-video/"+url.PathEscape(videoID), nil)
	if err != nil {
		return nil, err
	}
	var video vistream.Video
	if err := resp.Decode(&video); err != nil {
		return nil, err
	}
	return &video, nil
}

// AddVideo validates the input client-side, then uploads it as multipart
// PUT to the playlist. The server both stores the video and appends it to
// the playlist; the created video is returned. Progress callbacks on
// in.Progress are monotone and end at 1.0 only on success.
func (s *Service) AddVideo(ctx context.Context, playlistID string, in vistream.AddVideoInput) (*vistream.Video, error) {
	if playlistID == "" {
		return nil, &vistream.ValidationError{Field: "playlistID", Reason: "required"}
	}
	if err := upload.Validate(in); err != nil {
		return nil, err
	}

	body, contentType, err := upload.Build(in)
	if err != nil {
		return nil, err
	}

	path := "/playlists/" + url.PathEscape(playlistID) + "/addVideoToPlaylist"
	resp, err := s.transport.Upload(ctx, http.MethodPut, path, body, contentType, in.Progress)
	if err != nil {
		return nil, fmt.Errorf("vistream/playlist: add video to %s: %w", playlistID, err)
	}

	var video vistream.Video
	if err := resp.Decode(&video); err != nil {
		return nil, fmt.Errorf("vistream/playlist: add video to %s: %w", playlistID, err)
	}
	return &video, nil
}
