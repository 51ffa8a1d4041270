// Package watchlater provides the watch-later gateway.
package watchlater

import (
	"context"
	"fmt"
	"net/url"

	vistream "github.com/vistream/vistream-go"
	"github.com/vistream/vistream-go/transport"
)

// Service implements vistream.WatchLaterService over the REST API.
type Service struct {
	transport *transport.Client
}

// compile-time check
var _ vistream.WatchLaterService = (*Service)(nil)

// New creates a watch-later gateway over the given transport.
func New(t *transport.Client) *Service {
	return &Service{transport: t}
}

// List returns the authenticated user's watch-later videos, most recent
// first as the server keeps them.
func (s *Service) List(ctx context.Context) ([]vistream.Video, error) {
	resp, err := s.transport.Get(ctx, "/users/watch-later", nil)
	if err != nil {
		return nil, fmt.Errorf("vistream/watchlater: list: %w", err)
	}

	var videos []vistream.Video
	if err := resp.Decode(&videos); err != nil {
		return nil, fmt.Errorf("vistream/watchlater: list: %w", err)
	}
	return videos, nil
}

// Remove deletes one video from the list. Removing a video that is not on
// the list surfaces whatever the server decides, unchanged.
func (s *Service) Remove(ctx context.Context, videoID string) error {
	if videoID == "" {
		return &vistream.ValidationError{Field: "videoID", Reason: "required"}
	}

	if _, err := s.transport.Delete(ctx, "/users/watch-later/"+url.PathEscape(videoID)); err != nil {
		return fmt.Errorf("vistream/watchlater: remove %s: %w", videoID, err)
	}
	return nil
}

// Clear empties the entire list.
func (s *Service) Clear(ctx context.Context) error {
	if _, err := s.transport.Delete(ctx, "/users/watch-later"); err != nil {
		return fmt.Errorf("vistream/watchlater: clear: %w", err)
	}
	return nil
}
