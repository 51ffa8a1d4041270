// Package feed provides the video feed gateway.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	vistream "github.com/vistream/vistream-go"
	"github.com/vistream/vistream-go/transport"
)

// Listing defaults and bounds.
const (
	DefaultLimit    = 12
	MaxLimit        = 100
	DefaultSortBy   = "createdAt"
	DefaultSortType = "desc"
)

// Service implements vistream.FeedService over the REST API.
type Service struct {
	transport *transport.Client
}

// compile-time check
var _ vistream.FeedService = (*Service)(nil)

// New creates a feed gateway over the given transport.
func New(t *transport.Client) *Service {
	return &Service{transport: t}
}

// List returns one page of videos. With UserID set it lists a single
// channel's uploads, which the server returns as a bare array; both
// response shapes are normalized to a VideoPage.
func (s *Service) List(ctx context.Context, opts vistream.ListOptions) (*vistream.VideoPage, error) {
	opts = withDefaults(opts)
	if err := validate(opts); err != nil {
		return nil, err
	}

	query := url.Values{
		"page":     {strconv.Itoa(opts.Page)},
		"limit":    {strconv.Itoa(opts.Limit)},
		"sortBy":   {opts.SortBy},
		"sortType": {opts.SortType},
	}
	if opts.Query != "" {
		query.Set("query", opts.Query)
	}

	if opts.UserID != "" {
		return s.listChannel(ctx, opts, query)
	}
	return s.listHome(ctx, opts, query)
}

// listHome fetches the site-wide feed, which arrives as {videos, pagination}.
func (s *Service) listHome(ctx context.Context, opts vistream.ListOptions, query url.Values) (*vistream.VideoPage, error) {
	resp, err := s.transport.Get(ctx, "/videos/get-all-videos", query)
	if err != nil {
		return nil, fmt.Errorf("vistream/feed: list: %w", err)
	}

	var data struct {
		Videos     []vistream.Video `json:"videos"`
		Pagination *vistream.Page   `json:"pagination"`
	}
	if err := resp.Decode(&data); err != nil {
		return nil, fmt.Errorf("vistream/feed: list: %w", err)
	}

	page := vistream.Page{Page: opts.Page, Limit: opts.Limit, Total: len(data.Videos)}
	if data.Pagination != nil {
		page = *data.Pagination
	} else if resp.Pagination != nil {
		page = *resp.Pagination
	}

	return &vistream.VideoPage{Videos: data.Videos, Page: page}, nil
}

// listChannel fetches one user's uploads. The server answers with a bare
// array, so the page descriptor is synthesized from the request.
func (s *Service) listChannel(ctx context.Context, opts vistream.ListOptions, query url.Values) (*vistream.VideoPage, error) {
	resp, err := s.transport.Get(ctx, "/videos/get-videos-of-user/"+url.PathEscape(opts.UserID), query)
	if err != nil {
		return nil, fmt.Errorf("vistream/feed: list user %s: %w", opts.UserID, err)
	}

	var videos []vistream.Video
	if err := resp.Decode(&videos); err != nil {
		// Tolerate servers that wrap the channel listing after all.
		var data struct {
			Videos     []vistream.Video `json:"videos"`
			Pagination *vistream.Page   `json:"pagination"`
		}
		if err2 := json.Unmarshal(resp.Data, &data); err2 != nil {
			return nil, fmt.Errorf("vistream/feed: list user %s: %w", opts.UserID, err)
		}
		page := vistream.Page{Page: opts.Page, Limit: opts.Limit, Total: len(data.Videos)}
		if data.Pagination != nil {
			page = *data.Pagination
		}
		return &vistream.VideoPage{Videos: data.Videos, Page: page}, nil
	}

	return &vistream.VideoPage{
		Videos: videos,
		Page:   vistream.Page{Page: opts.Page, Limit: opts.Limit, Total: len(videos)},
	}, nil
}

// Get returns a single video by ID.
func (s *Service) Get(ctx context.Context, videoID string) (*vistream.Video, error) {
	if videoID == "" {
		return nil, &vistream.ValidationError{Field: "videoID", Reason: "required"}
	}

	resp, err := s.transport.Get(ctx, "/videos/get-video/"+url.PathEscape(videoID), nil)
	if err != nil {
		return nil, fmt.Errorf("vistream/feed: get video %s: %w", videoID, err)
	}

	var video vistream.Video
	if err := resp.Decode(&video); err != nil {
		return nil, fmt.Errorf("vistream/feed: get video %s: %w", videoID, err)
	}
	return &video, nil
}

func withDefaults(opts vistream.ListOptions) vistream.ListOptions {
	if opts.Page == 0 {
		opts.Page = 1
	}
	if opts.Limit == 0 {
		opts.Limit = DefaultLimit
	}
	if opts.SortBy == "" {
		opts.SortBy = DefaultSortBy
	}
	if opts.SortType == "" {
		opts.SortType = DefaultSortType
	}
	return opts
}

func validate(opts vistream.ListOptions) error {
	if opts.Limit < 1 || opts.Limit > MaxLimit {
		return &vistream.ValidationError{Field: "limit", Reason: fmt.Sprintf("must be between 1 and %d", MaxLimit)}
	}
	if opts.Page < 1 {
		return &vistream.ValidationError{Field: "page", Reason: "must be at least 1"}
	}
	if opts.SortType != "asc" && opts.SortType != "desc" {
		return &vistream.ValidationError{Field: "sortType", Reason: "must be asc or desc"}
	}
	return nil
}
