package vistream

import "time"

// Video is a single video as returned by the ViStream API.
type Video struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Thumbnail   string    `json:"thumbnail"`
	VideoFile   string    `json:"videoFile"`
	Duration    float64   `json:"duration"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Playlist is a named, ordered collection of video IDs.
type Playlist struct {
	ID          string   `json:"_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
	VideoIDs    []string `json:"videos"`
	Owner       string   `json:"owner"`
}

// User is the authenticated user's profile.
type User struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar"`
}

// Page describes the server's pagination cursor for list responses.
type Page struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// VideoPage is a single page of a video listing.
type VideoPage struct {
	Videos []Video
	Page   Page
}

// HydrateItem is one slot of a hydrated playlist. Exactly one of Video or
// Err is set; failed lookups keep their position instead of aborting the
// whole hydration.
type HydrateItem struct {
	ID    string
	Video *Video
	Err   error
}

// HydratedPlaylist pairs a playlist with its resolved videos, in the order
// of Playlist.VideoIDs.
type HydratedPlaylist struct {
	Playlist *Playlist
	Items    []HydrateItem
}

// TokenPair is the credential pair issued at sign-in and rotated on refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
