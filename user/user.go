// Package user provides the authenticated user's profile gateway.
package user

import (
	"context"
	"fmt"

	vistream "github.com/vistream/vistream-go"
	"github.com/vistream/vistream-go/transport"
)

// Service implements vistream.UserService over the REST API.
type Service struct {
	transport *transport.Client
}

// compile-time check
var _ vistream.UserService = (*Service)(nil)

// New creates a user gateway over the given transport.
func New(t *transport.Client) *Service {
	return &Service{transport: t}
}

// Current returns the user the access token belongs to. A
// vistream.ErrUnauthenticated result doubles as a session health check.
func (s *Service) Current(ctx context.Context) (*vistream.User, error) {
	resp, err := s.transport.Get(ctx, "/users/current-user", nil)
	if err != nil {
		return nil, fmt.Errorf("vistream/user: current: %w", err)
	}

	var u vistream.User
	if err := resp.Decode(&u); err != nil {
		return nil, fmt.Errorf("vistream/user: current: %w", err)
	}
	return &u, nil
}
