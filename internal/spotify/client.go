// Package spotify provides a wrapper around the Spotify Web API.
package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// Client wraps the Spotify API client with convenience methods.
type Client struct {
	api *spotify.Client
}

// New creates a new Spotify client wrapper.
// The underlying client should already be authenticated.
func New(api *spotify.Client) *Client {
	return &Client{api: api}
}

// Identity is the authenticated user's profile.
type Identity struct {
	UserID      string
	DisplayName string
	Email       string
	Country     string
	ImageURL    string
}

// Profile fetches the current user's profile.
func (c *Client) Profile(ctx context.Context) (*Identity, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return nil, wrapError("getting current user", err)
	}

	id := &Identity{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Country:     user.Country,
	}
	if id.DisplayName == "" {
		id.DisplayName = user.ID
	}
	if len(user.Images) > 0 {
		id.ImageURL = user.Images[0].URL
	}
	return id, nil
}

// Token returns the token the client currently holds, which differs from the
// one it was created with after a refresh.
func (c *Client) Token() (*oauth2.Token, error) {
	token, err := c.api.Token()
	if err != nil {
		return nil, fmt.Errorf("reading client token: %w", err)
	}
	return token, nil
}
