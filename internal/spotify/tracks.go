package spotify

import (
	"context"
	"strings"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-spotify-genome/internal/genome"
)

const (
	// maxTopTracksPerPage is the largest page Spotify serves for top items.
	maxTopTracksPerPage = 50

	// DefaultTopTracks is how many top tracks the genome is built from.
	DefaultTopTracks = 100
)

// TopTracks retrieves up to limit of the user's long-term top tracks in the
// order Spotify ranks them. Artists are joined by ", ".
func (c *Client) TopTracks(ctx context.Context, limit int) ([]genome.Track, error) {
	if limit <= 0 {
		limit = DefaultTopTracks
	}

	tracks := make([]genome.Track, 0, limit)
	for offset := 0; offset < limit; offset += maxTopTracksPerPage {
		pageSize := min(maxTopTracksPerPage, limit-offset)

		page, err := c.api.CurrentUsersTopTracks(ctx,
			spotify.Limit(pageSize),
			spotify.Offset(offset),
			spotify.Timerange(spotify.LongTermRange),
		)
		if err != nil {
			return nil, wrapError("fetching top tracks", err)
		}

		for _, t := range page.Tracks {
			tracks = append(tracks, convertTrack(t))
		}

		if page.Next == "" || len(page.Tracks) < pageSize {
			break
		}
	}

	return tracks, nil
}

// convertTrack converts a Spotify FullTrack to genome.Track.
func convertTrack(t spotify.FullTrack) genome.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	return genome.Track{
		ID:     t.ID.String(),
		Name:   t.Name,
		Artist: strings.Join(artists, ", "),
		Album:  t.Album.Name,
		URL:    t.ExternalURLs["spotify"],
	}
}
