package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-spotify-genome/internal/genome"
)

const maxTracksPerRequest = 100

// FetchAudioFeatures retrieves audio features for the given tracks.
// Updates tracks in-place with their audio features.
// Batches requests to max 100 tracks per request per Spotify API limits.
// Tracks without available audio features keep nil feature fields.
func (c *Client) FetchAudioFeatures(ctx context.Context, tracks []genome.Track) error {
	if len(tracks) == 0 {
		return nil
	}

	// Build ID slice and index map for fast lookup
	ids := make([]spotify.ID, len(tracks))
	indexByID := make(map[string][]int, len(tracks))
	for i, t := range tracks {
		ids[i] = spotify.ID(t.ID)
		indexByID[t.ID] = append(indexByID[t.ID], i)
	}

	total := len(ids)

	for i := 0; i < total; i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, total)
		batch := ids[i:end]

		features, err := c.api.GetAudioFeatures(ctx, batch...)
		if err != nil {
			return wrapError(fmt.Sprintf("fetching audio features (batch %d-%d)", i+1, end), err)
		}

		// Map features back to tracks
		for _, f := range features {
			if f == nil {
				continue // Track has no audio features
			}
			for _, idx := range indexByID[f.ID.String()] {
				applyAudioFeatures(&tracks[idx], f)
			}
		}
	}

	return nil
}

// applyAudioFeatures copies the clustering features to a track.
func applyAudioFeatures(t *genome.Track, f *spotify.AudioFeatures) {
	energy, valence := f.Energy, f.Valence
	danceability, acousticness := f.Danceability, f.Acousticness

	t.Energy = &energy
	t.Valence = &valence
	t.Danceability = &danceability
	t.Acousticness = &acousticness
}
