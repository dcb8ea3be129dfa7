package genome

import (
	"slices"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// StrandConfig holds strand clustering parameters.
type StrandConfig struct {
	NumStrands    int // Number of k-means clusters (default: 3)
	MinStrandSize int // Smaller clusters leave their tracks unassigned
}

// DefaultStrandConfig returns the recommended default configuration.
func DefaultStrandConfig() StrandConfig {
	return StrandConfig{
		NumStrands:    3,
		MinStrandSize: 2,
	}
}

// Strand is a group of tracks with a similar mood.
type Strand struct {
	Name        string
	Description string
	Color       string
	Centroid    map[string]float32 // Average feature values for this strand
	Size        int
}

// trackObservation wraps a track index to implement clusters.Observation.
type trackObservation struct {
	index  int
	coords clusters.Coordinates
}

func (o trackObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o trackObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// featureNames defines the audio features used for clustering.
var featureNames = []string{"energy", "valence", "danceability", "acousticness"}

// DetectStrands groups tracks by audio feature similarity using k-means.
// It returns the strands, largest first, and a map from track index to strand
// index. Tracks without audio features or in undersized clusters are absent
// from the map.
func DetectStrands(tracks []Track, cfg StrandConfig) ([]Strand, map[int]int) {
	assignment := make(map[int]int)

	if cfg.NumStrands <= 0 {
		cfg.NumStrands = DefaultStrandConfig().NumStrands
	}

	var obs clusters.Observations
	for i := range tracks {
		if hasAudioFeatures(&tracks[i]) {
			obs = append(obs, trackObservation{
				index:  i,
				coords: extractFeatures(&tracks[i]),
			})
		}
	}

	// Too few tracks with features to form the requested strands
	if len(obs) < cfg.NumStrands {
		return nil, assignment
	}

	result, err := kmeans.New().Partition(obs, cfg.NumStrands)
	if err != nil {
		return nil, assignment
	}

	type group struct {
		strand  Strand
		members []int
	}
	var groups []group

	for _, cluster := range result {
		var members []int
		for _, o := range cluster.Observations {
			if to, ok := o.(trackObservation); ok {
				members = append(members, to.index)
			}
		}

		if len(members) == 0 || len(members) < cfg.MinStrandSize {
			continue
		}

		centroid := make(map[string]float32, len(featureNames))
		for i, name := range featureNames {
			centroid[name] = float32(cluster.Center[i])
		}

		category := GetMoodCategory(centroid)
		groups = append(groups, group{
			strand: Strand{
				Name:        category.Name,
				Description: category.Description,
				Color:       Color(float64(centroid["energy"]), float64(centroid["valence"])),
				Centroid:    centroid,
				Size:        len(members),
			},
			members: members,
		})
	}

	// Largest strand first; ties keep the strand holding the highest ranked track first.
	slices.SortStableFunc(groups, func(a, b group) int {
		if a.strand.Size != b.strand.Size {
			return b.strand.Size - a.strand.Size
		}
		return slices.Min(a.members) - slices.Min(b.members)
	})

	strands := make([]Strand, len(groups))
	for si, g := range groups {
		strands[si] = g.strand
		for _, idx := range g.members {
			assignment[idx] = si
		}
	}

	return strands, assignment
}

// hasAudioFeatures checks if a track has the features required for clustering.
func hasAudioFeatures(t *Track) bool {
	return t.Energy != nil &&
		t.Valence != nil &&
		t.Danceability != nil &&
		t.Acousticness != nil
}

// extractFeatures returns the clustering features as a coordinate vector.
func extractFeatures(t *Track) clusters.Coordinates {
	return clusters.Coordinates{
		float64(*t.Energy),
		float64(*t.Valence),
		float64(*t.Danceability),
		float64(*t.Acousticness),
	}
}
