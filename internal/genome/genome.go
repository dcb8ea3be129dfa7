// Package genome turns a listener's top tracks into the "genome" view model:
// the tracks in provider order, coloured by mood and grouped into strands.
package genome

import "fmt"

// Track is one top track with its optional audio features.
type Track struct {
	ID     string
	Name   string
	Artist string // Comma-separated artist names
	Album  string
	URL    string
	// Audio features (nil if not fetched or unavailable)
	Energy       *float32
	Valence      *float32
	Danceability *float32
	Acousticness *float32
}

// Gene is a track's position in the genome.
type Gene struct {
	Rank   int // 1-based position in the provider's ordering
	Track  Track
	Strand int    // Index into Genome.Strands, -1 when unassigned
	Color  string // CSS colour, empty when the track has no audio features
}

// Genome is the derived, read-only view of a listener's top tracks.
type Genome struct {
	Genes      []Gene
	Strands    []Strand
	Unassigned int // Genes that belong to no strand
}

// Build computes the genome for tracks. Genes keep the order of tracks.
func Build(tracks []Track, cfg StrandConfig) Genome {
	strands, assignment := DetectStrands(tracks, cfg)

	genes := make([]Gene, len(tracks))
	unassigned := 0
	for i, t := range tracks {
		strand, ok := assignment[i]
		if !ok {
			strand = -1
			unassigned++
		}

		genes[i] = Gene{
			Rank:   i + 1,
			Track:  t,
			Strand: strand,
			Color:  trackColor(&t),
		}
	}

	return Genome{
		Genes:      genes,
		Strands:    strands,
		Unassigned: unassigned,
	}
}

// Titles returns the track names in genome order.
func (g Genome) Titles() []string {
	titles := make([]string, len(g.Genes))
	for i, gene := range g.Genes {
		titles[i] = gene.Track.Name
	}
	return titles
}

// Color returns an HSL colour for an energy/valence pair in [0, 1].
// Energy maps to hue (cool indigo to warm orange), valence to saturation and lightness.
func Color(energy, valence float64) string {
	hue := 264 - (energy * 229)
	if hue < 0 {
		hue += 360
	}
	saturation := 60 + (valence * 40)
	lightness := 40 + (valence * 20)
	return fmt.Sprintf("hsl(%.0f, %.0f%%, %.0f%%)", hue, saturation, lightness)
}

func trackColor(t *Track) string {
	if t.Energy == nil || t.Valence == nil {
		return ""
	}
	return Color(float64(*t.Energy), float64(*t.Valence))
}
