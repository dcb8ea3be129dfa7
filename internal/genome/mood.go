package genome

// moodName creates a descriptive name from a centroid using a 2x2
// energy/valence grid. High acousticness (> 0.6) appends "(Acoustic)".
//
//   - High Energy + High Valence = "Euphoric"
//   - High Energy + Low Valence  = "Restless"
//   - Low Energy  + High Valence = "Sunlit"
//   - Low Energy  + Low Valence  = "Nocturnal"
func moodName(centroid map[string]float32) string {
	highEnergy := centroid["energy"] > 0.6
	highValence := centroid["valence"] > 0.5

	var name string
	switch {
	case highEnergy && highValence:
		name = "Euphoric"
	case highEnergy:
		name = "Restless"
	case highValence:
		name = "Sunlit"
	default:
		name = "Nocturnal"
	}

	if centroid["acousticness"] > 0.6 {
		return name + " (Acoustic)"
	}
	return name
}

// MoodCategory is a mood classification for display purposes.
type MoodCategory struct {
	Name        string
	Energy      float32
	Valence     float32
	Description string
}

// GetMoodCategory returns the mood category for a centroid.
func GetMoodCategory(centroid map[string]float32) MoodCategory {
	energy := centroid["energy"]
	valence := centroid["valence"]

	var description string
	switch {
	case energy > 0.6 && valence > 0.5:
		description = "Loud, bright and made for moving"
	case energy > 0.6:
		description = "Driving energy with a darker edge"
	case valence > 0.5:
		description = "Easygoing and warm"
	default:
		description = "Slow, moody and introspective"
	}

	return MoodCategory{
		Name:        moodName(centroid),
		Energy:      energy,
		Valence:     valence,
		Description: description,
	}
}
