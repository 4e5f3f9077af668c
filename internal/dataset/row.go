// Package dataset defines the flat per-track record produced by a harvest
// and shared by the interchange writers and the graph loader.
package dataset

import (
	"math"
	"slices"
)

// Audio feature column names, in interchange order.
const (
	FeatureKey              = "key"
	FeatureTempo            = "tempo"
	FeatureTimeSignature    = "time_signature"
	FeatureValence          = "valence"
	FeatureLiveness         = "liveness"
	FeatureEnergy           = "energy"
	FeatureDanceability     = "danceability"
	FeatureLoudness         = "loudness"
	FeatureSpeechiness      = "speechiness"
	FeatureAcousticness     = "acousticness"
	FeatureInstrumentalness = "instrumentalness"
	FeatureMode             = "mode"
	FeatureDurationMS       = "duration_ms"
)

// FeatureColumns is the fixed feature vector layout.
var FeatureColumns = []string{
	FeatureKey,
	FeatureTempo,
	FeatureTimeSignature,
	FeatureValence,
	FeatureLiveness,
	FeatureEnergy,
	FeatureDanceability,
	FeatureLoudness,
	FeatureSpeechiness,
	FeatureAcousticness,
	FeatureInstrumentalness,
	FeatureMode,
	FeatureDurationMS,
}

var integerFeatures = map[string]bool{
	FeatureKey:           true,
	FeatureTimeSignature: true,
	FeatureMode:          true,
	FeatureDurationMS:    true,
}

// IsIntegerFeature reports whether a feature is integer valued upstream.
func IsIntegerFeature(name string) bool {
	return integerFeatures[name]
}

// IsFeature reports whether name is one of the 13 feature columns.
func IsFeature(name string) bool {
	return slices.Contains(FeatureColumns, name)
}

// Features maps a feature column to its value. An absent key is the
// missing-feature marker for that track.
type Features map[string]float64

// Get returns the value of a feature and whether it is present.
func (f Features) Get(name string) (float64, bool) {
	if f == nil {
		return 0, false
	}
	v, ok := f[name]
	return v, ok
}

// Set stores a feature value. Non-finite values are treated as missing.
func (f Features) Set(name string, v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		delete(f, name)
		return false
	}
	f[name] = v
	return true
}

// Tempo returns the tempo when present and positive.
func (f Features) Tempo() (float64, bool) {
	t, ok := f.Get(FeatureTempo)
	if !ok || t <= 0 {
		return 0, false
	}
	return t, true
}

// Row is one harvested track in the context of one playlist and region.
type Row struct {
	Artist       string
	ArtistID     string
	Album        string
	AlbumID      string
	TrackName    string
	TrackID      string
	Genres       []string
	Popularity   int
	Explicit     bool
	Features     Features
	NormTempo    *float64
	PlaylistID   string
	PlaylistName string
	CountryCode  string
	Country      string

	// Placeholder marks a row emitted for a track whose identity could not
	// be extracted. Every identity and metric field is empty.
	Placeholder bool
}

// PlaceholderRow returns the row emitted for an unreadable track.
func PlaceholderRow() Row {
	return Row{Placeholder: true, Features: Features{}}
}

// Columns is the interchange column order.
var Columns = buildColumns()

func buildColumns() []string {
	cols := []string{
		"artist", "artist_id", "album", "album_id", "track_name", "track_id",
		"genre", "popularity", "explicit",
	}
	cols = append(cols, FeatureColumns...)
	return append(cols, "norm_tempo", "playlist_id", "top_playlist_name", "country_code", "country")
}
