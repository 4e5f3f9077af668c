// Package graph loads the harvested dataset into a property graph of
// playlists, tracks, artists, albums, countries and genre counts.
package graph

import (
	"github.com/rcong315/toptracks/internal/dataset"
)

// Node labels.
const (
	LabelPlaylists   = "Playlists"
	LabelTracks      = "Tracks"
	LabelArtists     = "Artists"
	LabelAlbums      = "Albums"
	LabelCountries   = "Countries"
	LabelGenreCounts = "GenreCounts"
)

// Relationship types.
const (
	RelPerforms        = "PERFORMS"
	RelCreates         = "CREATES"
	RelContains        = "CONTAINS"
	RelAddedTo         = "ADDED_TO"
	RelPopularIn       = "POPULAR_IN"
	RelIsType          = "IS_TYPE"
	RelCountryTracks   = "COUNTRY_TRACKS"
	RelCountryGenre    = "COUNTRY_GENRE"
	RelArtistPlaylists = "ARTIST_PLAYLISTS"
)

// Event is one upsert's parameters, keyed by graph property name.
type Event map[string]any

// NodeSpec describes one node-merge pass.
type NodeSpec struct {
	Label      string
	Key        string
	Constraint string
	File       string

	// ListProp is a string-list property that collects the event's value
	// of the same name on every merge instead of being set once.
	ListProp string
	// CounterProp starts at 1 on create and grows by 1 on every match.
	CounterProp string

	events func(rows []dataset.Row) []Event
}

// Events builds the pass's events from rows. Rows without a value for the
// identity key are counted as skipped.
func (s NodeSpec) Events(rows []dataset.Row) (events []Event, skipped int) {
	for _, e := range s.events(rows) {
		if k, _ := e[s.Key].(string); k == "" {
			skipped++
			continue
		}
		events = append(events, e)
	}
	return events, skipped
}

// Step is one hop of a shortcut path. Reverse walks the edge head to tail.
type Step struct {
	Type    string
	Reverse bool
}

// RelSpec describes one relationship pass. Direct passes join on node
// properties: FromProp on From equals ToProp on To, or, when one side is a
// list, contains the other. Shortcut passes compose two existing edges.
type RelSpec struct {
	Type string
	From string
	To   string
	File string

	FromProp string
	ToProp   string

	Path []Step
}

// Shortcut reports whether the pass is derived by traversal.
func (r RelSpec) Shortcut() bool {
	return len(r.Path) > 0
}

// trackStatProps are the numeric track properties used by analytics.
var trackStatProps = []string{
	"acousticness", "danceability", "duration", "energy", "instrumentalness",
	"key", "liveness", "loudness", "normTempo", "popularity", "speechiness",
	"tempo", "timeSignature", "valence",
}

// trackFeatureProps maps feature columns to Tracks property names.
var trackFeatureProps = map[string]string{
	dataset.FeatureKey:              "key",
	dataset.FeatureTempo:            "tempo",
	dataset.FeatureTimeSignature:    "timeSignature",
	dataset.FeatureValence:          "valence",
	dataset.FeatureLiveness:         "liveness",
	dataset.FeatureEnergy:           "energy",
	dataset.FeatureDanceability:     "danceability",
	dataset.FeatureLoudness:         "loudness",
	dataset.FeatureSpeechiness:      "speechiness",
	dataset.FeatureAcousticness:     "acousticness",
	dataset.FeatureInstrumentalness: "instrumentalness",
	dataset.FeatureMode:             "mode",
	dataset.FeatureDurationMS:       "duration",
}

// NodeSpecs lists the node passes in load order.
var NodeSpecs = []NodeSpec{
	{
		Label: LabelPlaylists, Key: "playlistID", Constraint: "con_playlistID", File: "playlists",
		ListProp: "trackID",
		events: func(rows []dataset.Row) []Event {
			events := make([]Event, 0, len(rows))
			for _, r := range rows {
				events = append(events, Event{
					"playlistID":   r.PlaylistID,
					"playlistName": r.PlaylistName,
					"countryCode":  r.CountryCode,
					"trackID":      r.TrackID,
				})
			}
			return events
		},
	},
	{
		Label: LabelTracks, Key: "trackID", Constraint: "con_trackID", File: "tracks",
		events: func(rows []dataset.Row) []Event {
			events := make([]Event, 0, len(rows))
			for _, r := range rows {
				events = append(events, trackEvent(r))
			}
			return events
		},
	},
	{
		Label: LabelArtists, Key: "artistID", Constraint: "con_artistID", File: "artists",
		events: func(rows []dataset.Row) []Event {
			events := make([]Event, 0, len(rows))
			for _, r := range rows {
				events = append(events, Event{"artistID": r.ArtistID, "artistName": r.Artist})
			}
			return events
		},
	},
	{
		Label: LabelAlbums, Key: "albumID", Constraint: "con_albumID", File: "albums",
		events: func(rows []dataset.Row) []Event {
			events := make([]Event, 0, len(rows))
			for _, r := range rows {
				events = append(events, Event{"albumID": r.AlbumID, "albumName": r.Album, "artistID": r.ArtistID})
			}
			return events
		},
	},
	{
		Label: LabelCountries, Key: "countryCode", Constraint: "con_countryCode", File: "countries",
		events: func(rows []dataset.Row) []Event {
			events := make([]Event, 0, len(rows))
			for _, r := range rows {
				events = append(events, Event{"countryCode": r.CountryCode, "country": r.Country})
			}
			return events
		},
	},
	{
		Label: LabelGenreCounts, Key: "genreName", Constraint: "con_genreName", File: "genre_counts",
		CounterProp: "totalSongs",
		events:      genreEvents,
	},
}

// RelSpecs lists the relationship passes in load order. Every shortcut
// comes after the passes its path walks.
var RelSpecs = []RelSpec{
	{Type: RelPerforms, From: LabelArtists, To: LabelTracks, File: "performs", FromProp: "artistID", ToProp: "artistID"},
	{Type: RelCreates, From: LabelArtists, To: LabelAlbums, File: "creates", FromProp: "artistID", ToProp: "artistID"},
	{Type: RelContains, From: LabelAlbums, To: LabelTracks, File: "contains", FromProp: "albumID", ToProp: "albumID"},
	{Type: RelAddedTo, From: LabelTracks, To: LabelPlaylists, File: "added_to", FromProp: "trackID", ToProp: "trackID"},
	{Type: RelPopularIn, From: LabelPlaylists, To: LabelCountries, File: "popular_in", FromProp: "countryCode", ToProp: "countryCode"},
	{Type: RelIsType, From: LabelTracks, To: LabelGenreCounts, File: "is_type", FromProp: "genre", ToProp: "genreName"},
	{
		Type: RelCountryTracks, From: LabelCountries, To: LabelTracks, File: "country_tracks",
		Path: []Step{{Type: RelPopularIn, Reverse: true}, {Type: RelAddedTo, Reverse: true}},
	},
	{
		Type: RelCountryGenre, From: LabelCountries, To: LabelGenreCounts, File: "country_genre",
		Path: []Step{{Type: RelCountryTracks}, {Type: RelIsType}},
	},
	{
		Type: RelArtistPlaylists, From: LabelArtists, To: LabelPlaylists, File: "artist_playlists",
		Path: []Step{{Type: RelPerforms}, {Type: RelAddedTo}},
	},
}

func trackEvent(r dataset.Row) Event {
	e := Event{
		"trackID":    r.TrackID,
		"trackName":  r.TrackName,
		"artistID":   r.ArtistID,
		"albumID":    r.AlbumID,
		"explicit":   r.Explicit,
		"popularity": int64(r.Popularity),
		"genre":      append([]string{}, r.Genres...),
		"normTempo":  nil,
	}
	for col, prop := range trackFeatureProps {
		v, ok := r.Features.Get(col)
		switch {
		case !ok:
			e[prop] = nil
		case dataset.IsIntegerFeature(col):
			e[prop] = int64(v)
		default:
			e[prop] = v
		}
	}
	if r.NormTempo != nil {
		e["normTempo"] = *r.NormTempo
	}
	return e
}

// genreEvents emits one event per distinct genre of each distinct track,
// taking a track's genres from its first row the way the Tracks pass
// keeps its first-seen attributes. Counts do not depend on row order.
func genreEvents(rows []dataset.Row) []Event {
	seen := make(map[string]bool)
	var events []Event
	for _, r := range rows {
		if r.Placeholder || r.TrackID == "" || seen[r.TrackID] {
			continue
		}
		seen[r.TrackID] = true
		tags := make(map[string]bool, len(r.Genres))
		for _, g := range r.Genres {
			if g == "" || tags[g] {
				continue
			}
			tags[g] = true
			events = append(events, Event{"genreName": g})
		}
	}
	return events
}
