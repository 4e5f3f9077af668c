package spotify

// Page is one page of a cursor-paginated listing. Next is empty once the
// listing is exhausted.
type Page[T any] struct {
	Items []T
	Next  string
}

type PlaylistSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AlbumRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Track struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Artists    []ArtistRef `json:"artists"`
	Album      AlbumRef    `json:"album"`
	Popularity int         `json:"popularity"`
	Explicit   bool        `json:"explicit"`
}

// PlaylistItem is one entry of a playlist listing. Track is nil for
// entries whose track was removed from the catalog or is not a track.
type PlaylistItem struct {
	AddedAt string `json:"added_at,omitempty"`
	IsLocal bool   `json:"is_local,omitempty"`
	Track   *Track `json:"track"`
}

type Artist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

type AudioFeatures struct {
	ID               string  `json:"id"`
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	DurationMS       float64 `json:"duration_ms"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`
	Key              float64 `json:"key"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Mode             float64 `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Tempo            float64 `json:"tempo"`
	TimeSignature    float64 `json:"time_signature"`
	Valence          float64 `json:"valence"`
}
