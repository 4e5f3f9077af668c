package harvest

import (
	"sort"

	"github.com/rcong315/toptracks/internal/dataset"
)

// MinTempo returns the smallest positive tempo in rows. Rows with a
// missing, zero or negative tempo do not take part.
func MinTempo(rows []dataset.Row) (float64, bool) {
	minTempo, found := 0.0, false
	for _, r := range rows {
		if r.Placeholder {
			continue
		}
		t, ok := r.Features.Tempo()
		if !ok {
			continue
		}
		if !found || t < minTempo {
			minTempo, found = t, true
		}
	}
	return minTempo, found
}

// Assemble normalizes tempo against the batch minimum, sorts by popularity
// (descending, ties keep harvest order) and stamps the source playlist.
// It reports false when the batch has nothing to contribute.
func Assemble(rows []dataset.Row, playlist Playlist) ([]dataset.Row, bool) {
	minTempo, ok := MinTempo(rows)
	if !ok {
		return nil, false
	}

	out := make([]dataset.Row, len(rows))
	copy(out, rows)
	for i := range out {
		out[i].NormTempo = nil
		if out[i].Placeholder {
			continue
		}
		if t, ok := out[i].Features.Tempo(); ok {
			n := (t - minTempo) / minTempo
			out[i].NormTempo = &n
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Popularity > out[j].Popularity
	})

	for i := range out {
		out[i].PlaylistID = playlist.ID
		out[i].PlaylistName = playlist.Name
	}
	return out, true
}

// StampRegion tags every row with the region it was harvested for.
func StampRegion(rows []dataset.Row, code, name string) {
	for i := range rows {
		rows[i].CountryCode = code
		rows[i].Country = name
	}
}
