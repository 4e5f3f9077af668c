package harvest

import (
	"errors"
	"fmt"
)

// ErrNoFeaturedPlaylist is returned when a region has no featured playlist.
var ErrNoFeaturedPlaylist = errors.New("no featured playlist")

// ResolutionError means a region could not be resolved to a playlist. The
// region is excluded; the batch continues.
type ResolutionError struct {
	Code string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving region %s: %v", e.Code, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// HarvestError means a playlist listing could not be fully read.
type HarvestError struct {
	PlaylistID string
	Err        error
}

func (e *HarvestError) Error() string {
	return fmt.Sprintf("harvesting playlist %s: %v", e.PlaylistID, e.Err)
}

func (e *HarvestError) Unwrap() error { return e.Err }

// EnrichmentError describes a single track that could not be enriched.
// It is logged and recovered, never returned from Enrich.
type EnrichmentError struct {
	TrackID string
	Field   string
	Err     error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enriching track %q (%s): %v", e.TrackID, e.Field, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }
