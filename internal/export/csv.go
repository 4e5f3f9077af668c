// Package export reads and writes the interchange file between the
// harvester and the graph loader.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rcong315/toptracks/internal/dataset"
)

var logger = zap.NewNop()

// InitializeLogger sets the logger for the export package.
func InitializeLogger(l *zap.Logger) {
	logger = l
}

func formatFloat(name string, v float64) string {
	if dataset.IsIntegerFeature(name) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// Record renders a row as a column → cell map.
func Record(r dataset.Row) map[string]string {
	rec := make(map[string]string, len(dataset.Columns))
	for _, c := range dataset.Columns {
		rec[c] = ""
	}
	rec["playlist_id"] = r.PlaylistID
	rec["top_playlist_name"] = r.PlaylistName
	rec["country_code"] = r.CountryCode
	rec["country"] = r.Country
	if r.Placeholder {
		return rec
	}

	rec["artist"] = r.Artist
	rec["artist_id"] = r.ArtistID
	rec["album"] = r.Album
	rec["album_id"] = r.AlbumID
	rec["track_name"] = r.TrackName
	rec["track_id"] = r.TrackID
	rec["genre"] = FormatGenres(r.Genres)
	rec["popularity"] = strconv.Itoa(r.Popularity)
	rec["explicit"] = formatBool(r.Explicit)
	for _, name := range dataset.FeatureColumns {
		if v, ok := r.Features.Get(name); ok {
			rec[name] = formatFloat(name, v)
		}
	}
	if r.NormTempo != nil {
		rec["norm_tempo"] = strconv.FormatFloat(*r.NormTempo, 'f', -1, 64)
	}
	return rec
}

// RecordToRow parses a column → cell map back into a row. A record with an
// empty track id is a placeholder.
func RecordToRow(rec map[string]string) (dataset.Row, error) {
	r := dataset.Row{
		PlaylistID:   rec["playlist_id"],
		PlaylistName: rec["top_playlist_name"],
		CountryCode:  rec["country_code"],
		Country:      rec["country"],
		Features:     dataset.Features{},
	}
	if strings.TrimSpace(rec["track_id"]) == "" {
		r.Placeholder = true
		return r, nil
	}

	r.Artist = rec["artist"]
	r.ArtistID = rec["artist_id"]
	r.Album = rec["album"]
	r.AlbumID = rec["album_id"]
	r.TrackName = rec["track_name"]
	r.TrackID = rec["track_id"]
	r.Genres = ParseGenres(rec["genre"])

	if s := strings.TrimSpace(rec["popularity"]); s != "" {
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return r, fmt.Errorf("track %s: popularity %q: %w", r.TrackID, s, err)
		}
		r.Popularity = int(p)
	}
	if s := strings.TrimSpace(rec["explicit"]); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return r, fmt.Errorf("track %s: explicit %q: %w", r.TrackID, s, err)
		}
		r.Explicit = b
	}
	for _, name := range dataset.FeatureColumns {
		s := strings.TrimSpace(rec[name])
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return r, fmt.Errorf("track %s: %s %q: %w", r.TrackID, name, s, err)
		}
		r.Features.Set(name, v)
	}
	if s := strings.TrimSpace(rec["norm_tempo"]); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return r, fmt.Errorf("track %s: norm_tempo %q: %w", r.TrackID, s, err)
		}
		r.NormTempo = &v
	}
	return r, nil
}

// WriteCSV writes rows with a header in interchange column order.
func WriteCSV(w io.Writer, rows []dataset.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(dataset.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	line := make([]string, len(dataset.Columns))
	for _, r := range rows {
		rec := Record(r)
		for i, c := range dataset.Columns {
			line[i] = rec[c]
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes rows to path, replacing it atomically.
func WriteCSVFile(path string, rows []dataset.Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming export into place: %w", err)
	}
	logger.Info("Wrote CSV export", zap.String("path", path), zap.Int("rows", len(rows)))
	return nil
}

// readRecords reads a headed CSV into column → cell maps.
func readRecords(r io.Reader) ([]map[string]string, []string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	var records []map[string]string
	for {
		line, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading line %d: %w", len(records)+2, err)
		}
		rec := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(line) {
				rec[col] = line[i]
			} else {
				rec[col] = ""
			}
		}
		records = append(records, rec)
	}
	return records, header, nil
}

// ReadCSV reads rows written by WriteCSV.
func ReadCSV(r io.Reader) ([]dataset.Row, error) {
	records, _, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	return RecordsToRows(records)
}

// ReadCSVFile reads rows from a CSV file.
func ReadCSVFile(path string) ([]dataset.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// RecordsToRows converts interchange records, failing on the first bad one.
func RecordsToRows(records []map[string]string) ([]dataset.Row, error) {
	rows := make([]dataset.Row, 0, len(records))
	for i, rec := range records {
		r, err := RecordToRow(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}
