package export

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcong315/toptracks/internal/dataset"
)

func sampleRow() dataset.Row {
	norm := 0.25
	return dataset.Row{
		Artist:     "Robyn",
		ArtistID:   "a1",
		Album:      "Body Talk",
		AlbumID:    "al1",
		TrackName:  "Dancing On My Own",
		TrackID:    "t1",
		Genres:     []string{"dance pop", "swedish electropop"},
		Popularity: 74,
		Explicit:   false,
		Features: dataset.Features{
			dataset.FeatureTempo:      117.5,
			dataset.FeatureKey:        6,
			dataset.FeatureDurationMS: 287000,
			dataset.FeatureEnergy:     0.82,
		},
		NormTempo:    &norm,
		PlaylistID:   "p1",
		PlaylistName: "Topplistan",
		CountryCode:  "SE",
		Country:      "Sweden",
	}
}

func TestGenreCodec(t *testing.T) {
	tests := []struct {
		name string
		cell string
		want []string
	}{
		{"quoted", "['pop', 'dance pop']", []string{"pop", "dance pop"}},
		{"apostrophe", `["rock 'n' roll", 'blues']`, []string{"rock 'n' roll", "blues"}},
		{"empty", "[]", nil},
		{"blank", "", nil},
		{"bare", "[pop, k-pop ,pop]", []string{"pop", "k-pop"}},
		{"duplicates", "['pop', 'pop']", []string{"pop"}},
		{"escaped", `['say "hi" it\'s', 'a\\b']`, []string{`say "hi" it's`, `a\b`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseGenres(tt.cell))
		})
	}

	assert.Equal(t, "['pop', 'dance pop']", FormatGenres([]string{"pop", "dance pop"}))
	assert.Equal(t, `["rock 'n' roll"]`, FormatGenres([]string{"rock 'n' roll"}))
	assert.Equal(t, "[]", FormatGenres(nil))
	assert.Equal(t, `['say "hi" it\'s']`, FormatGenres([]string{`say "hi" it's`}))
}

func TestGenreCodecRoundTrip(t *testing.T) {
	tags := []string{`say "hi" it's`, "rock 'n' roll", `12" mix`, `back\slash`, "pop, rock", "['x']"}
	assert.Equal(t, tags, ParseGenres(FormatGenres(tags)))
}

func TestCSVHeaderOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	header := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(header, "artist,artist_id,album,album_id,track_name,track_id,genre,popularity,explicit,key,tempo,"))
	assert.True(t, strings.HasSuffix(header, "duration_ms,norm_tempo,playlist_id,top_playlist_name,country_code,country"))
}

func TestCSVRoundTrip(t *testing.T) {
	placeholder := dataset.PlaceholderRow()
	placeholder.PlaylistID = "p1"
	placeholder.CountryCode = "SE"
	rows := []dataset.Row{sampleRow(), placeholder}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))
	assert.Contains(t, buf.String(), "\"['dance pop', 'swedish electropop']\"")
	assert.Contains(t, buf.String(), ",6,117.5,")

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, rows[0].Genres, got[0].Genres)
	assert.Equal(t, rows[0].Features, got[0].Features)
	require.NotNil(t, got[0].NormTempo)
	assert.Equal(t, 0.25, *got[0].NormTempo)
	assert.Equal(t, "Topplistan", got[0].PlaylistName)

	assert.True(t, got[1].Placeholder)
	assert.Equal(t, "p1", got[1].PlaylistID)
	assert.Equal(t, "SE", got[1].CountryCode)
}

func TestCSVToJSON(t *testing.T) {
	var csvBuf bytes.Buffer
	require.NoError(t, WriteCSV(&csvBuf, []dataset.Row{sampleRow()}))

	var jsonBuf bytes.Buffer
	n, err := ConvertCSVToJSON(bytes.NewReader(csvBuf.Bytes()), &jsonBuf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	out := jsonBuf.String()
	assert.True(t, strings.HasPrefix(out, "[\n    {\n        \"acousticness\": \"\",\n        \"album\": \"Body Talk\","))

	var decoded []map[string]string
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &decoded))
	assert.Equal(t, "SE", decoded[0]["country_code"])
	assert.Equal(t, "False", decoded[0]["explicit"])

	rows, err := ReadJSON(bytes.NewReader(jsonBuf.Bytes()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, sampleRow().Genres, rows[0].Genres)
	assert.Equal(t, 74, rows[0].Popularity)
}

func TestReadJSONNativeValues(t *testing.T) {
	doc := `[{"track_id":"t9","popularity":55,"explicit":true,"genre":["pop","latin"],"tempo":98.5}]`
	rows, err := ReadJSON(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 55, rows[0].Popularity)
	assert.True(t, rows[0].Explicit)
	assert.Equal(t, []string{"pop", "latin"}, rows[0].Genres)
	tempo, ok := rows[0].Features.Get(dataset.FeatureTempo)
	assert.True(t, ok)
	assert.Equal(t, 98.5, tempo)
}

func TestRecordToRowRejectsBadNumber(t *testing.T) {
	_, err := RecordToRow(map[string]string{"track_id": "t1", "tempo": "fast"})
	assert.Error(t, err)
}

func TestFileCheckpointer(t *testing.T) {
	dir := t.TempDir()
	cp := &FileCheckpointer{Dir: dir}

	snap, err := cp.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)

	want := dataset.Snapshot{RunID: "run-1", Completed: []string{"AD", "AE", "AR"}, Rows: []dataset.Row{sampleRow()}}
	require.NoError(t, cp.Save(context.Background(), want))

	_, err = os.Stat(filepath.Join(dir, "top_playlists_ADtoAR.csv"))
	require.NoError(t, err)

	got, err := cp.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, want.Completed, got.Completed)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "t1", got.Rows[0].TrackID)
	assert.True(t, got.IsCompleted("AE"))
}

func TestWriteAndConvertFiles(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out", "world_top_playlists.csv")
	jsonPath := filepath.Join(dir, "out", "world_top_playlists.json")

	require.NoError(t, WriteCSVFile(csvPath, []dataset.Row{sampleRow()}))
	require.NoError(t, CSVToJSON(csvPath, jsonPath))

	rows, err := ReadJSONFile(jsonPath)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
