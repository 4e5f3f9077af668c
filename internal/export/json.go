package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/rcong315/toptracks/internal/dataset"
)

// ConvertCSVToJSON writes the records of a headed CSV as a JSON array of
// objects with sorted keys and four-space indentation. Every value stays a
// string, as read.
func ConvertCSVToJSON(r io.Reader, w io.Writer) (int, error) {
	records, _, err := readRecords(r)
	if err != nil {
		return 0, err
	}
	if records == nil {
		records = []map[string]string{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return 0, fmt.Errorf("encoding json: %w", err)
	}
	return len(records), nil
}

// CSVToJSON converts the CSV file at csvPath into a JSON file at jsonPath.
func CSVToJSON(csvPath, jsonPath string) error {
	in, err := os.Open(csvPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(jsonPath)
	if err != nil {
		return err
	}
	n, err := ConvertCSVToJSON(in, out)
	if err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	logger.Info("Wrote JSON export", zap.String("path", jsonPath), zap.Int("records", n))
	return nil
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return formatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		tags := make([]string, 0, len(t))
		for _, e := range t {
			tags = append(tags, cellString(e))
		}
		return FormatGenres(tags)
	default:
		return fmt.Sprint(t)
	}
}

// ReadJSON reads an interchange JSON array into rows. Values may be strings,
// as written by ConvertCSVToJSON, or native JSON scalars.
func ReadJSON(r io.Reader) ([]dataset.Row, error) {
	var raw []map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}
	records := make([]map[string]string, 0, len(raw))
	for _, obj := range raw {
		rec := make(map[string]string, len(obj))
		for k, v := range obj {
			rec[k] = cellString(v)
		}
		records = append(records, rec)
	}
	return RecordsToRows(records)
}

// ReadJSONFile reads rows from a JSON file.
func ReadJSONFile(path string) ([]dataset.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadJSON(f)
}
