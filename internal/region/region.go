package region

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

//go:embed data/countries.csv
var countriesCSV []byte

//go:embed data/resolvable.txt
var resolvableTxt []byte

// ErrUnknownCode is returned for a code missing from the reference table.
var ErrUnknownCode = errors.New("unknown country code")

var (
	table     map[string]string
	tableOnce sync.Once
	tableErr  error
)

func loadTable() (map[string]string, error) {
	tableOnce.Do(func() {
		r := csv.NewReader(bytes.NewReader(countriesCSV))
		records, err := r.ReadAll()
		if err != nil {
			tableErr = fmt.Errorf("parsing country table: %w", err)
			return
		}
		table = make(map[string]string, len(records))
		for i, rec := range records {
			if i == 0 || len(rec) < 2 {
				continue
			}
			table[rec[0]] = rec[1]
		}
	})
	return table, tableErr
}

// Lookup returns the display name for an ISO 3166-1 alpha-2 code.
func Lookup(code string) (string, error) {
	t, err := loadTable()
	if err != nil {
		return "", err
	}
	name, ok := t[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCode, code)
	}
	return name, nil
}

// Codes returns every code in the reference table, sorted.
func Codes() []string {
	t, err := loadTable()
	if err != nil {
		logger.Error("Country table unavailable", zap.Error(err))
		return nil
	}
	codes := make([]string, 0, len(t))
	for c := range t {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// DefaultResolvable returns the codes that resolved on the last probe.
func DefaultResolvable() []string {
	var codes []string
	sc := bufio.NewScanner(bytes.NewReader(resolvableTxt))
	for sc.Scan() {
		if c := strings.TrimSpace(sc.Text()); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}

// ParseList splits a comma separated code list, upper-casing and dropping
// blanks and duplicates while keeping first-seen order.
func ParseList(s string) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, part := range strings.Split(s, ",") {
		c := strings.ToUpper(strings.TrimSpace(part))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		codes = append(codes, c)
	}
	return codes
}

// Partition splits candidate codes by whether a playlist could be resolved.
type Partition struct {
	Resolvable   []string
	Unresolvable []string
}

// ProbeFunc attempts to resolve one code.
type ProbeFunc func(ctx context.Context, code string) error

// Probe runs probe against every code and sorts each into exactly one side
// of the partition. Only context cancellation aborts the probe.
func Probe(ctx context.Context, codes []string, probe ProbeFunc) (Partition, error) {
	var p Partition
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		if err := probe(ctx, code); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return p, err
			}
			logger.Debug("Region unresolvable", zap.String("countryCode", code), zap.Error(err))
			p.Unresolvable = append(p.Unresolvable, code)
			continue
		}
		p.Resolvable = append(p.Resolvable, code)
	}
	logger.Info("Probe complete",
		zap.Int("resolvable", len(p.Resolvable)),
		zap.Int("unresolvable", len(p.Unresolvable)))
	return p, nil
}
