package graph

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Node is an in-memory node.
type Node struct {
	Label string
	Key   string
	Props map[string]any
}

type nodeRef struct {
	label string
	key   string
}

type edge struct {
	from nodeRef
	to   nodeRef
}

// MemoryStore is a Store and Analyzer held in process memory. It follows
// the same merge and relationship rules as the Neo4j store and backs dry
// runs and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	nodes       map[string]map[string]*Node
	order       map[string][]string
	edges       map[string][]edge
	constraints map[string]bool
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.reset()
	return s
}

func (s *MemoryStore) reset() {
	s.nodes = make(map[string]map[string]*Node)
	s.order = make(map[string][]string)
	s.edges = make(map[string][]edge)
	s.constraints = make(map[string]bool)
}

func (s *MemoryStore) EnsureConstraint(_ context.Context, spec NodeSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.constraints[spec.Constraint] = true
	return nil
}

func (s *MemoryStore) MergeNodes(ctx context.Context, spec NodeSpec, events []Event) (NodeStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats NodeStats
	byKey := s.nodes[spec.Label]
	if byKey == nil {
		byKey = make(map[string]*Node)
		s.nodes[spec.Label] = byKey
	}
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		key, _ := e[spec.Key].(string)
		n, ok := byKey[key]
		if !ok {
			n = &Node{Label: spec.Label, Key: key, Props: make(map[string]any, len(e))}
			for k, v := range e {
				if v == nil || k == spec.ListProp {
					continue
				}
				n.Props[k] = v
			}
			if spec.ListProp != "" {
				n.Props[spec.ListProp] = appendListValue(nil, e[spec.ListProp])
			}
			if spec.CounterProp != "" {
				n.Props[spec.CounterProp] = int64(1)
			}
			byKey[key] = n
			s.order[spec.Label] = append(s.order[spec.Label], key)
			stats.Created++
			continue
		}
		if spec.ListProp != "" {
			list, _ := n.Props[spec.ListProp].([]string)
			n.Props[spec.ListProp] = appendListValue(list, e[spec.ListProp])
		}
		if spec.CounterProp != "" {
			n.Props[spec.CounterProp] = toInt(n.Props[spec.CounterProp]) + 1
		}
		stats.Matched++
	}
	return stats, nil
}

func appendListValue(list []string, v any) []string {
	if list == nil {
		list = []string{}
	}
	if s, _ := v.(string); s != "" {
		list = append(list, s)
	}
	return list
}

func (s *MemoryStore) Relate(ctx context.Context, spec RelSpec, verb Verb) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pairs []edge
	if spec.Shortcut() {
		pairs = s.walk(spec)
	} else {
		for _, fk := range s.order[spec.From] {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			from := s.nodes[spec.From][fk]
			for _, tk := range s.order[spec.To] {
				to := s.nodes[spec.To][tk]
				if joins(from.Props[spec.FromProp], to.Props[spec.ToProp]) {
					pairs = append(pairs, edge{from: nodeRef{spec.From, fk}, to: nodeRef{spec.To, tk}})
				}
			}
		}
	}

	created := 0
	for _, p := range pairs {
		if verb == Merge && slices.Contains(s.edges[spec.Type], p) {
			continue
		}
		s.edges[spec.Type] = append(s.edges[spec.Type], p)
		created++
	}
	return created, nil
}

// walk follows spec.Path from every From node and returns one pair per
// distinct path found, duplicates included.
func (s *MemoryStore) walk(spec RelSpec) []edge {
	var pairs []edge
	for _, fk := range s.order[spec.From] {
		start := nodeRef{spec.From, fk}
		frontier := []nodeRef{start}
		for _, step := range spec.Path {
			var next []nodeRef
			for _, cur := range frontier {
				for _, e := range s.edges[step.Type] {
					switch {
					case !step.Reverse && e.from == cur:
						next = append(next, e.to)
					case step.Reverse && e.to == cur:
						next = append(next, e.from)
					}
				}
			}
			frontier = next
		}
		for _, end := range frontier {
			if end.label == spec.To {
				pairs = append(pairs, edge{from: start, to: end})
			}
		}
	}
	return pairs
}

// joins compares property values the way the relationship queries do:
// scalar equality, or list membership when one side is a list.
func joins(a, b any) bool {
	if list, ok := a.([]string); ok {
		s, _ := b.(string)
		return s != "" && slices.Contains(list, s)
	}
	if list, ok := b.([]string); ok {
		s, _ := a.(string)
		return s != "" && slices.Contains(list, s)
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	return aok && bok && as != "" && as == bs
}

func (s *MemoryStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

func (s *MemoryStore) Close(context.Context) error {
	return nil
}

// NodeCount returns the number of nodes with label.
func (s *MemoryStore) NodeCount(label string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes[label])
}

// EdgeCount returns the number of edges of type, duplicates included.
func (s *MemoryStore) EdgeCount(relType string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges[relType])
}

// Node returns a copy of the node with label and key.
func (s *MemoryStore) Node(label, key string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[label][key]
	if !ok {
		return Node{}, false
	}
	props := make(map[string]any, len(n.Props))
	for k, v := range n.Props {
		if list, ok := v.([]string); ok {
			v = slices.Clone(list)
		}
		props[k] = v
	}
	return Node{Label: n.Label, Key: n.Key, Props: props}, true
}

// HasConstraint reports whether a uniqueness constraint was declared.
func (s *MemoryStore) HasConstraint(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.constraints[name]
}

func (s *MemoryStore) outgoing(relType string, from nodeRef) []nodeRef {
	var out []nodeRef
	for _, e := range s.edges[relType] {
		if e.from == from {
			out = append(out, e.to)
		}
	}
	return out
}

func (s *MemoryStore) GenreCounts(_ context.Context, limit int) ([]GenreCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]GenreCount, 0, len(s.nodes[LabelGenreCounts]))
	for _, n := range s.nodes[LabelGenreCounts] {
		out = append(out, GenreCount{Genre: n.Key, TotalSongs: toInt(n.Props["totalSongs"])})
	}
	sortGenreCounts(out, false)
	return truncate(out, limit), nil
}

func (s *MemoryStore) CountryGenres(_ context.Context, countryCode string) ([]GenreCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if _, ok := s.nodes[LabelCountries][code]; !ok {
		return nil, ErrCountryNotFound
	}
	country := nodeRef{LabelCountries, code}
	tracks := make(map[string]map[string]bool)
	for _, t := range s.outgoing(RelCountryTracks, country) {
		for _, g := range s.outgoing(RelIsType, t) {
			if tracks[g.key] == nil {
				tracks[g.key] = make(map[string]bool)
			}
			tracks[g.key][t.key] = true
		}
	}
	out := make([]GenreCount, 0, len(tracks))
	for genre, ts := range tracks {
		total := toInt(s.nodes[LabelGenreCounts][genre].Props["totalSongs"])
		out = append(out, GenreCount{Genre: genre, TotalSongs: total, Tracks: int64(len(ts))})
	}
	sortGenreCounts(out, true)
	return out, nil
}

func (s *MemoryStore) CountryStats(context.Context) ([]CountryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := slices.Clone(s.order[LabelCountries])
	sort.Strings(codes)
	out := make([]CountryStats, 0, len(codes))
	for _, code := range codes {
		c := s.nodes[LabelCountries][code]
		name, _ := c.Props["country"].(string)
		stats := CountryStats{
			CountryCode: code,
			Country:     name,
			Averages:    make(map[string]float64),
			Samples:     make(map[string]int64),
		}

		seen := make(map[string]bool)
		sums := make(map[string]float64)
		counts := make(map[string]int)
		for _, t := range s.outgoing(RelCountryTracks, nodeRef{LabelCountries, code}) {
			if seen[t.key] {
				continue
			}
			seen[t.key] = true
			props := s.nodes[LabelTracks][t.key].Props
			for _, p := range trackStatProps {
				if v, ok := toFloat(props[p]); ok {
					sums[p] += v
					counts[p]++
				}
			}
		}
		stats.Tracks = int64(len(seen))
		for p, n := range counts {
			stats.Averages[p] = sums[p] / float64(n)
			stats.Samples[p] = int64(n)
		}
		out = append(out, stats)
	}
	return out, nil
}

func (s *MemoryStore) TrackPlaylistCounts(_ context.Context, limit int) ([]PlaylistCount, error) {
	return s.playlistCounts(LabelTracks, RelAddedTo, "trackName", limit), nil
}

func (s *MemoryStore) ArtistPlaylistCounts(_ context.Context, limit int) ([]PlaylistCount, error) {
	return s.playlistCounts(LabelArtists, RelArtistPlaylists, "artistName", limit), nil
}

func (s *MemoryStore) playlistCounts(label, relType, nameProp string, limit int) []PlaylistCount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, e := range s.edges[relType] {
		if e.from.label == label {
			counts[e.from.key]++
		}
	}
	out := make([]PlaylistCount, 0, len(counts))
	for key, n := range counts {
		name, _ := s.nodes[label][key].Props[nameProp].(string)
		out = append(out, PlaylistCount{ID: key, Name: name, Count: n})
	}
	sortPlaylistCounts(out)
	return truncate(out, limit)
}
