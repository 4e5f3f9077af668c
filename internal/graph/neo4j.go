package graph

import (
	"context"
	"embed"
	"fmt"
	"math"
	"os"
	"path"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

//go:embed cypher/*.cypher
var cypherFiles embed.FS

// EventBatchSize bounds how many events go into one UNWIND statement.
const EventBatchSize = 1000

// Neo4jConfig holds connection settings for the graph database.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Neo4jConfigFromEnv reads NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD and
// NEO4J_DATABASE.
func Neo4jConfigFromEnv() Neo4jConfig {
	return Neo4jConfig{
		URI:      getEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Username: getEnv("NEO4J_USER", "neo4j"),
		Password: os.Getenv("NEO4J_PASSWORD"),
		Database: os.Getenv("NEO4J_DATABASE"),
	}
}

// Neo4jStore writes and reads the graph through the Neo4j driver.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// OpenNeo4j connects and verifies the server is reachable.
func OpenNeo4j(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connecting to %s: %w", cfg.URI, err)
	}
	logger.Info("Connected to Neo4j", zap.String("uri", cfg.URI))
	return &Neo4jStore{driver: driver, database: cfg.Database}, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func getQueryString(name string) (string, error) {
	p := path.Join("cypher", name+".cypher")
	b, err := cypherFiles.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("failed to read embedded cypher file %q: %w", p, err)
	}
	return string(b), nil
}

// relationshipQuery fills the write verb into a relationship pass.
func relationshipQuery(spec RelSpec, verb Verb) (string, error) {
	q, err := getQueryString(spec.File)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(q, "{verb}", string(verb)), nil
}

func (s *Neo4jStore) execute(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if s.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(s.database))
	}
	return neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer, opts...)
}

func (s *Neo4jStore) read(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
	if s.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(s.database))
	}
	return neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer, opts...)
}

func (s *Neo4jStore) EnsureConstraint(ctx context.Context, spec NodeSpec) error {
	q := fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
		spec.Constraint, spec.Label, spec.Key)
	if _, err := s.execute(ctx, q, nil); err != nil {
		return fmt.Errorf("creating constraint %s: %w", spec.Constraint, err)
	}
	return nil
}

// MergeNodes upserts every event of the pass in one write transaction.
func (s *Neo4jStore) MergeNodes(ctx context.Context, spec NodeSpec, events []Event) (NodeStats, error) {
	query, err := getQueryString(spec.File)
	if err != nil {
		return NodeStats{}, err
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: s.database})
	defer session.Close(ctx)

	created, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		total := 0
		for start := 0; start < len(events); start += EventBatchSize {
			end := min(start+EventBatchSize, len(events))
			batch := make([]any, 0, end-start)
			for _, e := range events[start:end] {
				batch = append(batch, map[string]any(e))
			}
			res, err := tx.Run(ctx, query, map[string]any{"events": batch})
			if err != nil {
				return nil, err
			}
			summary, err := res.Consume(ctx)
			if err != nil {
				return nil, err
			}
			total += summary.Counters().NodesCreated()
		}
		return total, nil
	})
	if err != nil {
		return NodeStats{}, fmt.Errorf("merging %s: %w", spec.Label, err)
	}
	n := created.(int)
	return NodeStats{Created: n, Matched: len(events) - n}, nil
}

func (s *Neo4jStore) Relate(ctx context.Context, spec RelSpec, verb Verb) (int, error) {
	query, err := relationshipQuery(spec, verb)
	if err != nil {
		return 0, err
	}
	res, err := s.execute(ctx, query, nil)
	if err != nil {
		return 0, fmt.Errorf("relating %s: %w", spec.Type, err)
	}
	return res.Summary.Counters().RelationshipsCreated(), nil
}

// Reset drops every constraint and detaches and deletes every node the
// loader creates.
func (s *Neo4jStore) Reset(ctx context.Context) error {
	for _, spec := range NodeSpecs {
		if _, err := s.execute(ctx, fmt.Sprintf("DROP CONSTRAINT %s IF EXISTS", spec.Constraint), nil); err != nil {
			return fmt.Errorf("dropping constraint %s: %w", spec.Constraint, err)
		}
	}
	for _, spec := range NodeSpecs {
		if _, err := s.execute(ctx, fmt.Sprintf("MATCH (n:%s) DETACH DELETE n", spec.Label), nil); err != nil {
			return fmt.Errorf("deleting %s: %w", spec.Label, err)
		}
	}
	logger.Info("Reset graph")
	return nil
}

func limitParam(limit int) int64 {
	if limit <= 0 {
		return math.MaxInt32
	}
	return int64(limit)
}

func recordString(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

func recordInt(rec *neo4j.Record, key string) int64 {
	v, _ := rec.Get(key)
	return toInt(v)
}

func (s *Neo4jStore) GenreCounts(ctx context.Context, limit int) ([]GenreCount, error) {
	q, err := getQueryString("read_genre_counts")
	if err != nil {
		return nil, err
	}
	res, err := s.read(ctx, q, map[string]any{"limit": limitParam(limit)})
	if err != nil {
		return nil, fmt.Errorf("reading genre counts: %w", err)
	}
	out := make([]GenreCount, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, GenreCount{
			Genre:      recordString(rec, "genre"),
			TotalSongs: recordInt(rec, "totalSongs"),
		})
	}
	return out, nil
}

func (s *Neo4jStore) CountryGenres(ctx context.Context, countryCode string) ([]GenreCount, error) {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	exists, err := getQueryString("read_country")
	if err != nil {
		return nil, err
	}
	found, err := s.read(ctx, exists, map[string]any{"code": code})
	if err != nil {
		return nil, fmt.Errorf("reading country %s: %w", code, err)
	}
	if len(found.Records) == 0 {
		return nil, ErrCountryNotFound
	}

	q, err := getQueryString("read_country_genres")
	if err != nil {
		return nil, err
	}
	res, err := s.read(ctx, q, map[string]any{"code": code})
	if err != nil {
		return nil, fmt.Errorf("reading genres of %s: %w", code, err)
	}
	out := make([]GenreCount, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, GenreCount{
			Genre:      recordString(rec, "genre"),
			TotalSongs: recordInt(rec, "totalSongs"),
			Tracks:     recordInt(rec, "tracks"),
		})
	}
	return out, nil
}

func (s *Neo4jStore) CountryStats(ctx context.Context) ([]CountryStats, error) {
	q, err := getQueryString("read_country_stats")
	if err != nil {
		return nil, err
	}
	res, err := s.read(ctx, q, nil)
	if err != nil {
		return nil, fmt.Errorf("reading country stats: %w", err)
	}
	out := make([]CountryStats, 0, len(res.Records))
	for _, rec := range res.Records {
		stats := CountryStats{
			CountryCode: recordString(rec, "countryCode"),
			Country:     recordString(rec, "country"),
			Tracks:      recordInt(rec, "tracks"),
			Averages:    make(map[string]float64),
			Samples:     make(map[string]int64),
		}
		for _, p := range trackStatProps {
			v, _ := rec.Get(p)
			if f, ok := toFloat(v); ok {
				stats.Averages[p] = f
				stats.Samples[p] = recordInt(rec, p+"Samples")
			}
		}
		out = append(out, stats)
	}
	return out, nil
}

func (s *Neo4jStore) TrackPlaylistCounts(ctx context.Context, limit int) ([]PlaylistCount, error) {
	return s.playlistCounts(ctx, "read_track_playlist_counts", limit)
}

func (s *Neo4jStore) ArtistPlaylistCounts(ctx context.Context, limit int) ([]PlaylistCount, error) {
	return s.playlistCounts(ctx, "read_artist_playlist_counts", limit)
}

func (s *Neo4jStore) playlistCounts(ctx context.Context, file string, limit int) ([]PlaylistCount, error) {
	q, err := getQueryString(file)
	if err != nil {
		return nil, err
	}
	res, err := s.read(ctx, q, map[string]any{"limit": limitParam(limit)})
	if err != nil {
		return nil, fmt.Errorf("reading playlist counts: %w", err)
	}
	out := make([]PlaylistCount, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, PlaylistCount{
			ID:    recordString(rec, "id"),
			Name:  recordString(rec, "name"),
			Count: recordInt(rec, "playlists"),
		})
	}
	return out, nil
}
