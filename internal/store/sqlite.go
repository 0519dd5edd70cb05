package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Ledger, Catalog, and CatalogWriter on a local SQLite
// database. It mirrors the DynamoDB backend for single-machine runs; the
// processing loop is single-threaded, so no write serialization is needed
// beyond SQLite's own locking.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ Ledger        = (*SQLiteStore)(nil)
	_ Catalog       = (*SQLiteStore)(nil)
	_ CatalogWriter = (*SQLiteStore)(nil)
)

// OpenSQLite opens (creating if needed) the database at dbPath and runs
// migrations. ":memory:" opens a throwaway in-memory database.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	} else if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("SQLite store initialized")
	return s, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS processed_mentions (
		mention_id TEXT PRIMARY KEY,
		platform TEXT NOT NULL,
		content TEXT,
		author TEXT,
		intent TEXT,
		sentiment TEXT,
		confidence REAL,
		response TEXT,
		response_type TEXT,
		similarity_score REAL,
		processed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_processed_platform ON processed_mentions(platform);
	CREATE INDEX IF NOT EXISTS idx_processed_at ON processed_mentions(processed_at DESC);

	CREATE TABLE IF NOT EXISTS canned_responses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		keyword TEXT NOT NULL,
		response_template TEXT NOT NULL,
		category TEXT,
		intent TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- Ledger ---

func (s *SQLiteStore) IsProcessed(ctx context.Context, mentionID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_mentions WHERE mention_id = ?`, mentionID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query mention=%s: %w", mentionID, err)
	}
	return true, nil
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, rec ProcessedMention) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_mentions
		(mention_id, platform, content, author, intent, sentiment, confidence,
		 response, response_type, similarity_score, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.MentionID, rec.Platform, rec.Content, rec.Author, rec.Intent,
		rec.Sentiment, rec.Confidence, rec.Response, rec.ResponseType,
		rec.SimilarityScore, rec.ProcessedAt.UTC())
	if err != nil {
		// The PRIMARY KEY on mention_id makes a duplicate insert fail.
		if strings.Contains(err.Error(), "UNIQUE constraint") ||
			strings.Contains(err.Error(), "constraint failed") {
			return fmt.Errorf("%w: %s", ErrDuplicateMention, rec.MentionID)
		}
		return fmt.Errorf("insert mention=%s: %w", rec.MentionID, err)
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN response_type = 'canned' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN response_type = 'ai' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(confidence), 0),
			COALESCE(AVG(similarity_score), 0)
		FROM processed_mentions`)

	var stats Stats
	if err := row.Scan(&stats.Total, &stats.Canned, &stats.AI,
		&stats.AvgConfidence, &stats.AvgSimilarity); err != nil {
		return Stats{}, fmt.Errorf("stats query: %w", err)
	}
	return stats, nil
}

// --- Catalog ---

func (s *SQLiteStore) ListCannedResponses(ctx context.Context) ([]CannedResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, keyword, response_template, category, intent
		FROM canned_responses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list canned responses: %w", err)
	}
	defer rows.Close()

	var entries []CannedResponse
	for rows.Next() {
		var cr CannedResponse
		var id int64
		if err := rows.Scan(&id, &cr.Keyword, &cr.Response, &cr.Category, &cr.Intent); err != nil {
			return nil, fmt.Errorf("scan canned response: %w", err)
		}
		cr.ID = strconv.FormatInt(id, 10)
		cr.Seq = id
		entries = append(entries, cr)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) AddCannedResponse(ctx context.Context, cr CannedResponse) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO canned_responses (keyword, response_template, category, intent)
		VALUES (?, ?, ?, ?)`,
		cr.Keyword, cr.Response, cr.Category, cr.Intent)
	if err != nil {
		return fmt.Errorf("insert canned=%s: %w", cr.Keyword, err)
	}
	return nil
}

// SeedDefaultCatalog inserts the default canned responses if the catalog is
// empty. Returns the number of entries inserted.
func (s *SQLiteStore) SeedDefaultCatalog(ctx context.Context) (int, error) {
	existing, err := s.ListCannedResponses(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for _, cr := range DefaultCannedResponses {
		if err := s.AddCannedResponse(ctx, cr); err != nil {
			return 0, err
		}
	}
	return len(DefaultCannedResponses), nil
}
