package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/didi/gendry/builder"
	_ "modernc.org/sqlite"

	"github.com/semdex/semdex/internal/model"
	"github.com/semdex/semdex/internal/search"
)

type sqliteConfig struct {
	Dir string `json:"dir"`
}

// sqliteStore keeps one database file per modality under the configured
// directory. Point lookups go through the identifier primary key; search
// scans every row, which holds up fine for single-user local corpora.
type sqliteStore struct {
	db       *sql.DB
	modality string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	identifier TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	embedding BLOB NOT NULL,
	extra TEXT NOT NULL DEFAULT '',
	mtime INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_entries_identifier ON entries(identifier);
`

func init() {
	Register("sqlite", createSqliteStore)
}

func createSqliteStore(modality string, args interface{}) (Store, error) {
	cfg := &sqliteConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("sqlite store dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	dbPath := filepath.Join(cfg.Dir, modality+".db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &sqliteStore{db: db, modality: modality}, nil
}

func (s *sqliteStore) Upsert(ctx context.Context, entry *model.Entry) error {
	sqlStr, args, err := buildUpsert(entry)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (s *sqliteStore) UpsertBatch(ctx context.Context, entries []*model.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		sqlStr, args, err := buildUpsert(entry)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func buildUpsert(entry *model.Entry) (string, []interface{}, error) {
	data := map[string]interface{}{
		"identifier":  entry.Identifier,
		"description": entry.Description,
		"embedding":   EncodeVector(entry.Embedding),
		"extra":       entry.Extra,
		"mtime":       entry.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("entries", []map[string]interface{}{data})
	if err != nil {
		return "", nil, err
	}
	sqlStr = strings.Replace(sqlStr, "INSERT INTO", "INSERT OR REPLACE INTO", 1)
	return sqlStr, args, nil
}

func (s *sqliteStore) Get(ctx context.Context, identifier string) (*model.Entry, bool, error) {
	const query = `SELECT identifier, description, embedding, extra, mtime FROM entries WHERE identifier = ?`
	row := s.db.QueryRowContext(ctx, query, identifier)
	entry, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

func (s *sqliteStore) All(ctx context.Context) ([]*model.Entry, error) {
	const query = `SELECT identifier, description, embedding, extra, mtime FROM entries`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*model.Entry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *sqliteStore) Search(ctx context.Context, query []float32, topK int) ([]model.SearchResult, error) {
	entries, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]model.SearchResult, 0, len(entries))
	for _, entry := range entries {
		results = append(results, model.SearchResult{
			Identifier:  entry.Identifier,
			Description: entry.Description,
			Similarity:  search.Cosine(query, entry.Embedding),
			Extra:       entry.Extra,
		})
	}
	return search.Rank(results, topK), nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func scanEntry(scan func(dest ...interface{}) error) (*model.Entry, error) {
	var entry model.Entry
	var blob []byte
	if err := scan(&entry.Identifier, &entry.Description, &blob, &entry.Extra, &entry.Mtime); err != nil {
		return nil, err
	}
	vec, err := DecodeVector(blob)
	if err != nil {
		return nil, err
	}
	entry.Embedding = vec
	return &entry, nil
}
