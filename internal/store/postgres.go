package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/semdex/semdex/internal/model"
)

type postgresConfig struct {
	DSN string `json:"dsn"`
}

// postgresStore keeps every modality in one database, partitioned by a
// modality column, and lets pgvector rank entries server-side.
type postgresStore struct {
	db       *sqlx.DB
	modality string
}

const postgresSchema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS entries (
	modality TEXT NOT NULL,
	identifier TEXT NOT NULL,
	description TEXT NOT NULL,
	embedding vector NOT NULL,
	extra TEXT NOT NULL DEFAULT '',
	mtime BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (modality, identifier)
);
`

func init() {
	Register("postgres", createPostgresStore)
}

func createPostgresStore(modality string, args interface{}) (Store, error) {
	cfg := &postgresConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres store dsn is required")
	}
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &postgresStore{db: db, modality: modality}, nil
}

func (s *postgresStore) Upsert(ctx context.Context, entry *model.Entry) error {
	return s.upsertTx(ctx, s.db, entry)
}

func (s *postgresStore) UpsertBatch(ctx context.Context, entries []*model.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := s.upsertTx(ctx, tx, entry); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *postgresStore) upsertTx(ctx context.Context, ex execer, entry *model.Entry) error {
	const query = `
		INSERT INTO entries (modality, identifier, description, embedding, extra, mtime)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (modality, identifier) DO UPDATE SET
			description = EXCLUDED.description,
			embedding = EXCLUDED.embedding,
			extra = EXCLUDED.extra,
			mtime = EXCLUDED.mtime
	`
	_, err := ex.ExecContext(ctx, query,
		s.modality,
		entry.Identifier,
		entry.Description,
		pgvector.NewVector(entry.Embedding),
		entry.Extra,
		entry.Mtime,
	)
	return err
}

func (s *postgresStore) Get(ctx context.Context, identifier string) (*model.Entry, bool, error) {
	const query = `
		SELECT identifier, description, embedding, extra, mtime
		FROM entries WHERE modality = $1 AND identifier = $2
	`
	row := s.db.QueryRowContext(ctx, query, s.modality, identifier)
	var entry model.Entry
	var vec pgvector.Vector
	err := row.Scan(&entry.Identifier, &entry.Description, &vec, &entry.Extra, &entry.Mtime)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	entry.Embedding = vec.Slice()
	return &entry, true, nil
}

func (s *postgresStore) All(ctx context.Context) ([]*model.Entry, error) {
	const query = `
		SELECT identifier, description, embedding, extra, mtime
		FROM entries WHERE modality = $1
	`
	rows, err := s.db.QueryContext(ctx, query, s.modality)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*model.Entry
	for rows.Next() {
		var entry model.Entry
		var vec pgvector.Vector
		if err := rows.Scan(&entry.Identifier, &entry.Description, &vec, &entry.Extra, &entry.Mtime); err != nil {
			return nil, err
		}
		entry.Embedding = vec.Slice()
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func (s *postgresStore) Search(ctx context.Context, query []float32, topK int) ([]model.SearchResult, error) {
	if isZeroVector(query) {
		// The <=> operator is undefined for zero-norm vectors; every entry
		// would score 0, so return nothing rather than NaN-ordered rows.
		return nil, nil
	}
	const q = `
		SELECT identifier, description, 1 - (embedding <=> $2) AS similarity, extra
		FROM entries WHERE modality = $1
		ORDER BY embedding <=> $2, identifier
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, q, s.modality, pgvector.NewVector(query), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.SearchResult
	for rows.Next() {
		var r model.SearchResult
		if err := rows.Scan(&r.Identifier, &r.Description, &r.Similarity, &r.Extra); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *postgresStore) Close() error {
	return s.db.Close()
}

func isZeroVector(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
