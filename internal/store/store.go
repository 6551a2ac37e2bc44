// Package store provides the per-modality embedding stores. A store maps an
// item identifier to its description, embedding vector and optional payload,
// survives restarts, and serves top-k cosine-similarity search over a full
// scan of its entries.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/semdex/semdex/internal/model"
)

// Store is one modality's embedding store. Writes are not safe for
// concurrent use with each other or with an in-progress search on the same
// store; the indexing orchestrator serializes access.
type Store interface {
	// Upsert replaces any prior entry with the same identifier.
	Upsert(ctx context.Context, entry *model.Entry) error
	// UpsertBatch writes all entries in a single transaction so that a
	// cancelled run never leaves a file half-committed.
	UpsertBatch(ctx context.Context, entries []*model.Entry) error
	Get(ctx context.Context, identifier string) (*model.Entry, bool, error)
	All(ctx context.Context) ([]*model.Entry, error)
	// Search ranks every entry against the query vector and returns at most
	// topK results, best first. A zero-norm query or entry scores 0.
	Search(ctx context.Context, query []float32, topK int) ([]model.SearchResult, error)
	Close() error
}

type Factory func(modality string, args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

// New opens the store backend named by typ for one modality.
func New(typ string, modality string, args interface{}) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(typ))
	if key == "" {
		return nil, fmt.Errorf("store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported store type: %s", typ)
	}
	return factory(modality, args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}
