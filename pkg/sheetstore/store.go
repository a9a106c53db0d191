package sheetstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Ratio1/sheetsync_sdk_go/internal/devseed"
)

// Document is a stored HTML fragment with its metadata.
type Document struct {
	Key       string
	HTML      string
	UpdatedAt string
	UpdatedBy string
}

// Store persists documents by key.
type Store interface {
	// Get returns the document stored under key, or nil when absent.
	Get(ctx context.Context, key string) (*Document, error)
	Put(ctx context.Context, doc Document) error
	Keys(ctx context.Context) ([]string, error)
}

// ErrKeyRequired is returned when a document has an empty key.
var ErrKeyRequired = errors.New("sheetstore: key is required")

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[key]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (s *MemoryStore) Put(ctx context.Context, doc Document) error {
	if strings.TrimSpace(doc.Key) == "" {
		return ErrKeyRequired
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[doc.Key] = doc
	return nil
}

func (s *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.docs))
	for key := range s.docs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Seed writes seed entries into any Store.
func Seed(ctx context.Context, store Store, entries []devseed.DocumentSeedEntry) error {
	for _, e := range entries {
		doc := Document{Key: e.Key, HTML: e.HTML, UpdatedAt: e.UpdatedAt, UpdatedBy: e.UpdatedBy}
		if err := store.Put(ctx, doc); err != nil {
			return fmt.Errorf("sheetstore: seed %q: %w", e.Key, err)
		}
	}
	return nil
}
