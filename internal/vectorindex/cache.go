package vectorindex

import (
	"context"
	"fmt"
	"sync"

	"kollektiv/internal/config"
)

// Cache lazily opens and reuses one Index per user collection, grounded on
// the teacher's internal/rag/embedder.clientEmbedder pattern of a
// sync.Mutex-guarded lazily-initialized client rather than a connection
// pool. The Worker Pipeline (C11, adding chunks) and the LLM Assistant's
// RetrieverFactory (C13, querying) both resolve a user's Index through one
// shared Cache so a user's Qdrant collection bootstrap only runs once per
// process.
type Cache struct {
	qdrantCfg config.QdrantConfig
	embedCfg  config.EmbeddingConfig

	mu      sync.Mutex
	indexes map[string]*Index
}

func NewCache(qdrantCfg config.QdrantConfig, embedCfg config.EmbeddingConfig) *Cache {
	return &Cache{
		qdrantCfg: qdrantCfg,
		embedCfg:  embedCfg,
		indexes:   make(map[string]*Index),
	}
}

// ForUser returns the cached Index for userID's collection, opening and
// bootstrapping it on first use (§4.8's "collection naming: deterministic
// from user id. Each collection is created on first use").
func (c *Cache) ForUser(ctx context.Context, userID string) (*Index, error) {
	collection := CollectionName(userID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if idx, ok := c.indexes[collection]; ok {
		return idx, nil
	}

	store, err := Open(ctx, c.qdrantCfg, collection, c.embedCfg.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: open collection for user %s: %w", userID, err)
	}
	idx := New(store, c.embedCfg)
	c.indexes[collection] = idx
	return idx, nil
}

// Close releases every opened collection's client connection.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, idx := range c.indexes {
		if err := idx.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
