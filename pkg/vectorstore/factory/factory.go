package factory

import (
	"context"
	"fmt"

	"docassist-be/internal/config"
	"docassist-be/pkg/vectorstore"
	"docassist-be/pkg/vectorstore/memory"
	"docassist-be/pkg/vectorstore/pgvector"
	"docassist-be/pkg/vectorstore/qdrant"

	"gorm.io/gorm"
)

// NewVectorStore builds the configured backend and prepares its schema for vectors of
// the given width. db is only used by pgvector and may be nil otherwise. The returned
// close func releases backend connections it opened itself.
func NewVectorStore(ctx context.Context, cfg config.VectorStoreConfig, db *gorm.DB, dimensions int) (vectorstore.Provider, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Provider {
	case config.VectorStorePgVector:
		if db == nil {
			return nil, nil, fmt.Errorf("pgvector store requires a database connection")
		}
		store := pgvector.NewStore(db)
		if err := store.EnsureSchema(ctx, dimensions); err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case config.VectorStoreQdrant:
		store, err := qdrant.NewStore(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureCollection(ctx, dimensions); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil

	case config.VectorStoreMemory:
		return memory.NewStore(), noop, nil

	default:
		return nil, nil, fmt.Errorf("unsupported vector store: %s", cfg.Provider)
	}
}
