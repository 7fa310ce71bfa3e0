package factory

import (
	"context"
	"testing"

	"docassist-be/internal/config"
	"docassist-be/pkg/vectorstore/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVectorStore(t *testing.T) {
	ctx := context.Background()

	store, closeFn, err := NewVectorStore(ctx, config.VectorStoreConfig{Provider: config.VectorStoreMemory}, nil, 768)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)
	assert.NoError(t, closeFn())

	_, _, err = NewVectorStore(ctx, config.VectorStoreConfig{Provider: config.VectorStorePgVector}, nil, 768)
	assert.Error(t, err)

	_, _, err = NewVectorStore(ctx, config.VectorStoreConfig{Provider: "faiss"}, nil, 768)
	assert.Error(t, err)
}
