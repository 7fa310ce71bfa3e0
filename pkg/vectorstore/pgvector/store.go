package pgvector

import (
	"context"
	"fmt"
	"time"

	"docassist-be/pkg/vectorstore"

	pgv "github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store keeps the index in a Postgres table with the pgvector extension.
type Store struct {
	db *gorm.DB
}

var (
	_ vectorstore.Provider = (*Store)(nil)
	_ vectorstore.IDLister = (*Store)(nil)
)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Name() string {
	return "pgvector"
}

// EnsureSchema creates the extension, table and indexes if missing and refuses to
// run against a table built for a different dimensionality.
func (s *Store) EnsureSchema(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("pgvector: invalid dimensions %d", dimensions)
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_embeddings (
			document_id BIGINT PRIMARY KEY,
			chunk_text TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			user_access_list JSONB NOT NULL DEFAULT '[]'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`, dimensions),
		`CREATE INDEX IF NOT EXISTS idx_document_embeddings_access ON document_embeddings USING GIN (user_access_list);`,
		`CREATE INDEX IF NOT EXISTS idx_document_embeddings_embedding ON document_embeddings USING hnsw (embedding vector_cosine_ops);`,
	}

	db := s.db.WithContext(ctx)
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("pgvector: ensure schema: %w", err)
		}
	}

	// atttypmod of a vector column is its declared width.
	var width int
	err := db.Raw(`SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'document_embeddings'::regclass AND attname = 'embedding'`).Scan(&width).Error
	if err != nil {
		return fmt.Errorf("pgvector: read embedding width: %w", err)
	}
	if width > 0 && width != dimensions {
		return fmt.Errorf("pgvector: document_embeddings.embedding is vector(%d) but the provider produces %d dimensions", width, dimensions)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, doc *vectorstore.IndexedDocument) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", vectorstore.ErrIndex)
	}

	metadata := datatypes.JSONMap{}
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	access := datatypes.JSONSlice[int64]{}
	access = append(access, doc.AccessList...)

	row := DocumentEmbedding{
		DocumentID:     doc.DocumentID,
		ChunkText:      doc.Text,
		Embedding:      pgv.NewVector(doc.Embedding),
		Metadata:       metadata,
		UserAccessList: access,
		UpdatedAt:      time.Now().UTC(),
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"chunk_text", "embedding", "metadata", "user_access_list", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("%w: upsert document %d: %v", vectorstore.ErrIndex, doc.DocumentID, err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, embedding []float32, userID int64, topK int) ([]vectorstore.SearchHit, error) {
	topK = vectorstore.NormalizeTopK(topK)

	var rows []searchRow
	err := s.db.WithContext(ctx).
		Model(&DocumentEmbedding{}).
		Select("document_id, chunk_text, metadata, embedding <=> ? AS distance", pgv.NewVector(embedding)).
		Where("user_access_list @> ?::jsonb", fmt.Sprintf("[%d]", userID)).
		Order("distance ASC").
		Limit(topK).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vectorstore.ErrSearch, err)
	}

	hits := make([]vectorstore.SearchHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, vectorstore.SearchHit{
			DocumentID: r.DocumentID,
			Text:       r.ChunkText,
			Metadata:   map[string]interface{}(r.Metadata),
			Distance:   r.Distance,
		})
	}
	return hits, nil
}

func (s *Store) Delete(ctx context.Context, documentID int64) error {
	err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Delete(&DocumentEmbedding{}).Error
	if err != nil {
		return fmt.Errorf("%w: delete document %d: %v", vectorstore.ErrIndex, documentID, err)
	}
	return nil
}

// IndexedIDs lists every document id currently in the table.
func (s *Store) IndexedIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&DocumentEmbedding{}).Order("document_id").Pluck("document_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("%w: list ids: %v", vectorstore.ErrSearch, err)
	}
	return ids, nil
}
