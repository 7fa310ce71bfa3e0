package pgvector

import (
	"time"

	pgv "github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// DocumentEmbedding is one row of document_embeddings. The vector column's width is
// fixed by EnsureSchema from the active provider's dimensionality.
type DocumentEmbedding struct {
	DocumentID     int64                      `gorm:"column:document_id;primaryKey;autoIncrement:false"`
	ChunkText      string                     `gorm:"column:chunk_text;type:text;not null"`
	Embedding      pgv.Vector                 `gorm:"column:embedding;type:vector"`
	Metadata       datatypes.JSONMap          `gorm:"column:metadata;type:jsonb"`
	UserAccessList datatypes.JSONSlice[int64] `gorm:"column:user_access_list;type:jsonb"`
	UpdatedAt      time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

func (DocumentEmbedding) TableName() string {
	return "document_embeddings"
}

type searchRow struct {
	DocumentID int64
	ChunkText  string
	Metadata   datatypes.JSONMap
	Distance   float64
}
