package contract

import (
	"context"

	"docassist-be/internal/entity"
	"docassist-be/internal/repository/specification"
)

// DocumentRepository reads the document management system. It never writes.
type DocumentRepository interface {
	// FindActiveDocuments returns every non-archived document joined with its uploader
	// and project names, ordered by id. specs narrow the set further.
	FindActiveDocuments(ctx context.Context, specs ...specification.Specification) ([]*entity.SourceDocument, error)

	// FindAccessibleUserIds returns the project manager, every assigned user and every
	// administrator, de-duplicated and sorted.
	FindAccessibleUserIds(ctx context.Context, projectId int64) ([]int64, error)
}
