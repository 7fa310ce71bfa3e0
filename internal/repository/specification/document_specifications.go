package specification

import (
	"fmt"

	"docassist-be/internal/entity"

	"gorm.io/gorm"
)

// DocumentsAlias is the alias DocumentRepository gives the documents table.
const DocumentsAlias = "d"

// NotArchived excludes archived documents. Alias is the documents table alias.
type NotArchived struct {
	Alias string
}

func (s NotArchived) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(fmt.Sprintf("%s.status <> ?", column(s.Alias)), int(entity.DocumentStatusArchived))
}

// ByProjectID restricts documents to one project.
type ByProjectID struct {
	Alias     string
	ProjectID int64
}

func (s ByProjectID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(fmt.Sprintf("%s.project_id = ?", column(s.Alias)), s.ProjectID)
}

// ByDocumentIDs restricts documents to the given ids.
type ByDocumentIDs struct {
	Alias string
	IDs   []int64
}

func (s ByDocumentIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(fmt.Sprintf("%s.id IN ?", column(s.Alias)), s.IDs)
}

// OrderBy applies ordering
type OrderBy struct {
	Field string
	Desc  bool
}

func (s OrderBy) Apply(db *gorm.DB) *gorm.DB {
	direction := "ASC"
	if s.Desc {
		direction = "DESC"
	}
	return db.Order(fmt.Sprintf("%s %s", s.Field, direction))
}

func column(alias string) string {
	if alias == "" {
		return "documents"
	}
	return alias
}
