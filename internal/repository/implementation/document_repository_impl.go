package implementation

import (
	"context"

	"docassist-be/internal/entity"
	"docassist-be/internal/mapper"
	"docassist-be/internal/model"
	"docassist-be/internal/repository/contract"
	"docassist-be/internal/repository/specification"

	"gorm.io/gorm"
)

const accessibleUsersQuery = `
SELECT p.manager_id AS user_id FROM projects p WHERE p.id = ? AND p.manager_id IS NOT NULL
UNION
SELECT pu.user_id FROM project_users pu WHERE pu.project_id = ?
UNION
SELECT u.id FROM users u WHERE u.role = ?
ORDER BY user_id`

type DocumentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SourceDocumentMapper
}

func NewDocumentRepository(db *gorm.DB) contract.DocumentRepository {
	return &DocumentRepositoryImpl{
		db:     db,
		mapper: mapper.NewSourceDocumentMapper(),
	}
}

func (r *DocumentRepositoryImpl) FindActiveDocuments(ctx context.Context, specs ...specification.Specification) ([]*entity.SourceDocument, error) {
	var rows []*model.DocumentRow

	query := r.db.WithContext(ctx).
		Table("documents AS d").
		Select(`d.id, d.name, d.description, d.type, d.category, d.tags,
			d.status, d.transmittal_number, d.version, d.revision_number,
			d.uploaded_at, d.project_id,
			u.name AS uploaded_by_name,
			p.name AS project_name`).
		Joins("JOIN users u ON u.id = d.uploaded_by_id").
		Joins("JOIN projects p ON p.id = d.project_id")

	all := append([]specification.Specification{specification.NotArchived{Alias: specification.DocumentsAlias}}, specs...)
	all = append(all, specification.OrderBy{Field: "d.id"})

	if err := specification.ApplyAll(query, all...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(rows), nil
}

func (r *DocumentRepositoryImpl) FindAccessibleUserIds(ctx context.Context, projectId int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Raw(accessibleUsersQuery, projectId, projectId, int(entity.UserRoleAdmin)).
		Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
