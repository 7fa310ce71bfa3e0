package mapper

import (
	"docassist-be/internal/entity"
	"docassist-be/internal/model"
)

type SourceDocumentMapper struct{}

func NewSourceDocumentMapper() *SourceDocumentMapper {
	return &SourceDocumentMapper{}
}

func (m *SourceDocumentMapper) ToEntity(r *model.DocumentRow) *entity.SourceDocument {
	if r == nil {
		return nil
	}
	return &entity.SourceDocument{
		Id:                r.Id,
		Name:              r.Name,
		Description:       r.Description,
		Type:              r.Type,
		Category:          r.Category,
		Tags:              r.Tags,
		Status:            entity.DocumentStatus(r.Status),
		TransmittalNumber: r.TransmittalNumber,
		Version:           r.Version,
		RevisionNumber:    r.RevisionNumber,
		UploadedAt:        r.UploadedAt,
		ProjectId:         r.ProjectId,
		UploadedByName:    r.UploadedByName,
		ProjectName:       r.ProjectName,
	}
}

func (m *SourceDocumentMapper) ToEntities(rows []*model.DocumentRow) []*entity.SourceDocument {
	out := make([]*entity.SourceDocument, len(rows))
	for i, r := range rows {
		out[i] = m.ToEntity(r)
	}
	return out
}
