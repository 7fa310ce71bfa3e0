package entity

import "time"

type DocumentStatus int

const (
	DocumentStatusDraft      DocumentStatus = 1
	DocumentStatusInReview   DocumentStatus = 2
	DocumentStatusIFC        DocumentStatus = 3 // Issued for Construction
	DocumentStatusApproved   DocumentStatus = 4
	DocumentStatusSuperseded DocumentStatus = 5
	DocumentStatusArchived   DocumentStatus = 6
)

type UserRole int

const (
	UserRoleAdmin          UserRole = 1
	UserRoleProjectManager UserRole = 2
	UserRoleProjectUser    UserRole = 3
)

// SourceDocument is a document as read from the system of record, with the
// uploader and project already resolved to names.
type SourceDocument struct {
	Id                int64
	Name              string
	Description       *string
	Type              *string
	Category          *string
	Tags              *string
	Status            DocumentStatus
	TransmittalNumber *string
	Version           int
	RevisionNumber    int
	UploadedAt        time.Time
	ProjectId         int64
	UploadedByName    string
	ProjectName       string
}
