package model

import "time"

// Views of the document management system's tables. The service only reads them;
// cmd/migrate -dms creates them for local development.

type Document struct {
	Id                int64   `gorm:"primaryKey"`
	ProjectId         int64   `gorm:"not null;index"`
	Name              string  `gorm:"type:varchar(255);not null"`
	Description       *string `gorm:"type:text"`
	Type              *string `gorm:"type:varchar(50)"`
	Category          *string `gorm:"type:varchar(100)"`
	Tags              *string `gorm:"type:text"`
	IsActive          bool
	UploadedById      int64     `gorm:"not null"`
	UploadedAt        time.Time `gorm:"not null"`
	Status            int       `gorm:"not null"`
	TransmittalNumber *string   `gorm:"type:varchar(100)"`
	Version           int
	RevisionNumber    int
	ApprovalStatus    int
}

func (Document) TableName() string {
	return "documents"
}

type User struct {
	Id       int64  `gorm:"primaryKey"`
	Name     string `gorm:"type:varchar(255)"`
	Email    string `gorm:"type:varchar(255)"`
	Role     int
	IsActive bool
}

func (User) TableName() string {
	return "users"
}

type Project struct {
	Id        int64  `gorm:"primaryKey"`
	Name      string `gorm:"type:varchar(255);not null"`
	ManagerId *int64
	IsActive  bool
}

func (Project) TableName() string {
	return "projects"
}

type ProjectUser struct {
	ProjectId  int64 `gorm:"primaryKey"`
	UserId     int64 `gorm:"primaryKey"`
	AssignedAt time.Time
}

func (ProjectUser) TableName() string {
	return "project_users"
}

// DocumentRow is one document joined with its uploader and project names.
type DocumentRow struct {
	Id                int64
	Name              string
	Description       *string
	Type              *string
	Category          *string
	Tags              *string
	Status            int
	TransmittalNumber *string
	Version           int
	RevisionNumber    int
	UploadedAt        time.Time
	ProjectId         int64
	UploadedByName    string
	ProjectName       string
}
