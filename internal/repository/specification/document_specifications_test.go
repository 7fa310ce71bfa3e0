package specification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// dryRunDB renders SQL without a server: pgx only parses the DSN until a query runs.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=docassist dbname=docassist sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func render(t *testing.T, specs ...Specification) string {
	t.Helper()
	db := dryRunDB(t)
	return db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []map[string]interface{}
		return ApplyAll(tx.Table("documents AS d"), specs...).Find(&rows)
	})
}

func TestDocumentSpecifications(t *testing.T) {
	tests := []struct {
		name  string
		specs []Specification
		want  []string
	}{
		{
			name:  "not archived",
			specs: []Specification{NotArchived{Alias: DocumentsAlias}},
			want:  []string{"d.status <> 6"},
		},
		{
			name:  "not archived without alias",
			specs: []Specification{NotArchived{}},
			want:  []string{"documents.status <> 6"},
		},
		{
			name:  "by project",
			specs: []Specification{ByProjectID{Alias: DocumentsAlias, ProjectID: 3}},
			want:  []string{"d.project_id = 3"},
		},
		{
			name:  "by ids",
			specs: []Specification{ByDocumentIDs{Alias: DocumentsAlias, IDs: []int64{42, 44}}},
			want:  []string{"d.id IN (42,44)"},
		},
		{
			name: "combined and ordered",
			specs: []Specification{
				NotArchived{Alias: DocumentsAlias},
				ByProjectID{Alias: DocumentsAlias, ProjectID: 3},
				OrderBy{Field: "d.id", Desc: true},
			},
			want: []string{"d.status <> 6", "AND d.project_id = 3", "ORDER BY d.id DESC"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := render(t, tt.specs...)
			for _, fragment := range tt.want {
				assert.Contains(t, sql, fragment)
			}
		})
	}
}
