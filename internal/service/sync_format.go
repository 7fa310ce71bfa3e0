package service

import (
	"fmt"
	"strings"

	"docassist-be/internal/entity"
)

// FormatDocumentText renders the canonical block that is embedded and later shown to
// the model as context.
func FormatDocumentText(d *entity.SourceDocument) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Document: %s\n", d.Name)
	fmt.Fprintf(&sb, "Description: %s\n", orDefault(d.Description, "No description"))
	fmt.Fprintf(&sb, "Type: %s\n", orDefault(d.Type, "Unknown"))
	fmt.Fprintf(&sb, "Category: %s\n", orDefault(d.Category, "Uncategorized"))
	fmt.Fprintf(&sb, "Status: %d\n", int(d.Status))
	fmt.Fprintf(&sb, "Project: %s\n", d.ProjectName)
	fmt.Fprintf(&sb, "Uploaded By: %s on %s\n", d.UploadedByName, d.UploadedAt.Format("2006-01-02"))
	fmt.Fprintf(&sb, "Transmittal: %s\n", orDefault(d.TransmittalNumber, "None"))
	fmt.Fprintf(&sb, "Version: %d, Revision: %d", d.Version, d.RevisionNumber)
	return sb.String()
}

// ExtractMetadata returns the fields the query side needs to build links.
func ExtractMetadata(d *entity.SourceDocument) map[string]interface{} {
	docType := ""
	if d.Type != nil {
		docType = *d.Type
	}
	return map[string]interface{}{
		"documentId":  d.Id,
		"name":        d.Name,
		"type":        docType,
		"projectId":   d.ProjectId,
		"projectName": d.ProjectName,
		"status":      int(d.Status),
	}
}

func orDefault(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
