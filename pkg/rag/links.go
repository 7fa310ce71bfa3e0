package rag

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"docassist-be/pkg/vectorstore"
)

const (
	LinkTypeDocument = "document"
	documentDetails  = "/Documents/Details/"
)

// BuildLinks maps the first MaxLinks hits to document links.
func BuildLinks(hits []vectorstore.SearchHit) []ChatLink {
	n := len(hits)
	if n > MaxLinks {
		n = MaxLinks
	}

	links := make([]ChatLink, 0, n)
	for _, h := range hits[:n] {
		projectID := metadataString(h.Metadata["projectId"])
		links = append(links, ChatLink{
			Type:  LinkTypeDocument,
			ID:    h.DocumentID,
			Title: metadataString(h.Metadata["name"]),
			URL:   fmt.Sprintf("%s%d?projectId=%s", documentDetails, h.DocumentID, projectID),
		})
	}
	return links
}

// metadataString renders a metadata value for display. Numbers read back from JSON
// columns arrive as float64 and must not be printed in exponent form.
func metadataString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float32:
		return formatFloat(float64(t))
	case float64:
		return formatFloat(t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
