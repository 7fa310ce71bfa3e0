package rag

import (
	"fmt"
	"strings"

	"docassist-be/pkg/vectorstore"
)

const (
	DefaultFallbackURL = "https://learn.ineight.com/Document_Enhanced/Content/Categories/Home-Page.htm"

	NoMatchAnswer = "I couldn't find any documents matching your query. You may not have access to relevant documents, or they may not exist."
	ErrorAnswer   = "I encountered an error processing your request. Please try again."

	SystemPrompt = `You are a helpful document management assistant for InEight Document system.
Answer questions based ONLY on the provided context.
Be concise and specific.
If you reference a document, mention its name.
If the context doesn't contain enough information, say so.`

	// ConfidenceThreshold is the score below which the fallback link is attached.
	ConfidenceThreshold = 0.7
	MaxLinks            = 5
	DefaultTopK         = vectorstore.DefaultTopK
)

// BuildContext joins hit texts with a blank line, in result order.
func BuildContext(hits []vectorstore.SearchHit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Text
	}
	return strings.Join(parts, "\n\n")
}

func BuildUserPrompt(context, query string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s", context, query)
}

// Confidence is 1 - min(mean distance, 1), kept inside [0,1].
func Confidence(hits []vectorstore.SearchHit) float64 {
	if len(hits) == 0 {
		return 0
	}
	var sum float64
	for _, h := range hits {
		sum += h.Distance
	}
	avg := sum / float64(len(hits))
	if avg > 1 {
		avg = 1
	}
	c := 1 - avg
	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}
