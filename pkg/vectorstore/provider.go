package vectorstore

import (
	"context"
	"errors"
)

// DefaultTopK is used when a caller passes topK <= 0.
const DefaultTopK = 10

var (
	// ErrSearch wraps every failure of a nearest-neighbour query.
	ErrSearch = errors.New("vectorstore: search failed")
	// ErrIndex wraps every failure of a write (upsert or delete).
	ErrIndex = errors.New("vectorstore: index write failed")
)

// IndexedDocument is one searchable entry, keyed by the DMS document id.
type IndexedDocument struct {
	DocumentID int64
	Text       string
	Embedding  []float32
	Metadata   map[string]interface{}
	// AccessList holds every user id allowed to retrieve this entry.
	AccessList []int64
}

type SearchHit struct {
	DocumentID int64
	Text       string
	Metadata   map[string]interface{}
	// Distance is smaller for closer matches.
	Distance float64
}

// Provider is implemented by every index backend. Implementations must tolerate
// concurrent searches alongside a single writer.
type Provider interface {
	// Upsert replaces text, embedding, metadata and access list in one write.
	Upsert(ctx context.Context, doc *IndexedDocument) error

	// Search returns at most topK hits visible to userID, closest first.
	// No match yields an empty slice and a nil error.
	Search(ctx context.Context, embedding []float32, userID int64, topK int) ([]SearchHit, error)

	// Delete is a no-op for an unknown id.
	Delete(ctx context.Context, documentID int64) error

	Name() string
}

// NormalizeTopK maps a non-positive topK to DefaultTopK.
func NormalizeTopK(topK int) int {
	if topK <= 0 {
		return DefaultTopK
	}
	return topK
}

// HasAccess reports whether userID is on the access list.
func HasAccess(accessList []int64, userID int64) bool {
	for _, id := range accessList {
		if id == userID {
			return true
		}
	}
	return false
}

// IDLister is implemented by backends that can enumerate the ids they hold.
type IDLister interface {
	IndexedIDs(ctx context.Context) ([]int64, error)
}
