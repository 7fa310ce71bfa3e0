package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"docassist-be/pkg/vectorstore"
)

// Store is an in-process index using brute-force cosine distance. It backs local
// development and tests; contents are lost on restart.
type Store struct {
	mu   sync.RWMutex
	docs map[int64]*vectorstore.IndexedDocument
}

var (
	_ vectorstore.Provider = (*Store)(nil)
	_ vectorstore.IDLister = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{docs: make(map[int64]*vectorstore.IndexedDocument)}
}

func (s *Store) Name() string {
	return "memory"
}

func (s *Store) Upsert(ctx context.Context, doc *vectorstore.IndexedDocument) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", vectorstore.ErrIndex)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", vectorstore.ErrIndex, err)
	}

	stored := &vectorstore.IndexedDocument{
		DocumentID: doc.DocumentID,
		Text:       doc.Text,
		Embedding:  append([]float32(nil), doc.Embedding...),
		Metadata:   copyMetadata(doc.Metadata),
		AccessList: append([]int64(nil), doc.AccessList...),
	}

	s.mu.Lock()
	s.docs[doc.DocumentID] = stored
	s.mu.Unlock()
	return nil
}

func (s *Store) Search(ctx context.Context, embedding []float32, userID int64, topK int) ([]vectorstore.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", vectorstore.ErrSearch, err)
	}
	topK = vectorstore.NormalizeTopK(topK)

	s.mu.RLock()
	hits := make([]vectorstore.SearchHit, 0, len(s.docs))
	for _, doc := range s.docs {
		if !vectorstore.HasAccess(doc.AccessList, userID) {
			continue
		}
		if len(doc.Embedding) != len(embedding) {
			s.mu.RUnlock()
			return nil, fmt.Errorf("%w: query has %d dimensions, document %d has %d",
				vectorstore.ErrSearch, len(embedding), doc.DocumentID, len(doc.Embedding))
		}
		hits = append(hits, vectorstore.SearchHit{
			DocumentID: doc.DocumentID,
			Text:       doc.Text,
			Metadata:   copyMetadata(doc.Metadata),
			Distance:   cosineDistance(doc.Embedding, embedding),
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance == hits[j].Distance {
			return hits[i].DocumentID < hits[j].DocumentID
		}
		return hits[i].Distance < hits[j].Distance
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *Store) Delete(ctx context.Context, documentID int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", vectorstore.ErrIndex, err)
	}
	s.mu.Lock()
	delete(s.docs, documentID)
	s.mu.Unlock()
	return nil
}

func (s *Store) IndexedIDs(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", vectorstore.ErrSearch, err)
	}
	s.mu.RLock()
	ids := make([]int64, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Len is the number of indexed documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Get returns a copy of the stored entry.
func (s *Store) Get(documentID int64) (*vectorstore.IndexedDocument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return nil, false
	}
	return &vectorstore.IndexedDocument{
		DocumentID: doc.DocumentID,
		Text:       doc.Text,
		Embedding:  append([]float32(nil), doc.Embedding...),
		Metadata:   copyMetadata(doc.Metadata),
		AccessList: append([]int64(nil), doc.AccessList...),
	}, true
}

// cosineDistance is 1 - cosine similarity. A zero vector is treated as orthogonal.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func copyMetadata(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
