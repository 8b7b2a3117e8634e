package document

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"veristamp/pkg/domain"
	"veristamp/pkg/platform/sentinel"
)

// InMemoryStore keeps records in a map. It backs tests and single-node
// deployments; production uses the PostgreSQL store.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[domain.DocumentHash]*LogicalDocument
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[domain.DocumentHash]*LogicalDocument)}
}

func (s *InMemoryStore) Insert(_ context.Context, doc *LogicalDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.DocumentHash]; exists {
		return sentinel.ErrConflict
	}
	stored := *doc
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.UpdatedAt = stored.CreatedAt
	s.docs[doc.DocumentHash] = &stored
	return nil
}

func (s *InMemoryStore) FindByDocumentHash(_ context.Context, hash domain.DocumentHash) (*LogicalDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if doc, ok := s.docs[hash]; ok {
		copied := *doc
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByAnyHash(_ context.Context, hash domain.DocumentHash) (*LogicalDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.docs {
		if doc.MatchesAnyHash(hash) {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) SearchByFilename(_ context.Context, fragment string) ([]*LogicalDocument, error) {
	if fragment == "" {
		return nil, nil
	}
	needle := strings.ToLower(fragment)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*LogicalDocument
	for _, doc := range s.docs {
		haystack := strings.ToLower(strings.Join([]string{
			doc.Metadata.OriginalFileName,
			doc.OriginalFilePath,
			doc.ProcessedFilePath,
			doc.WatermarkedFilePath,
		}, "\n"))
		if strings.Contains(haystack, needle) {
			copied := *doc
			matches = append(matches, &copied)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

func (s *InMemoryStore) UpdateFields(_ context.Context, hash domain.DocumentHash, update FieldUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[hash]
	if !ok {
		return sentinel.ErrNotFound
	}
	update.apply(doc)
	doc.UpdatedAt = time.Now()
	return nil
}
