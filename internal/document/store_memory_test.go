package document

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veristamp/pkg/domain"
	"veristamp/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) hash(fill string) domain.DocumentHash {
	h, err := domain.ParseDocumentHash("0x" + strings.Repeat(fill, 32))
	s.Require().NoError(err)
	return h
}

func (s *MemoryStoreSuite) newDocument(fill string) *LogicalDocument {
	return &LogicalDocument{
		DocumentHash: s.hash(fill),
		Metadata: Metadata{
			StudentID:        "2021-00001",
			StudentName:      "Juan Dela Cruz",
			DocumentType:     domain.DocumentTypeTOR,
			DateIssued:       time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
			OriginalFileName: "tor_2021-00001.pdf",
		},
	}
}

func (s *MemoryStoreSuite) TestInsertAndLookup() {
	s.Run("inserts and finds by document hash", func() {
		doc := s.newDocument("aa")
		s.Require().NoError(s.store.Insert(s.ctx, doc))

		found, err := s.store.FindByDocumentHash(s.ctx, doc.DocumentHash)
		s.Require().NoError(err)
		s.Equal(doc.Metadata.StudentID, found.Metadata.StudentID)
		s.False(found.CreatedAt.IsZero())
	})

	s.Run("rejects duplicate document hash", func() {
		doc := s.newDocument("bb")
		s.Require().NoError(s.store.Insert(s.ctx, doc))
		s.ErrorIs(s.store.Insert(s.ctx, doc), sentinel.ErrConflict)
	})

	s.Run("returns ErrNotFound for unknown hash", func() {
		_, err := s.store.FindByDocumentHash(s.ctx, s.hash("ff"))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestFindByAnyHash() {
	doc := s.newDocument("cc")
	doc.ContentHash = s.hash("01")
	doc.ProcessedContentHash = s.hash("02")
	doc.WatermarkedContentHash = s.hash("03")
	s.Require().NoError(s.store.Insert(s.ctx, doc))

	for _, h := range []domain.DocumentHash{
		doc.DocumentHash, doc.ContentHash, doc.ProcessedContentHash, doc.WatermarkedContentHash,
	} {
		found, err := s.store.FindByAnyHash(s.ctx, h)
		s.Require().NoError(err)
		s.Equal(doc.DocumentHash, found.DocumentHash)
	}

	_, err := s.store.FindByAnyHash(s.ctx, s.hash("ee"))
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByAnyHash(s.ctx, domain.ZeroHash)
	s.ErrorIs(err, sentinel.ErrNotFound, "zero hash must never match absent variant hashes")
}

func (s *MemoryStoreSuite) TestSearchByFilename() {
	older := s.newDocument("0a")
	older.Metadata.OriginalFileName = "tor_juan.pdf"
	older.CreatedAt = time.Now().Add(-time.Hour)
	s.Require().NoError(s.store.Insert(s.ctx, older))

	newer := s.newDocument("0b")
	newer.Metadata.OriginalFileName = "tor_juan_revised.pdf"
	newer.CreatedAt = time.Now()
	s.Require().NoError(s.store.Insert(s.ctx, newer))

	s.Run("matches substrings most-recent-first", func() {
		matches, err := s.store.SearchByFilename(s.ctx, "tor_juan")
		s.Require().NoError(err)
		s.Require().Len(matches, 2)
		s.Equal(newer.DocumentHash, matches[0].DocumentHash)
	})

	s.Run("matches case-insensitively", func() {
		matches, err := s.store.SearchByFilename(s.ctx, "TOR_JUAN_REVISED")
		s.Require().NoError(err)
		s.Require().Len(matches, 1)
	})

	s.Run("empty fragment matches nothing", func() {
		matches, err := s.store.SearchByFilename(s.ctx, "")
		s.Require().NoError(err)
		s.Empty(matches)
	})
}

func (s *MemoryStoreSuite) TestUpdateFields() {
	doc := s.newDocument("dd")
	s.Require().NoError(s.store.Insert(s.ctx, doc))

	s.Run("applies partial updates", func() {
		processed := s.hash("04")
		path := "processed/dd.pdf"
		verified := true
		err := s.store.UpdateFields(s.ctx, doc.DocumentHash, FieldUpdate{
			ProcessedContentHash: &processed,
			ProcessedFilePath:    &path,
			Verified:             &verified,
		})
		s.Require().NoError(err)

		found, err := s.store.FindByDocumentHash(s.ctx, doc.DocumentHash)
		s.Require().NoError(err)
		s.Equal(processed, found.ProcessedContentHash)
		s.Equal(path, found.ProcessedFilePath)
		s.True(found.Verified)
		s.True(found.ContentHash.IsZero(), "untouched fields must stay absent")
	})

	s.Run("empty update is a no-op", func() {
		s.NoError(s.store.UpdateFields(s.ctx, doc.DocumentHash, FieldUpdate{}))
	})

	s.Run("unknown hash returns ErrNotFound", func() {
		verified := true
		err := s.store.UpdateFields(s.ctx, s.hash("09"), FieldUpdate{Verified: &verified})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
