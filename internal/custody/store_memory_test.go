package custody

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "AST-missing")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestSaveAndGet() {
	asset := Asset{
		Tag:         "AST-7",
		Sensitivity: id.SensitivityHigh,
		Status:      StatusAvailable,
		Site:        id.SiteID(uuid.New()),
	}
	s.Require().NoError(s.store.Save(s.ctx, asset))

	got, err := s.store.Get(s.ctx, "AST-7")
	s.Require().NoError(err)
	s.Equal(asset, got)
}

func (s *InMemoryStoreSuite) TestListSortedByTag() {
	site := id.SiteID(uuid.New())
	for _, tag := range []id.AssetTag{"AST-3", "AST-1", "AST-2"} {
		s.Require().NoError(s.store.Save(s.ctx, Asset{Tag: tag, Status: StatusAvailable, Site: site}))
	}
	assets, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(assets, 3)
	s.Equal(id.AssetTag("AST-1"), assets[0].Tag)
	s.Equal(id.AssetTag("AST-3"), assets[2].Tag)
}

func (s *InMemoryStoreSuite) TestSaveOverwrites() {
	site := id.SiteID(uuid.New())
	s.Require().NoError(s.store.Save(s.ctx, Asset{Tag: "AST-1", Status: StatusAvailable, Site: site}))

	holder := id.UserID(uuid.New())
	s.Require().NoError(s.store.Save(s.ctx, Asset{
		Tag: "AST-1", Status: StatusCheckedOut, Custodian: &holder, Site: site,
	}))

	got, err := s.store.Get(s.ctx, "AST-1")
	s.Require().NoError(err)
	s.Equal(StatusCheckedOut, got.Status)
	s.Require().NotNil(got.Custodian)
	s.Equal(holder, *got.Custodian)
}
