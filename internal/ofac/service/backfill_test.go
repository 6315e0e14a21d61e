package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"ofactrack/internal/ofac/ledger/store"
	"ofactrack/internal/ofac/models"
	dErrors "ofactrack/pkg/domain-errors"
)

const archiveHeader = "Ent_num,SDN_name,SDN_type,Program,Title,Remarks,Program_cat,Country\n"

type BackfillSuite struct {
	suite.Suite
	dir    string
	store  *store.InMemoryStore
	panels *capturePanel
	svc    *RunService
}

func TestBackfillSuite(t *testing.T) {
	suite.Run(t, new(BackfillSuite))
}

func (s *BackfillSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.store = store.NewInMemory()
	s.panels = &capturePanel{}
	s.svc = New(&fakeSource{lists: map[models.ListCategory]models.RawLists{}}, s.store,
		WithPanelWriter(s.panels))
}

func (s *BackfillSuite) writeArchive(name, body string) {
	err := os.WriteFile(filepath.Join(s.dir, name), []byte(archiveHeader+body), 0o644)
	s.Require().NoError(err)
}

func (s *BackfillSuite) TestReplayRebuildsHistory() {
	ctx := context.Background()
	s.writeArchive("ofac_full_2022-04-30.csv",
		"540,MORGUL SHIPPING,-0-,CUBA,,,SDN,Cuba\n541,KHALED OMAR,individual,SDGT,,,SDN,Syria\n")
	s.writeArchive("ofac_full_2022-05-31.csv",
		"541,KHALED OMAR,individual,SDGT,,,SDN,Syria\n")
	s.writeArchive("ofac_full_2022-06-30.csv",
		"540,MORGUL SHIPPING,-0-,CUBA,,,SDN,Cuba\n541,KHALED OMAR,individual,SDGT,,,SDN,Syria\n")

	result, err := s.svc.BackfillHistorical(ctx, s.dir, false)
	s.Require().NoError(err)

	s.Equal(june, result.ReportDate)
	s.Equal(2, result.ActivePairs)

	state, err := s.store.Load(ctx)
	s.Require().NoError(err)

	morgul, ok := state.Get(models.PairKey{EntityID: 540, Country: "Cuba"})
	s.Require().True(ok)
	s.True(morgul.Active())
	s.Equal(april, morgul.AddDate, "re-addition keeps the original add date")
	s.Require().Len(morgul.Spells, 2)
	s.Equal(may, *morgul.Spells[0].End)

	// Stock-convention panel written once at the end.
	s.Require().Len(s.panels.panels, 1)
	p := s.panels.panels[0]
	for _, r := range p.Rows {
		if r.Country == "Cuba" && r.Date.Equal(april) {
			s.Zero(r.Additions, "first backfilled month is stock")
			s.Equal(1, r.Levels)
		}
	}
}

func (s *BackfillSuite) TestRequiresEmptyLedger() {
	ctx := context.Background()
	s.writeArchive("ofac_full_2022-04-30.csv", "540,MORGUL SHIPPING,-0-,CUBA,,,SDN,Cuba\n")

	_, err := s.svc.BackfillHistorical(ctx, s.dir, false)
	s.Require().NoError(err)

	_, err = s.svc.BackfillHistorical(ctx, s.dir, false)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)
}

func (s *BackfillSuite) TestNoArchivesIsBadInput() {
	_, err := s.svc.BackfillHistorical(context.Background(), s.dir, false)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadInput), "got %v", err)
}

func (s *BackfillSuite) TestMissingColumnIsSchemaError() {
	err := os.WriteFile(filepath.Join(s.dir, "ofac_full_2022-04-30.csv"),
		[]byte("Ent_num,SDN_name\n540,MORGUL SHIPPING\n"), 0o644)
	s.Require().NoError(err)

	_, err = s.svc.BackfillHistorical(context.Background(), s.dir, false)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeSchema), "got %v", err)
}

func (s *BackfillSuite) TestBadArchiveNameIsBadInput() {
	s.writeArchive("ofac_full_not-a-date.csv", "540,MORGUL SHIPPING,-0-,CUBA,,,SDN,Cuba\n")

	_, err := s.svc.BackfillHistorical(context.Background(), s.dir, false)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadInput), "got %v", err)
}
