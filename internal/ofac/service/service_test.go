package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ofactrack/internal/ofac/events"
	"ofactrack/internal/ofac/ledger/store"
	"ofactrack/internal/ofac/models"
	"ofactrack/internal/ofac/panel"
	"ofactrack/internal/ofac/source"
	dErrors "ofactrack/pkg/domain-errors"
	"ofactrack/pkg/runcontext"
)

var (
	april = time.Date(2022, time.April, 30, 0, 0, 0, 0, time.UTC)
	may   = time.Date(2022, time.May, 31, 0, 0, 0, 0, time.UTC)
	june  = time.Date(2022, time.June, 30, 0, 0, 0, 0, time.UTC)
)

// fakeSource serves canned record sets per category.
type fakeSource struct {
	mu    sync.Mutex
	lists map[models.ListCategory]models.RawLists
	err   error
}

func (f *fakeSource) FetchList(ctx context.Context, category models.ListCategory) (models.RawLists, source.DecodeStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.RawLists{}, source.DecodeStats{}, f.err
	}
	lists := f.lists[category]
	lists.Category = category
	return lists, source.DecodeStats{}, nil
}

func (f *fakeSource) set(category models.ListCategory, lists models.RawLists) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[category] = lists
}

// capturePanel records every written panel.
type capturePanel struct {
	panels []*panel.Panel
}

func (c *capturePanel) WritePanel(ctx context.Context, p *panel.Panel) error {
	c.panels = append(c.panels, p)
	return nil
}

// capturePublisher records every published event batch.
type capturePublisher struct {
	events []events.Event
}

func (c *capturePublisher) Publish(ctx context.Context, evts []events.Event) error {
	c.events = append(c.events, evts...)
	return nil
}

func listsWithPairs(pairs map[int]string) models.RawLists {
	var lists models.RawLists
	for id, country := range pairs {
		lists.Primary = append(lists.Primary, models.EntityRecord{
			EntityID: id, Name: "ENTITY", Type: models.TypeEntity,
		})
		lists.Address = append(lists.Address, models.AddressRecord{
			EntityID: id, Country: country,
		})
	}
	return lists
}

type RunServiceSuite struct {
	suite.Suite
	src       *fakeSource
	store     *store.InMemoryStore
	panels    *capturePanel
	publisher *capturePublisher
	svc       *RunService
}

func TestRunServiceSuite(t *testing.T) {
	suite.Run(t, new(RunServiceSuite))
}

func (s *RunServiceSuite) SetupTest() {
	s.src = &fakeSource{lists: map[models.ListCategory]models.RawLists{}}
	s.store = store.NewInMemory()
	s.panels = &capturePanel{}
	s.publisher = &capturePublisher{}
	s.svc = New(s.src, s.store,
		WithPanelWriter(s.panels),
		WithPublisher(s.publisher),
	)
}

func (s *RunServiceSuite) TestMonthlyUpdateFirstRun() {
	s.src.set(models.CategorySDN, listsWithPairs(map[int]string{540: "Cuba"}))
	s.src.set(models.CategoryConsolidated, listsWithPairs(map[int]string{900: "Iran"}))

	result, err := s.svc.MonthlyUpdate(context.Background(), RunParams{AsOf: april})
	s.Require().NoError(err)

	s.Equal(april, result.ReportDate)
	s.Len(result.Delta.Added, 2)
	s.Equal(2, result.ActivePairs)
	s.Equal(2, result.PanelRows)

	// Ledger persisted.
	state, err := s.store.Load(context.Background())
	s.Require().NoError(err)
	s.Equal(2, state.ActiveCount())

	nsdn, ok := state.Get(models.PairKey{EntityID: 900, Country: "Iran"})
	s.Require().True(ok)
	s.Equal(models.CategoryConsolidated, nsdn.ProgramCategory)

	// Panel written once, events published per added pair.
	s.Require().Len(s.panels.panels, 1)
	s.Len(s.publisher.events, 2)
	s.Equal(events.KindAdded, s.publisher.events[0].Kind)
}

func (s *RunServiceSuite) TestMonthlyUpdateRemovalCycle() {
	ctx := context.Background()
	s.src.set(models.CategorySDN, listsWithPairs(map[int]string{540: "Cuba", 541: "Syria"}))
	s.src.set(models.CategoryConsolidated, models.RawLists{})

	_, err := s.svc.MonthlyUpdate(ctx, RunParams{AsOf: april})
	s.Require().NoError(err)

	s.src.set(models.CategorySDN, listsWithPairs(map[int]string{541: "Syria"}))
	result, err := s.svc.MonthlyUpdate(ctx, RunParams{AsOf: may})
	s.Require().NoError(err)

	s.Equal([]models.PairKey{{EntityID: 540, Country: "Cuba"}}, result.Delta.Removed)
	s.Equal(1, result.ActivePairs)

	var removed []events.Event
	for _, e := range s.publisher.events {
		if e.Kind == events.KindRemoved {
			removed = append(removed, e)
		}
	}
	s.Require().Len(removed, 1)
	s.Equal(540, removed[0].EntityID)
	s.Equal("2022-05-31", removed[0].ReportDate)
}

func (s *RunServiceSuite) TestMonthlyUpdateUsesRunContextClock() {
	s.src.set(models.CategorySDN, listsWithPairs(map[int]string{540: "Cuba"}))
	s.src.set(models.CategoryConsolidated, models.RawLists{})

	ctx := runcontext.WithTime(context.Background(), time.Date(2022, time.April, 12, 10, 0, 0, 0, time.UTC))
	result, err := s.svc.MonthlyUpdate(ctx, RunParams{})
	s.Require().NoError(err)
	s.Equal(april, result.ReportDate, "report date normalizes the injected clock to month-end")
}

func (s *RunServiceSuite) TestMonthlyUpdateFetchFailureLeavesLedgerUntouched() {
	ctx := context.Background()
	s.src.set(models.CategorySDN, listsWithPairs(map[int]string{540: "Cuba"}))
	s.src.set(models.CategoryConsolidated, models.RawLists{})
	_, err := s.svc.MonthlyUpdate(ctx, RunParams{AsOf: april})
	s.Require().NoError(err)

	s.src.err = dErrors.New(dErrors.CodeRetrieval, "download failed")
	_, err = s.svc.MonthlyUpdate(ctx, RunParams{AsOf: may})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeRetrieval))

	state, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Equal(april, state.LastReportDate(), "failed run must not advance the ledger")
	s.Len(s.panels.panels, 1, "failed run must not rewrite the panel")
}

func (s *RunServiceSuite) TestMonthlyUpdateTemporalOrder() {
	ctx := context.Background()
	s.src.set(models.CategorySDN, listsWithPairs(map[int]string{540: "Cuba"}))
	s.src.set(models.CategoryConsolidated, models.RawLists{})

	_, err := s.svc.MonthlyUpdate(ctx, RunParams{AsOf: may})
	s.Require().NoError(err)

	_, err = s.svc.MonthlyUpdate(ctx, RunParams{AsOf: april})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTemporalOrder), "got %v", err)
}

func (s *RunServiceSuite) TestBuildAndRebuildPanel() {
	ctx := context.Background()
	s.src.set(models.CategorySDN, listsWithPairs(map[int]string{540: "Cuba"}))
	s.src.set(models.CategoryConsolidated, models.RawLists{})
	_, err := s.svc.MonthlyUpdate(ctx, RunParams{AsOf: april})
	s.Require().NoError(err)

	p, err := s.svc.BuildPanel(ctx, PanelParams{})
	s.Require().NoError(err)
	s.Len(p.Rows, 1)
	s.Len(s.panels.panels, 1, "BuildPanel never writes")

	_, err = s.svc.RebuildPanel(ctx, PanelParams{})
	s.Require().NoError(err)
	s.Len(s.panels.panels, 2, "RebuildPanel writes to every sink")
}
