// Package service orchestrates the monthly pipeline: fetch both list
// categories, flatten them into a snapshot, reconcile against the prior
// ledger, derive the panel, then persist and publish. The panel is derived
// before anything is written so a consistency failure aborts the run with the
// prior state intact.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ofactrack/internal/ofac/events"
	"ofactrack/internal/ofac/ledger"
	"ofactrack/internal/ofac/metrics"
	"ofactrack/internal/ofac/models"
	"ofactrack/internal/ofac/panel"
	"ofactrack/internal/ofac/snapshot"
	"ofactrack/internal/ofac/source"
	"ofactrack/pkg/dates"
	dErrors "ofactrack/pkg/domain-errors"
	"ofactrack/pkg/runcontext"
)

// SourceClient fetches and decodes one list category.
type SourceClient interface {
	FetchList(ctx context.Context, category models.ListCategory) (models.RawLists, source.DecodeStats, error)
}

// LedgerStore persists ledger states between runs.
type LedgerStore interface {
	Load(ctx context.Context) (*ledger.State, error)
	Save(ctx context.Context, state *ledger.State) error
}

// PanelWriter persists one derived panel.
type PanelWriter interface {
	WritePanel(ctx context.Context, p *panel.Panel) error
}

// EventPublisher delivers delta events after a successful run.
type EventPublisher interface {
	Publish(ctx context.Context, evts []events.Event) error
}

// RunService runs the monthly reconciliation pipeline.
type RunService struct {
	source    SourceClient
	store     LedgerStore
	writers   []PanelWriter
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	tracer    trace.Tracer
}

type Option func(s *RunService)

func WithLogger(logger *zap.Logger) Option {
	return func(s *RunService) {
		s.logger = logger
	}
}

// WithPanelWriter adds a panel sink. May be given more than once; every sink
// receives the full panel.
func WithPanelWriter(w PanelWriter) Option {
	return func(s *RunService) {
		s.writers = append(s.writers, w)
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(s *RunService) {
		s.publisher = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *RunService) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *RunService) {
		s.tracer = t
	}
}

// New constructs a RunService.
func New(src SourceClient, store LedgerStore, opts ...Option) *RunService {
	s := &RunService{
		source:    src,
		store:     store,
		publisher: events.NopPublisher{},
		logger:    zap.NewNop(),
		tracer:    noop.NewTracerProvider().Tracer("ofactrack"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunParams tunes one monthly update.
type RunParams struct {
	// AsOf pins the reporting month; zero means the run-context clock.
	AsOf time.Time
	// Backfill dates a first run's additions at the collection start.
	Backfill bool
	// AllowGap confirms reconciling past a skipped month.
	AllowGap bool
	// EntityOnly restricts the panel to organizations.
	EntityOnly bool
}

// RunResult summarizes one completed run.
type RunResult struct {
	RunID       uuid.UUID
	ReportDate  time.Time
	Delta       ledger.Delta
	ActivePairs int
	PanelRows   int
}

// MonthlyUpdate executes the full pipeline for the month AsOf falls in.
func (s *RunService) MonthlyUpdate(ctx context.Context, params RunParams) (*RunResult, error) {
	started := time.Now()

	runID := runcontext.RunID(ctx)
	if runID == (uuid.UUID{}) {
		runID = uuid.New()
		ctx = runcontext.WithRunID(ctx, runID)
	}

	asOf := params.AsOf
	if asOf.IsZero() {
		asOf = runcontext.Now(ctx)
	}
	reportDate := dates.MonthEnd(asOf)

	logger := s.logger.With(
		zap.String("run_id", runID.String()),
		zap.String("report_date", dates.FormatDate(reportDate)),
	)
	logger.Info("monthly update started")

	result, err := s.run(ctx, logger, runID, reportDate, params)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		logger.Error("monthly update failed", zap.Error(err))
	} else {
		logger.Info("monthly update finished",
			zap.Int("added", len(result.Delta.Added)),
			zap.Int("readded", len(result.Delta.Readded)),
			zap.Int("removed", len(result.Delta.Removed)),
			zap.Int("refreshed", result.Delta.Refreshed),
			zap.Int("active_pairs", result.ActivePairs),
			zap.Duration("took", time.Since(started)),
		)
	}
	s.metrics.ObserveRunDuration(outcome, time.Since(started))
	return result, err
}

func (s *RunService) run(ctx context.Context, logger *zap.Logger, runID uuid.UUID, reportDate time.Time, params RunParams) (*RunResult, error) {
	merged, err := s.fetchSnapshot(ctx, reportDate)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "ledger.reconcile")
	prior, err := s.store.Load(ctx)
	if err != nil {
		span.End()
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load ledger")
	}
	firstRun := prior.Empty()

	next, delta, err := ledger.Reconcile(prior, merged, ledger.Options{
		Backfill: params.Backfill,
		AllowGap: params.AllowGap,
	})
	span.End()
	if err != nil {
		return nil, err
	}
	s.metrics.AddDataQualityErrors("bad_key", delta.Rejected)

	// Derive the panel before persisting anything: a drift error must leave
	// the stored ledger untouched.
	ctx, span = s.tracer.Start(ctx, "panel.aggregate")
	p, err := panel.Aggregate(next, panel.Options{
		EntityOnly:        params.EntityOnly,
		FirstMonthIsStock: params.Backfill && firstRun,
	})
	span.End()
	if err != nil {
		return nil, err
	}

	ctx, span = s.tracer.Start(ctx, "persist")
	if err := s.store.Save(ctx, next); err != nil {
		span.End()
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save ledger")
	}
	for _, w := range s.writers {
		if err := w.WritePanel(ctx, p); err != nil {
			span.End()
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "write panel")
		}
	}
	span.End()

	evts := events.FromDelta(runID.String(), reportDate, runcontext.Now(ctx), &delta)
	if err := s.publisher.Publish(ctx, evts); err != nil {
		// The ledger is already saved; a broker outage must not fail the run.
		logger.Warn("publishing delta events failed", zap.Error(err))
	}

	s.metrics.AddPairTransitions("added", len(delta.Added))
	s.metrics.AddPairTransitions("readded", len(delta.Readded))
	s.metrics.AddPairTransitions("removed", len(delta.Removed))
	s.metrics.SetActivePairs(next.ActiveCount())

	return &RunResult{
		RunID:       runID,
		ReportDate:  reportDate,
		Delta:       delta,
		ActivePairs: next.ActiveCount(),
		PanelRows:   len(p.Rows),
	}, nil
}

// fetchSnapshot downloads both list categories concurrently and merges them
// into the current-month snapshot.
func (s *RunService) fetchSnapshot(ctx context.Context, reportDate time.Time) (*snapshot.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "source.fetch")
	defer span.End()

	var sdn, cons *snapshot.Snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, err := s.buildCategory(gctx, models.CategorySDN, reportDate)
		sdn = snap
		return err
	})
	g.Go(func() error {
		snap, err := s.buildCategory(gctx, models.CategoryConsolidated, reportDate)
		cons = snap
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snapshot.Merge(sdn, cons), nil
}

func (s *RunService) buildCategory(ctx context.Context, category models.ListCategory, reportDate time.Time) (*snapshot.Snapshot, error) {
	lists, stats, err := s.source.FetchList(ctx, category)
	if err != nil {
		return nil, err
	}
	s.metrics.AddDataQualityErrors("placeholder", stats.PlaceholderRows)
	s.metrics.AddDataQualityErrors("bad_entity_id", stats.BadEntityID)

	snap, buildStats := snapshot.Build(lists, reportDate)
	s.metrics.AddDataQualityErrors("bad_entity_id", buildStats.BadEntityID)
	s.metrics.SetSnapshotRows(string(category), len(snap.Rows))
	return snap, nil
}

// PanelParams tunes a standalone panel build.
type PanelParams struct {
	EntityOnly        bool
	FirstMonthIsStock bool
}

// BuildPanel derives the panel from the stored ledger without running an
// update. Nothing is written; callers get the panel to inspect or serve.
func (s *RunService) BuildPanel(ctx context.Context, params PanelParams) (*panel.Panel, error) {
	state, err := s.store.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load ledger")
	}
	return panel.Aggregate(state, panel.Options{
		EntityOnly:        params.EntityOnly,
		FirstMonthIsStock: params.FirstMonthIsStock,
	})
}

// RebuildPanel derives the panel from the stored ledger and writes it to all
// configured sinks.
func (s *RunService) RebuildPanel(ctx context.Context, params PanelParams) (*panel.Panel, error) {
	p, err := s.BuildPanel(ctx, params)
	if err != nil {
		return nil, err
	}
	for _, w := range s.writers {
		if err := w.WritePanel(ctx, p); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "write panel")
		}
	}
	return p, nil
}

// Ledger returns the current stored ledger state.
func (s *RunService) Ledger(ctx context.Context) (*ledger.State, error) {
	state, err := s.store.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load ledger")
	}
	return state, nil
}
