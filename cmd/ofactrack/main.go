// Command ofactrack runs the monthly sanctions pipeline and serves the
// derived panel.
//
// Subcommands:
//
//	update         fetch the current lists and reconcile one month
//	rebuild-panel  rederive the panel from the stored ledger
//	backfill       replay archived monthly snapshots into an empty ledger
//	serve          expose the panel and ledger over HTTP
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"ofactrack/internal/ofac/events"
	"ofactrack/internal/ofac/handler"
	"ofactrack/internal/ofac/ledger/store"
	"ofactrack/internal/ofac/metrics"
	panelstore "ofactrack/internal/ofac/panel/store"
	"ofactrack/internal/ofac/service"
	"ofactrack/internal/ofac/source"
	"ofactrack/internal/platform/config"
	"ofactrack/internal/platform/httpserver"
	"ofactrack/internal/platform/logger"
	"ofactrack/internal/platform/postgres"
	"ofactrack/internal/platform/redis"
	"ofactrack/pkg/dates"
	dErrors "ofactrack/pkg/domain-errors"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	log, err := logger.New(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd := os.Args[1]; cmd {
	case "update":
		err = runUpdate(ctx, cfg, log, os.Args[2:])
	case "rebuild-panel":
		err = runRebuildPanel(ctx, cfg, log, os.Args[2:])
	case "backfill":
		err = runBackfill(ctx, cfg, log, os.Args[2:])
	case "serve":
		err = runServe(ctx, cfg, log, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Error("command failed", zap.Error(err))
		os.Exit(exitCode(err))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ofactrack <update|rebuild-panel|backfill|serve> [flags]")
}

// exitCode maps domain error codes onto stable exit codes so schedulers can
// distinguish a transient download failure from a corrupted ledger.
func exitCode(err error) int {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeBadInput:
		return 2
	case dErrors.CodeRetrieval:
		return 3
	case dErrors.CodeSchema:
		return 4
	case dErrors.CodeTemporalOrder:
		return 5
	case dErrors.CodeConsistency:
		return 6
	case dErrors.CodeConflict:
		return 7
	default:
		return 1
	}
}

// deps bundles the wired pipeline with the resources it must release.
type deps struct {
	svc      *service.RunService
	redis    *redis.Client
	pgHealth handler.HealthChecker
	closers  []func() error
}

func (d *deps) close(log *zap.Logger) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			log.Warn("closing dependency failed", zap.Error(err))
		}
	}
}

type dbHealth struct{ db interface{ PingContext(context.Context) error } }

func (h dbHealth) Health(ctx context.Context) error { return h.db.PingContext(ctx) }

// build wires the pipeline from configuration. Optional integrations are
// enabled by the presence of their settings.
func build(ctx context.Context, cfg config.Config, log *zap.Logger) (*deps, error) {
	d := &deps{}

	var ledgerStore service.LedgerStore
	switch cfg.LedgerBackend {
	case "postgres":
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, db.Close)
		d.pgHealth = dbHealth{db: db}
		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			d.close(log)
			return nil, err
		}
		ledgerStore = pg
	case "csv":
		ledgerStore = store.NewCSV(filepath.Join(cfg.DataDir, "ofac_list.csv"))
	default:
		return nil, dErrors.Newf(dErrors.CodeBadInput, "unknown ledger backend %q", cfg.LedgerBackend)
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
		service.WithTracer(otel.Tracer("ofactrack")),
		service.WithPanelWriter(panelstore.NewCSV(filepath.Join(cfg.DataDir, "ofac_panel.csv"))),
	}

	if cfg.ClickHouseAddr != "" {
		ch, err := panelstore.NewClickHouse(ctx, panelstore.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			d.close(log)
			return nil, err
		}
		d.closers = append(d.closers, ch.Close)
		opts = append(opts, service.WithPanelWriter(ch))
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub, err := events.NewKafka(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			d.close(log)
			return nil, err
		}
		d.closers = append(d.closers, pub.Close)
		opts = append(opts, service.WithPublisher(pub))
	}

	if cfg.RedisURL != "" {
		rdb, err := redis.New(cfg.RedisURL)
		if err != nil {
			d.close(log)
			return nil, err
		}
		d.redis = rdb
		d.closers = append(d.closers, rdb.Close)
	}

	src := source.NewClient(cfg.SourceBaseURL, log)
	d.svc = service.New(src, ledgerStore, opts...)
	return d, nil
}

func runUpdate(ctx context.Context, cfg config.Config, log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	backfill := fs.Bool("backfill", false, "date a first run's additions at the collection start")
	allowGap := fs.Bool("allow-gap", false, "confirm reconciling past a skipped month")
	entityOnly := fs.Bool("entity-only", false, "restrict the panel to organizations")
	asOf := fs.String("as-of", "", "reporting date override (YYYY-MM-DD)")
	fs.Parse(args)

	params := service.RunParams{
		Backfill:   *backfill,
		AllowGap:   *allowGap,
		EntityOnly: *entityOnly,
	}
	if *asOf != "" {
		d, err := dates.ParseDate(*asOf)
		if err != nil {
			return dErrors.Newf(dErrors.CodeBadInput, "-as-of must be YYYY-MM-DD, got %q", *asOf)
		}
		params.AsOf = d
	}

	d, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.close(log)

	_, err = d.svc.MonthlyUpdate(ctx, params)
	return err
}

func runRebuildPanel(ctx context.Context, cfg config.Config, log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("rebuild-panel", flag.ExitOnError)
	entityOnly := fs.Bool("entity-only", false, "restrict the panel to organizations")
	stock := fs.Bool("first-month-stock", false, "report the first month's additions as zero")
	fs.Parse(args)

	d, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.close(log)

	p, err := d.svc.RebuildPanel(ctx, service.PanelParams{
		EntityOnly:        *entityOnly,
		FirstMonthIsStock: *stock,
	})
	if err != nil {
		return err
	}
	log.Info("panel rebuilt", zap.Int("rows", len(p.Rows)), zap.Int("countries", len(p.Countries())))
	return nil
}

func runBackfill(ctx context.Context, cfg config.Config, log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	dir := fs.String("dir", "", "directory holding ofac_full_YYYY-MM-DD.csv archives")
	entityOnly := fs.Bool("entity-only", false, "restrict the panel to organizations")
	fs.Parse(args)

	if *dir == "" {
		return dErrors.New(dErrors.CodeBadInput, "backfill requires -dir")
	}

	d, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.close(log)

	result, err := d.svc.BackfillHistorical(ctx, *dir, *entityOnly)
	if err != nil {
		return err
	}
	log.Info("backfill finished",
		zap.String("ledger_head", dates.FormatDate(result.ReportDate)),
		zap.Int("active_pairs", result.ActivePairs),
		zap.Int("panel_rows", result.PanelRows),
	)
	return nil
}

func runServe(ctx context.Context, cfg config.Config, log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", cfg.Addr, "listen address")
	fs.Parse(args)

	d, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.close(log)

	h := handler.New(d.svc, d.redis, cfg.PanelCacheTTL, log)
	auth := handler.NewAdminAuth(cfg.AdminTokenHash, cfg.JWTSigningKey, log)

	checks := map[string]handler.HealthChecker{}
	if d.redis != nil {
		checks["redis"] = d.redis
	}
	if d.pgHealth != nil {
		checks["postgres"] = d.pgHealth
	}

	srv := httpserver.New(*addr, handler.NewRouter(h, auth, checks))

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
