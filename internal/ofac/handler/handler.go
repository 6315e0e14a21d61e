// Package handler exposes the panel and ledger over HTTP. The handlers are a
// thin read layer over the run service; the only mutating endpoint is the
// admin-guarded run trigger.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ofactrack/internal/ofac/ledger"
	"ofactrack/internal/ofac/panel"
	"ofactrack/internal/ofac/service"
	"ofactrack/internal/platform/redis"
	"ofactrack/pkg/dates"
	dErrors "ofactrack/pkg/domain-errors"
	"ofactrack/pkg/httputil"
)

// Service defines the run-service surface the handlers need.
type Service interface {
	BuildPanel(ctx context.Context, params service.PanelParams) (*panel.Panel, error)
	Ledger(ctx context.Context) (*ledger.State, error)
	MonthlyUpdate(ctx context.Context, params service.RunParams) (*service.RunResult, error)
}

// Handler wires the sanctions endpoints to the run service.
type Handler struct {
	service Service
	cache   *seriesCache
	logger  *zap.Logger
}

// New constructs a handler. cacheClient may be nil when Redis is not
// configured; the series endpoint then always recomputes.
func New(svc Service, cacheClient *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		service: svc,
		cache:   newSeriesCache(cacheClient, cacheTTL, logger),
		logger:  logger,
	}
}

// Register mounts the read endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/panel", h.HandlePanel)
	r.Get("/v1/countries", h.HandleCountries)
	r.Get("/v1/ledger/{entityID}", h.HandleLedgerEntity)
}

// RegisterAdmin mounts the mutating endpoints behind the guard.
func (h *Handler) RegisterAdmin(r chi.Router, auth *AdminAuth) {
	r.Method(http.MethodPost, "/v1/runs", auth.Require(http.HandlerFunc(h.HandleRun)))
}

// HandlePanel handles GET /v1/panel?country=X&entity_only=true.
// Without a country it returns the full panel.
func (h *Handler) HandlePanel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	country := r.URL.Query().Get("country")
	entityOnly := r.URL.Query().Get("entity_only") == "true"

	if country != "" {
		if rows, ok := h.cache.get(ctx, country, entityOnly); ok {
			httputil.WriteJSON(w, http.StatusOK, PanelResponse{Country: country, Rows: fromPanelRows(rows)})
			return
		}
	}

	p, err := h.service.BuildPanel(ctx, service.PanelParams{EntityOnly: entityOnly})
	if err != nil {
		h.logger.Error("panel build failed", zap.Error(err))
		httputil.WriteError(w, err)
		return
	}

	if country == "" {
		httputil.WriteJSON(w, http.StatusOK, PanelResponse{Rows: fromPanelRows(p.Rows)})
		return
	}

	rows := p.Series(country)
	if len(rows) == 0 {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "no panel series for country %q", country))
		return
	}
	h.cache.set(ctx, country, entityOnly, rows)
	httputil.WriteJSON(w, http.StatusOK, PanelResponse{Country: country, Rows: fromPanelRows(rows)})
}

// HandleCountries handles GET /v1/countries.
func (h *Handler) HandleCountries(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.BuildPanel(r.Context(), service.PanelParams{})
	if err != nil {
		h.logger.Error("panel build failed", zap.Error(err))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CountriesResponse{Countries: p.Countries()})
}

// HandleLedgerEntity handles GET /v1/ledger/{entityID}: every country pairing
// of one entity, active and removed, with full spell history.
func (h *Handler) HandleLedgerEntity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entityID, err := strconv.Atoi(chi.URLParam(r, "entityID"))
	if err != nil || entityID <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadInput, "entity id must be a positive integer"))
		return
	}

	state, err := h.service.Ledger(ctx)
	if err != nil {
		h.logger.Error("ledger load failed", zap.Error(err))
		httputil.WriteError(w, err)
		return
	}

	var pairs []LedgerPairResponse
	for _, e := range state.Entries() {
		if e.Key.EntityID == entityID {
			pairs = append(pairs, fromLedgerEntry(e))
		}
	}
	if len(pairs) == 0 {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "entity %d not in ledger", entityID))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, LedgerEntityResponse{EntityID: entityID, Pairs: pairs})
}

// HandleRun handles POST /v1/runs: triggers a monthly update.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var params service.RunParams
	q := r.URL.Query()
	params.Backfill = q.Get("backfill") == "true"
	params.AllowGap = q.Get("allow_gap") == "true"
	params.EntityOnly = q.Get("entity_only") == "true"
	if asOf := q.Get("as_of"); asOf != "" {
		d, err := dates.ParseDate(asOf)
		if err != nil {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadInput, "as_of must be YYYY-MM-DD, got %q", asOf))
			return
		}
		params.AsOf = d
	}

	result, err := h.service.MonthlyUpdate(ctx, params)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromRunResult(result))
}
