/*
handlers.go - HTTP API handlers for the incentive engine

PURPOSE:
  Exposes the computed leaderboard, the rupee incentives, the scoring
  configuration and run triggers over REST. Handles HTTP request/response
  and JSON serialization; all computation lives in leaderboard/ and
  schedule/.

ENDPOINTS:
  Leaderboard:
    GET    /api/leaderboard/{month}         Public board, ranked
    GET    /api/leaderboard/{month}/{rm}    One RM's board row

  Incentives:
    GET    /api/incentives/{month}          Incentive rows with totals
    GET    /api/incentives/{month}/{rm}     One RM's incentive row

  Config:
    GET    /api/config                      List scoring documents
    GET    /api/config/export               All documents as YAML
    POST   /api/config/import               Replace documents from YAML
    GET    /api/config/{domain}             One document
    PUT    /api/config/{domain}             Replace one document

  Admin:
    POST   /api/admin/run                   Run the pipeline now
    GET    /api/runs                        Pipeline run records

  Scenarios:
    GET    /api/scenarios                   List demo scenarios
    POST   /api/scenarios/load              Load a demo scenario

NOT YET COMPUTED:
  A missing row for a valid month is not an error. Single-row endpoints
  return 200 with "computed": false; list endpoints return an empty list.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid month, invalid config document
  - 503: Scoring configuration unavailable
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/model"
	"github.com/warp/incentive-engine/schedule"
	"github.com/warp/incentive-engine/scoring"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the storage the API reads and seeds.
type Store interface {
	model.SourceWriter
	model.BoardStore
	model.RunStore
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    Store
	Resolver *config.Resolver
	Runner   *schedule.Runner

	// Anchor resolves the month a run targets when the request names none.
	Anchor func() (model.Month, error)

	logger   *slog.Logger
	validate *validator.Validate

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(store Store, resolver *config.Resolver, runner *schedule.Runner, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		Store:    store,
		Resolver: resolver,
		Runner:   runner,
		Anchor:   func() (model.Month, error) { return model.CurrentMonth(), nil },
		logger:   logger.With("component", "api"),
		validate: validator.New(),
	}
}

// =============================================================================
// LEADERBOARD HANDLERS
// =============================================================================

// GetLeaderboard returns a month's public board, highest total first.
// GET /api/leaderboard/{month}?limit=N
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	m, ok := monthParam(w, r)
	if !ok {
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}

	rows, err := h.Store.ListPublicRows(r.Context(), m)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leaderboard", err)
		return
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalPointsPublic != rows[j].TotalPointsPublic {
			return rows[i].TotalPointsPublic > rows[j].TotalPointsPublic
		}
		return rows[i].RMName < rows[j].RMName
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	ranked := make([]RankedRowDTO, len(rows))
	for i, row := range rows {
		ranked[i] = RankedRowDTO{Rank: i + 1, PublicLeaderboardRow: row}
	}
	writeJSON(w, http.StatusOK, LeaderboardResponse{Month: m, Count: len(ranked), Rows: ranked})
}

// GetPublicRow returns one RM's board row.
// GET /api/leaderboard/{month}/{rm}
func (h *Handler) GetPublicRow(w http.ResponseWriter, r *http.Request) {
	m, ok := monthParam(w, r)
	if !ok {
		return
	}
	rm := pathParam(r, "rm")

	row, err := h.Store.GetPublicRow(r.Context(), rm, m)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get leaderboard row", err)
		return
	}
	writeJSON(w, http.StatusOK, PublicRowResponse{Computed: row != nil, RMName: rm, Month: m, Row: row})
}

// =============================================================================
// INCENTIVE HANDLERS
// =============================================================================

// ListIncentives returns a month's incentive rows and stream totals.
// GET /api/incentives/{month}
func (h *Handler) ListIncentives(w http.ResponseWriter, r *http.Request) {
	m, ok := monthParam(w, r)
	if !ok {
		return
	}

	rows, err := h.Store.ListIncentiveRows(r.Context(), m)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list incentives", err)
		return
	}
	if rows == nil {
		rows = []model.RupeeIncentiveRow{}
	}

	resp := IncentivesResponse{Month: m, Count: len(rows), Rows: rows}
	totals, ins, mf := make([]float64, len(rows)), make([]float64, len(rows)), make([]float64, len(rows))
	for i, row := range rows {
		totals[i], ins[i], mf[i] = row.TotalIncentive, row.InsRupeesTotal, row.MFRupees
	}
	resp.TotalIncentive = scoring.Sum2(totals...)
	resp.InsRupees = scoring.Sum2(ins...)
	resp.MFRupees = scoring.Sum2(mf...)
	writeJSON(w, http.StatusOK, resp)
}

// GetIncentiveRow returns one RM's incentive row.
// GET /api/incentives/{month}/{rm}
func (h *Handler) GetIncentiveRow(w http.ResponseWriter, r *http.Request) {
	m, ok := monthParam(w, r)
	if !ok {
		return
	}
	rm := pathParam(r, "rm")

	row, err := h.Store.GetIncentiveRow(r.Context(), rm, m)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get incentive row", err)
		return
	}
	writeJSON(w, http.StatusOK, IncentiveRowResponse{Computed: row != nil, RMName: rm, Month: m, Row: row})
}

// =============================================================================
// CONFIG HANDLERS
// =============================================================================

var domainShortNames = map[config.Domain]string{
	config.DomainSIP:         "sip",
	config.DomainInsurance:   "insurance",
	config.DomainReferral:    "referral",
	config.DomainLeaderboard: "leaderboard",
}

// ListConfig lists the scoring documents.
// GET /api/config
func (h *Handler) ListConfig(w http.ResponseWriter, r *http.Request) {
	out := make([]ConfigDomainDTO, 0, len(config.Domains))
	for _, d := range config.Domains {
		out = append(out, ConfigDomainDTO{ID: string(d), ShortName: domainShortNames[d]})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetConfig returns one scoring document, bootstrapping defaults if absent.
// GET /api/config/{domain}
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	d, ok := domainParam(w, r)
	if !ok {
		return
	}
	doc, err := h.Resolver.Load(r.Context(), d)
	if err != nil {
		writeServiceError(w, "Failed to load config", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// PutConfig validates and replaces one scoring document.
// PUT /api/config/{domain}
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	d, ok := domainParam(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	doc, err := config.DecodeJSON(d, body)
	if err != nil {
		writeServiceError(w, "Invalid config document", err)
		return
	}
	if err := h.Resolver.Save(r.Context(), doc); err != nil {
		writeServiceError(w, "Failed to save config", err)
		return
	}
	h.logger.Info("config updated", "doc", doc.Meta().ID)
	writeJSON(w, http.StatusOK, doc)
}

// ExportConfig writes every scoring document as YAML.
// GET /api/config/export
func (h *Handler) ExportConfig(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := config.ExportYAML(r.Context(), h.Resolver, &buf); err != nil {
		writeServiceError(w, "Failed to export config", err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ImportConfig replaces the documents present in a YAML bundle.
// POST /api/config/import
func (h *Handler) ImportConfig(w http.ResponseWriter, r *http.Request) {
	n, err := config.ImportYAML(r.Context(), h.Resolver, r.Body)
	if err != nil {
		writeServiceError(w, "Failed to import config", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// TriggerRun runs the pipeline synchronously and reports the outcome.
// POST /api/admin/run
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !h.decode(w, r, &req) {
		return
	}
	if h.Runner == nil {
		writeError(w, http.StatusServiceUnavailable, "Runner not configured", nil)
		return
	}

	anchor, err := h.anchorFor(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	// A run finishes even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	var sum schedule.Summary
	switch {
	case req.FullFY:
		sum, err = h.Runner.Run(ctx, anchor, true)
	case req.Mode == "" || req.Mode == RunModeConfigured:
		sum, err = h.Runner.RunForConfiguredRange(ctx, anchor)
	default:
		sum, err = h.Runner.RunRange(ctx, req.Mode, anchor)
	}

	if model.IsFatal(err) || errors.Is(err, model.ErrInvalidRangeMode) {
		writeServiceError(w, "Run aborted", err)
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(anchor, sum, err))
}

func (h *Handler) anchorFor(month string) (model.Month, error) {
	if month != "" {
		return model.ParseMonth(month)
	}
	return h.Anchor()
}

// ListRuns returns pipeline run records, newest first.
// GET /api/runs?limit=N
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	if limit == 0 {
		limit = 50
	}
	runs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	if runs == nil {
		runs = []model.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func monthParam(w http.ResponseWriter, r *http.Request) (model.Month, bool) {
	m, err := model.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month, expected YYYY-MM", err)
		return model.Month{}, false
	}
	return m, true
}

func domainParam(w http.ResponseWriter, r *http.Request) (config.Domain, bool) {
	d, ok := config.ParseDomain(chi.URLParam(r, "domain"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown config domain", nil)
		return "", false
	}
	return d, true
}

func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps domain errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidConfig), errors.Is(err, model.ErrInvalidMonth),
		errors.Is(err, model.ErrInvalidRangeMode):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, model.ErrConfigurationMissing):
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
