/*
handlers.go - HTTP API handlers for the incentive engine

PURPOSE:
  Exposes the calculation engine, the launch lifecycle and the task log
  import via REST API. Handles HTTP request/response, JSON serialization,
  and delegates to domain logic.

ENDPOINTS:
  Calculation:
    POST   /api/calculate                 Calculate a breakdown (no persistence)

  Reference data:
    GET    /api/kpis?role=&shift=         KPIs offered to a role on a shift
    GET    /api/activities                Activity tiers

  Launches:
    GET    /api/launches/daily-limit      Probe the one-launch-per-day rule
    POST   /api/launches                  Submit a launch
    GET    /api/launches                  List launches (status, worker_id, date)
    GET    /api/launches/{id}             Launch with its approval events
    POST   /api/launches/{id}/validate    approve | reject | editar

  Task logs:
    POST   /api/tasklogs/count?operator=  Parse a WMS export, count valid tasks

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Launches: lifecycle service (owns every launch write)
  - Calculator: pure calculation engine
  - Catalog: reference data listings
  - Parser: task log parser

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, request shape does not match role
  - 404: Launch not found
  - 409: Daily limit reached, launch is no longer pending (with guidance)
  - 422: Activity has no tiers
  - 500: Internal errors (the only ones logged at error level)

SECURITY NOTE:
  No authentication. actor_id is taken from the request body and defaults
  to "admin".

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warp/incentive-engine/compensation"
	"github.com/warp/incentive-engine/launch"
	"github.com/warp/incentive-engine/tasklog"
	"github.com/warp/incentive-engine/telemetry"
)

// DefaultActorID is recorded when a review request names no actor.
const DefaultActorID = "admin"

// DefaultMaxUploadBytes caps task log uploads.
const DefaultMaxUploadBytes = 10 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Catalog serves the reference data listings. *sqlite.Store implements it.
type Catalog interface {
	KPIs(ctx context.Context) ([]compensation.KPIDefinition, error)
	ListTiers(ctx context.Context) ([]compensation.ActivityTier, error)
	TaskTargets(ctx context.Context) (tasklog.TargetTable, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Launches   *launch.Service
	Calculator *compensation.Calculator
	Catalog    Catalog
	Parser     *tasklog.Parser
	Metrics    *telemetry.Recorder
	Logger     *zap.Logger

	MaxUploadBytes int64
}

// NewHandler creates a handler with a no-op logger and metrics.
func NewHandler(launches *launch.Service, calc *compensation.Calculator, catalog Catalog) *Handler {
	return &Handler{
		Launches:       launches,
		Calculator:     calc,
		Catalog:        catalog,
		Parser:         tasklog.NewParser(),
		Metrics:        telemetry.NewNoopRecorder(),
		Logger:         zap.NewNop(),
		MaxUploadBytes: DefaultMaxUploadBytes,
	}
}

// =============================================================================
// CALCULATION
// =============================================================================

// Calculate returns the breakdown of a payload without storing anything.
// POST /api/calculate
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var p compensation.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	b, err := h.Calculator.CalculatePayload(ctx, p)
	h.Metrics.RecordCalculation(ctx, string(h.Calculator.Roles.BranchFor(p.Role)), outcome(err))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBreakdownDTO(*b))
}

// outcome classifies a calculation error for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case compensation.IsClientError(err):
		return "invalid_input"
	case compensation.IsReferenceDataError(err):
		return "activity_not_found"
	default:
		return "error"
	}
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// ListKPIs returns the active KPIs of a role on a shift.
// GET /api/kpis?role=&shift=
func (h *Handler) ListKPIs(w http.ResponseWriter, r *http.Request) {
	role := strings.TrimSpace(r.URL.Query().Get("role"))
	shift := strings.TrimSpace(r.URL.Query().Get("shift"))
	if role == "" {
		writeError(w, http.StatusBadRequest, "role is required", nil)
		return
	}

	defs, err := h.Catalog.KPIs(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	eligible := compensation.EligibleKPIs(defs, role, shift)
	dtos := make([]KPIDTO, 0, len(eligible))
	for _, k := range eligible {
		dtos = append(dtos, toKPIDTO(k))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListActivities returns every activity tier.
// GET /api/activities
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.Catalog.ListTiers(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	dtos := make([]ActivityTierDTO, 0, len(tiers))
	for _, t := range tiers {
		dtos = append(dtos, toTierDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LAUNCHES
// =============================================================================

// CheckDailyLimit probes whether a worker may submit for a date.
// GET /api/launches/daily-limit?worker_id=&date=
func (h *Handler) CheckDailyLimit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dl, err := h.Launches.CheckDailyLimit(r.Context(), q.Get("worker_id"), q.Get("date"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DailyLimitDTO{
		LimitReached:     dl.LimitReached,
		CanLaunch:        dl.CanLaunch,
		ExistingLaunchID: dl.ExistingLaunchID,
		ExistingStatus:   string(dl.ExistingStatus),
	})
}

// SubmitLaunch creates a pending launch.
// POST /api/launches
func (h *Handler) SubmitLaunch(w http.ResponseWriter, r *http.Request) {
	var req SubmitLaunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	l, err := h.Launches.Submit(r.Context(), launch.SubmitInput{
		WorkerID: req.WorkerID,
		Date:     req.Date,
		Payload:  req.CalculationInput,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLaunchDTO(l))
}

// ListLaunches returns launches, oldest first.
// GET /api/launches?status=&worker_id=&date=
func (h *Handler) ListLaunches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	launches, err := h.Launches.List(r.Context(), launch.Filter{
		Status:   launch.Status(strings.TrimSpace(q.Get("status"))),
		WorkerID: strings.TrimSpace(q.Get("worker_id")),
		Date:     strings.TrimSpace(q.Get("date")),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	dtos := make([]LaunchDTO, 0, len(launches))
	for _, l := range launches {
		dtos = append(dtos, toLaunchDTO(l))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLaunch returns a launch with its audit trail.
// GET /api/launches/{id}
func (h *Handler) GetLaunch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	l, err := h.Launches.Get(ctx, id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	events, err := h.Launches.Events(ctx, id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	dto := toLaunchDTO(l)
	dto.Events = toEventDTOs(events)
	writeJSON(w, http.StatusOK, dto)
}

// ValidateLaunch applies a reviewer decision.
// POST /api/launches/{id}/validate
func (h *Handler) ValidateLaunch(w http.ResponseWriter, r *http.Request) {
	var req ValidateLaunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.ActorID) == "" {
		req.ActorID = DefaultActorID
	}

	l, err := h.Launches.Validate(r.Context(), chi.URLParam(r, "id"), launch.ValidateInput{
		Action:       req.Action,
		ActorID:      req.ActorID,
		Observations: req.Observations,
		Edited:       req.EditedPayload,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toLaunchDTO(l))
}

// =============================================================================
// TASK LOGS
// =============================================================================

// CountTasks parses an uploaded WMS export and counts the operator's valid
// tasks. The export is either the raw request body or a multipart "file"
// field. Unreadable exports are not errors: the response carries the parse
// status and format guidance.
// POST /api/tasklogs/count?operator=
func (h *Handler) CountTasks(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)

	raw, operator, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read task log", err)
		return
	}
	if strings.TrimSpace(operator) == "" {
		writeError(w, http.StatusBadRequest, "operator is required", nil)
		return
	}

	ctx := r.Context()
	targets, err := h.Catalog.TaskTargets(ctx)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if targets.Len() == 0 {
		targets = tasklog.DefaultTargets()
	}

	res := h.Parser.Parse(raw)
	sum := tasklog.NewFilter(targets).CountValidTasks(res.Records, operator)
	h.Metrics.RecordImport(ctx, string(res.Status), sum.Total)
	h.Logger.Info("task log imported",
		zap.String("request_id", middleware.GetReqID(ctx)),
		zap.String("status", string(res.Status)),
		zap.Int("records", len(res.Records)),
		zap.Int("skipped_rows", res.SkippedRows),
		zap.Int("valid_tasks", sum.Total),
	)

	writeJSON(w, http.StatusOK, toTaskCountDTO(operator, res, sum))
}

func readUpload(r *http.Request) (string, string, error) {
	operator := r.URL.Query().Get("operator")

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(DefaultMaxUploadBytes); err != nil {
			return "", "", err
		}
		if operator == "" {
			operator = r.FormValue("operator")
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return "", "", fmt.Errorf("multipart field \"file\": %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", "", err
		}
		return string(data), operator, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", "", err
	}
	return string(data), operator, nil
}

// =============================================================================
// HEALTH
// =============================================================================

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports liveness and, when the catalog can be pinged, storage reachability.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Catalog.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

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

// writeDomainError maps engine and lifecycle errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var dl *launch.DailyLimitError
	var te *launch.TransitionError

	switch {
	case errors.As(err, &dl):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "daily_limit_reached",
			Details: map[string]string{
				"existing_launch_id": dl.ExistingLaunchID,
				"existing_status":    string(dl.ExistingStatus),
			},
			Guidance: dl.Guidance(),
		})
	case errors.Is(err, launch.ErrDailyLimitReached):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "daily_limit_reached"})
	case errors.As(err, &te):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:    err.Error(),
			Code:     "invalid_transition",
			Details:  map[string]string{"current_status": string(te.CurrentStatus)},
			Guidance: "only pending launches can be approved, rejected or edited",
		})
	case errors.Is(err, launch.ErrConcurrentModification):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:    err.Error(),
			Code:     "concurrent_modification",
			Guidance: "the launch changed while the request was processed; submit again",
		})
	case launch.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case compensation.IsReferenceDataError(err):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "activity_not_found"})
	case compensation.IsClientError(err), errors.Is(err, launch.ErrInvalidAction):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "invalid_input"})
	default:
		h.Logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}
