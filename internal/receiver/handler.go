// Package receiver implements the HTTP surface of the filter service:
// password-gated ingest, token-gated query endpoints, and the operational
// probes.
package receiver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rantahar/aware-filter/internal/auth"
	"github.com/rantahar/aware-filter/internal/identity"
	"github.com/rantahar/aware-filter/internal/ingest"
	"github.com/rantahar/aware-filter/internal/query"
	"github.com/rantahar/aware-filter/internal/stats"
	"github.com/rantahar/aware-filter/internal/storage"
)

// Handler exposes the filter HTTP endpoints.
type Handler struct {
	store   storage.Store
	writer  *ingest.Writer
	engine  *query.Engine
	auth    *auth.Service
	stats   *stats.Registry
	started time.Time

	slowWarn      time.Duration
	timeoutStatus time.Duration
	memoryWarnMB  int
}

// Options tunes the query endpoints. Zero values fall back to defaults.
type Options struct {
	// SlowQueryWarn is the duration above which a completed read is logged
	// as slow.
	SlowQueryWarn time.Duration
	// TimeoutStatus is the duration after which a failed read reports 408
	// instead of its mapped status.
	TimeoutStatus time.Duration
	// MemoryWarnMB is the heap watermark logged before merge fetches.
	MemoryWarnMB int
}

// NewHandler creates a Handler over the given components.
func NewHandler(store storage.Store, writer *ingest.Writer, engine *query.Engine, authsvc *auth.Service, registry *stats.Registry, opts Options) *Handler {
	if opts.SlowQueryWarn <= 0 {
		opts.SlowQueryWarn = 60 * time.Second
	}
	if opts.TimeoutStatus <= 0 {
		opts.TimeoutStatus = 240 * time.Second
	}
	if opts.MemoryWarnMB <= 0 {
		opts.MemoryWarnMB = 400
	}
	return &Handler{
		store:         store,
		writer:        writer,
		engine:        engine,
		auth:          authsvc,
		stats:         registry,
		started:       time.Now(),
		slowWarn:      opts.SlowQueryWarn,
		timeoutStatus: opts.TimeoutStatus,
		memoryWarnMB:  opts.MemoryWarnMB,
	}
}

// ---------------------------------------------------------------------------
// Request / Response types
// ---------------------------------------------------------------------------

// InsertResponse is returned by the ingest endpoint.
type InsertResponse struct {
	Status   string `json:"status" example:"ok"`
	Inserted int    `json:"inserted"`
	Errors   int    `json:"errors"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse is returned by POST /login.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in" example:"86400"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status" example:"healthy"`
	Database string `json:"database" example:"connected"`
}

// StatsResponse is returned by GET /stats.
type StatsResponse struct {
	Service   string           `json:"service"`
	Timestamp string           `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Stats     map[string]int64 `json:"stats"`
	Endpoints []string         `json:"endpoints"`
}

type errorResponse struct {
	Error string `json:"error" example:"invalid table name"`
}

type timeoutResponse struct {
	Error           string  `json:"error"`
	Suggestion      string  `json:"suggestion"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ---------------------------------------------------------------------------
// POST /webservice/index/{study_id}/{password}/{table}
// ---------------------------------------------------------------------------

// Insert godoc
//
//	@Summary		Ingest records into a table
//	@Description	Accepts a JSON array of records, or a single object, for one table.
//	@Description	Records carrying a device_id are rewritten into the table's _transformed
//	@Description	counterpart when one exists; everything else is stored verbatim.
//	@Tags			ingest
//	@Accept			json
//	@Produce		json
//	@Param			study_id	path		string	true	"Study identifier (informational)"
//	@Param			password	path		string	true	"Study password"
//	@Param			table		path		string	true	"Target table"
//	@Success		200			{object}	InsertResponse
//	@Failure		400			{object}	errorResponse
//	@Failure		401			{object}	errorResponse
//	@Failure		503			{object}	errorResponse
//	@Router			/webservice/index/{study_id}/{password}/{table} [post]
func (h *Handler) Insert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if !h.auth.CheckPassword(chi.URLParam(r, "password")) {
		h.stats.Inc(stats.UnauthorizedAttempts)
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.stats.Inc(stats.TotalRequests)

	table := chi.URLParam(r, "table")
	if !storage.ValidName(table) {
		writeErr(w, http.StatusBadRequest, fmt.Sprintf("invalid table name %q", table))
		return
	}

	records, single, err := decodeRecords(r.Body)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	if single {
		if err := h.writer.InsertOne(r.Context(), table, records[0]); err != nil {
			slog.Error("insert failed", "table", table, "error", err)
			status := insertStatus(err)
			msg := err.Error()
			if status == http.StatusServiceUnavailable {
				msg = "database connection failed"
			}
			writeErr(w, status, msg)
			return
		}
		slog.Info("inserted",
			"study_id", chi.URLParam(r, "study_id"),
			"table", table,
			"records", 1,
			"latency_ms", time.Since(start).Milliseconds(),
		)
		writeJSON(w, http.StatusOK, InsertResponse{Status: "ok", Inserted: 1})
		return
	}

	res := h.writer.InsertBatch(r.Context(), table, records)
	status := "ok"
	if res.Errors > 0 {
		status = "partial"
	}

	slog.Info("inserted",
		"study_id", chi.URLParam(r, "study_id"),
		"table", table,
		"records", len(records),
		"inserted", res.Inserted,
		"errors", res.Errors,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, InsertResponse{Status: status, Inserted: res.Inserted, Errors: res.Errors})
}

// ---------------------------------------------------------------------------
// POST /login
// ---------------------------------------------------------------------------

// Login godoc
//
//	@Summary		Exchange the study password for a bearer token
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LoginRequest	true	"Credentials"
//	@Success		200		{object}	LoginResponse
//	@Failure		400		{object}	errorResponse
//	@Failure		401		{object}	errorResponse
//	@Router			/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Password == "" {
		writeErr(w, http.StatusBadRequest, "password is required")
		return
	}

	token, expiresIn, err := h.auth.IssueToken(req.Password)
	if err != nil {
		h.stats.Inc(stats.UnauthorizedAttempts)
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresIn: expiresIn})
}

// ---------------------------------------------------------------------------
// GET /data
// ---------------------------------------------------------------------------

// Data godoc
//
//	@Summary		Query device data from a table
//	@Description	Reads the table and, when a device_id filter is present, merges in rows
//	@Description	from the table's _transformed counterpart, sorted by timestamp.
//	@Tags			query
//	@Produce		json
//	@Param			table		query		string	true	"Table to read"
//	@Param			device_id	query		string	false	"Comma-separated device ids"
//	@Param			start_time	query		int		false	"Inclusive lower timestamp bound (microseconds)"
//	@Param			end_time	query		int		false	"Inclusive upper timestamp bound (microseconds)"
//	@Param			limit		query		int		false	"Page size, max 50000"	default(10000)
//	@Param			offset		query		int		false	"Rows to skip"			default(0)
//	@Success		200			{object}	query.Result
//	@Failure		400			{object}	errorResponse
//	@Failure		404			{object}	errorResponse
//	@Failure		408			{object}	timeoutResponse
//	@Failure		503			{object}	errorResponse
//	@Security		BearerAuth
//	@Router			/data [get]
func (h *Handler) Data(w http.ResponseWriter, r *http.Request) {
	params, err := query.ParseParams(r.URL.Query())
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	h.warnMemory()

	start := time.Now()
	res, err := h.engine.QueryData(r.Context(), params)
	elapsed := time.Since(start)
	if err != nil {
		if elapsed >= h.timeoutStatus {
			slog.Error("query timed out", "table", params.Table, "elapsed_s", elapsed.Seconds(), "error", err)
			writeJSON(w, http.StatusRequestTimeout, timeoutResponse{
				Error:           "query timed out",
				Suggestion:      "narrow the time window or add filters, then retry",
				DurationSeconds: elapsed.Seconds(),
			})
			return
		}
		status := statusFor(err)
		msg := err.Error()
		if status == http.StatusServiceUnavailable {
			msg = "database connection failed"
		}
		if status >= http.StatusInternalServerError {
			slog.Error("data query failed", "table", params.Table, "error", err)
		}
		writeErr(w, status, msg)
		return
	}

	res.QueryDurationSeconds = elapsed.Seconds()
	if elapsed > h.slowWarn {
		slog.Warn("slow query", "table", params.Table, "elapsed_s", elapsed.Seconds(), "rows", res.Count)
		res.Warnings = append(res.Warnings, fmt.Sprintf("slow query (%.1fs); use narrower filters or pagination", elapsed.Seconds()))
	}

	slog.Info("data query",
		"table", params.Table,
		"devices", len(params.DeviceIDs),
		"rows", res.Count,
		"total", res.TotalCount,
		"latency_ms", elapsed.Milliseconds(),
	)
	writeJSON(w, http.StatusOK, res)
}

// ---------------------------------------------------------------------------
// GET /tables-for-device
// ---------------------------------------------------------------------------

// TablesForDevice godoc
//
//	@Summary		List tables holding data for devices
//	@Tags			query
//	@Produce		json
//	@Param			device_id	query		string	true	"Comma-separated device ids"
//	@Success		200			{object}	query.TablesResult
//	@Failure		400			{object}	errorResponse
//	@Failure		404			{object}	errorResponse
//	@Security		BearerAuth
//	@Router			/tables-for-device [get]
func (h *Handler) TablesForDevice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ids := splitIDs(r.URL.Query().Get("device_id"))
	if len(ids) == 0 {
		writeErr(w, http.StatusBadRequest, "device_id is required")
		return
	}

	res, err := h.engine.TablesForDevices(r.Context(), ids)
	if err != nil {
		if errors.Is(err, query.ErrNoDevices) {
			writeErr(w, http.StatusNotFound, err.Error())
			return
		}
		slog.Error("table discovery failed", "devices", len(ids), "error", err)
		status := statusFor(err)
		msg := err.Error()
		if status == http.StatusServiceUnavailable {
			msg = "database connection failed"
		}
		writeErr(w, status, msg)
		return
	}

	slog.Info("table discovery",
		"devices", len(ids),
		"tables", res.Count,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, res)
}

// ---------------------------------------------------------------------------
// Probes
// ---------------------------------------------------------------------------

// Health godoc
//
//	@Summary	Service and database health
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Failure	503	{object}	HealthResponse
//	@Router		/health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Database: "disconnected"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Database: "connected"})
}

// Stats godoc
//
//	@Summary	Process-wide event counters
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	StatsResponse
//	@Router		/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{
		Service:   "aware-filter",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Stats:     h.stats.Snapshot(),
		Endpoints: endpointList,
	})
}

var endpointList = []string{
	"POST /webservice/index/{study_id}/{password}/{table}",
	"POST /login",
	"GET /data",
	"GET /tables-for-device",
	"GET /health",
	"GET /stats",
	"GET /metrics",
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// decodeRecords parses the request body as either a single JSON object or an
// array of objects. Numbers stay json.Number so microsecond timestamps
// survive without float rounding.
func decodeRecords(body io.Reader) (records []storage.Record, single bool, err error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, false, fmt.Errorf("read body: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false, errors.New("no data")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '[' {
		if err := dec.Decode(&records); err != nil {
			return nil, false, fmt.Errorf("invalid JSON: %w", err)
		}
		if len(records) == 0 {
			return nil, false, errors.New("empty batch")
		}
		return records, false, nil
	}

	var rec storage.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, false, fmt.Errorf("invalid JSON: %w", err)
	}
	return []storage.Record{rec}, true, nil
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

// statusFor maps read-path failures onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, query.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, query.ErrNoDevices),
		errors.Is(err, identity.ErrNotFound),
		errors.Is(err, storage.ErrTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func insertStatus(err error) int {
	if errors.Is(err, storage.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// warnMemory logs when the heap is already large before a merge fetch; the
// merge path buffers whole result sets in memory.
func (h *Handler) warnMemory() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if mb := int(ms.HeapAlloc / (1 << 20)); mb > h.memoryWarnMB {
		slog.Warn("high memory before query", "heap_mb", mb, "warn_mb", h.memoryWarnMB)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
