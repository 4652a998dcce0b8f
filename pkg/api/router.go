// Package api exposes the compaction HTTP surface: manual triggers, run
// status probes, tablet statistics and the peer rowset endpoint used by
// single-replica compaction.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/granitedb/granite/internal/compaction"
	"github.com/granitedb/granite/internal/config"
	"github.com/granitedb/granite/internal/engine"
	"github.com/granitedb/granite/internal/logging"
	"github.com/granitedb/granite/internal/rowset"
	"github.com/granitedb/granite/internal/tablet"
)

// loggingResponseWriter captures status code for logging.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

type Router struct {
	cfg    *config.Config
	mux    *http.ServeMux
	engine *engine.Engine
	logger *logging.Logger
}

// NewRouter creates the HTTP router over an engine.
func NewRouter(cfg *config.Config, eng *engine.Engine, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.New()
	}
	r := &Router{
		cfg:    cfg,
		mux:    http.NewServeMux(),
		engine: eng,
		logger: logger,
	}

	r.mux.HandleFunc("GET /healthz", r.handleHealth)
	r.mux.HandleFunc("GET /metrics", r.handleMetrics)
	r.mux.HandleFunc("GET /api/compaction/run", r.handleRun)
	r.mux.HandleFunc("POST /api/compaction/run", r.handleRun)
	r.mux.HandleFunc("GET /api/compaction/run_status", r.handleRunStatus)
	r.mux.HandleFunc("GET /api/compaction/show", r.handleShow)
	r.mux.HandleFunc("GET /api/compaction/peer_rowset", r.handlePeerRowset)

	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()

	requestID := req.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	w.Header().Set("X-Request-ID", requestID)
	req = req.WithContext(logging.ContextWithRequestID(req.Context(), requestID))

	lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
	r.mux.ServeHTTP(lw, req)

	r.logger.Info("http request",
		"request_id", requestID,
		"endpoint", req.Method+" "+req.URL.Path,
		"status", lw.statusCode,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	r.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleMetrics(w http.ResponseWriter, req *http.Request) {
	promhttp.Handler().ServeHTTP(w, req)
}

// handleRun triggers a compaction. Exactly one of tablet_id and table_id
// must be given; table_id submits a full compaction for every tablet of the
// table without waiting, regardless of the requested kind, while tablet_id
// submits one task and waits a bounded interval for its outcome.
func (r *Router) handleRun(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	tabletID, hasTablet, err := parseID(q.Get("tablet_id"))
	if err != nil {
		r.writeAPIError(w, ErrBadRequest("invalid tablet_id: "+err.Error()))
		return
	}
	tableID, hasTable, err := parseID(q.Get("table_id"))
	if err != nil {
		r.writeAPIError(w, ErrBadRequest("invalid table_id: "+err.Error()))
		return
	}
	if !hasTablet && !hasTable {
		r.writeAPIError(w, ErrMissingTarget())
		return
	}
	if hasTablet && hasTable {
		r.writeAPIError(w, ErrAmbiguousTarget())
		return
	}

	compactType := q.Get("compact_type")
	remote := false
	switch q.Get("remote") {
	case "", "false":
	case "true":
		remote = true
	default:
		r.writeAPIError(w, ErrBadRequest("remote must be true or false"))
		return
	}

	if hasTable {
		// Any valid compact_type is accepted with table_id; the submitted
		// compaction is always full.
		if _, ok := compaction.ParseKind(compactType); !ok {
			r.writeAPIError(w, ErrInvalidCompactType(compactType))
			return
		}
		if remote {
			r.writeAPIError(w, ErrBadRequest("remote compaction can not target a whole table"))
			return
		}
		submitted, err := r.engine.TriggerTable(req.Context(), tableID)
		if err != nil {
			r.writeAPIError(w, ErrNotFound(err.Error()))
			return
		}
		r.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":            "Success",
			"msg":               "full compaction submitted for all tablets of the table",
			"table_id":          tableID,
			"tablets_submitted": submitted,
		})
		return
	}

	kind, ok := compaction.ParseKind(compactType)
	if !ok {
		r.writeAPIError(w, ErrInvalidCompactType(compactType))
		return
	}

	outcome, err := r.engine.Trigger(req.Context(), tabletID, kind, remote)
	if err != nil {
		switch {
		case errors.Is(err, tablet.ErrNotFound):
			r.writeAPIError(w, ErrTabletNotFound(q.Get("tablet_id")))
		case errors.Is(err, compaction.ErrPeerFetchNotAllowed):
			r.writeAPIError(w, ErrBadRequest(err.Error()))
		default:
			r.writeAPIError(w, ErrBadRequest(err.Error()))
		}
		return
	}

	if !outcome.Completed {
		r.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "Success",
			"msg":       "compaction task is successfully triggered, still running in background",
			"tablet_id": tabletID,
		})
		return
	}

	switch {
	case outcome.Err == nil:
		r.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "Success",
			"msg":       "compaction task is successfully triggered",
			"tablet_id": tabletID,
		})
	case errors.Is(outcome.Err, compaction.ErrNoSuitableVersion):
		r.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "Success",
			"msg":       "no suitable version to compact",
			"tablet_id": tabletID,
		})
	case errors.Is(outcome.Err, compaction.ErrLockConflict):
		r.writeAPIError(w, ErrCompactionRunning())
	default:
		r.writeAPIError(w, ErrInternalServer(outcome.Err.Error()))
	}
}

// handleRunStatus reports whether a compaction currently runs. With a
// tablet_id it probes that tablet; without one it aggregates across all
// hosted tablets.
func (r *Router) handleRunStatus(w http.ResponseWriter, req *http.Request) {
	raw := req.URL.Query().Get("tablet_id")
	if raw == "" {
		counts := r.engine.RunStatusAll()
		running := 0
		perKind := make(map[string]int)
		for kind, n := range counts {
			perKind[string(kind)] = n
			running += n
		}
		r.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":     "Success",
			"run_status": running > 0,
			"running":    perKind,
		})
		return
	}

	tabletID, _, err := parseID(raw)
	if err != nil {
		r.writeAPIError(w, ErrBadRequest("invalid tablet_id: "+err.Error()))
		return
	}
	kind, err := r.engine.RunStatus(tabletID)
	if err != nil {
		r.writeAPIError(w, ErrTabletNotFound(raw))
		return
	}

	msg := "compaction task for this tablet is not running"
	if kind != tablet.RunNone {
		msg = "compaction task for this tablet is running"
	}
	r.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "Success",
		"run_status":   kind != tablet.RunNone,
		"msg":          msg,
		"tablet_id":    tabletID,
		"compact_type": string(kind),
	})
}

// handleShow returns a tablet's compaction statistics.
func (r *Router) handleShow(w http.ResponseWriter, req *http.Request) {
	raw := req.URL.Query().Get("tablet_id")
	tabletID, has, err := parseID(raw)
	if err != nil || !has {
		r.writeAPIError(w, ErrBadRequest("tablet_id must be specified"))
		return
	}
	status, err := r.engine.Status(tabletID)
	if err != nil {
		r.writeAPIError(w, ErrTabletNotFound(raw))
		return
	}
	r.writeJSON(w, http.StatusOK, status)
}

// handlePeerRowset serves merged rowset metadata to peer replicas running
// single-replica compaction. 404 means this node has not merged the span.
func (r *Router) handlePeerRowset(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	tabletID, has, err := parseID(q.Get("tablet_id"))
	if err != nil || !has {
		r.writeAPIError(w, ErrBadRequest("tablet_id must be specified"))
		return
	}
	start, err := strconv.ParseInt(q.Get("start_version"), 10, 64)
	if err != nil {
		r.writeAPIError(w, ErrBadRequest("invalid start_version"))
		return
	}
	end, err := strconv.ParseInt(q.Get("end_version"), 10, 64)
	if err != nil {
		r.writeAPIError(w, ErrBadRequest("invalid end_version"))
		return
	}

	rs, err := r.engine.PeerRowset(tabletID, rowset.Version{Start: start, End: end})
	if err != nil {
		r.writeAPIError(w, ErrNotFound(err.Error()))
		return
	}
	r.writeJSON(w, http.StatusOK, rs)
}

func parseID(raw string) (int64, bool, error) {
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (r *Router) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (r *Router) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "error",
		"error":  message,
	})
}

func (r *Router) writeAPIError(w http.ResponseWriter, err *APIError) {
	r.writeError(w, err.StatusCode, err.Message)
}
