package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mindmate-health/mindmate/internal/model"
	"github.com/mindmate-health/mindmate/internal/service/accounts"
	"github.com/mindmate-health/mindmate/internal/service/stress"
	"github.com/mindmate-health/mindmate/internal/storage"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	store               storage.Store
	accounts            *accounts.Service
	stress              *stress.Service
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	legacyStressErrors  bool
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	Store               storage.Store
	Accounts            *accounts.Service
	Stress              *stress.Service
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	LegacyStressErrors  bool
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	if d.MaxRequestBodyBytes <= 0 {
		d.MaxRequestBodyBytes = 1 << 20
	}
	return &Handlers{
		store:               d.Store,
		accounts:            d.Accounts,
		stress:              d.Stress,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		legacyStressErrors:  d.LegacyStressErrors,
	}
}

// HandleRoot handles GET /.
func (h *Handlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, model.MessageResponse{Message: "MindMate backend is running"})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "connected"
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("health: database ping failed", "error", err)
		dbStatus = "disconnected"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, r, httpStatus, model.HealthResponse{
		Status:   status,
		Version:  h.version,
		Database: h.store.Driver() + ":" + dbStatus,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleTables handles GET /tables.
func (h *Handlers) HandleTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.ListTables(r.Context())
	if err != nil {
		h.internalError(w, r, "list tables", err)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	writeJSON(w, r, http.StatusOK, model.TablesResponse{Tables: tables})
}

// parseForm bounds the body and parses url-encoded or multipart forms.
func (h *Handlers) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBodyBytes)
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(h.maxRequestBodyBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid form body")
		return false
	}
	return true
}

// requireFields reports the first missing form field.
func requireFields(w http.ResponseWriter, r *http.Request, names ...string) bool {
	for _, n := range names {
		if r.FormValue(n) == "" {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, n+" is required")
			return false
		}
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// writeStoreError maps storage sentinels to HTTP statuses.
func (h *Handlers) writeStoreError(w http.ResponseWriter, r *http.Request, op, notFoundMsg string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, notFoundMsg)
		return
	}
	h.internalError(w, r, op, err)
}

func (h *Handlers) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op+" failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error")
}
