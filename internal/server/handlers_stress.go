package server

import (
	"errors"
	"net/http"

	"github.com/mindmate-health/mindmate/internal/model"
	"github.com/mindmate-health/mindmate/internal/service/stress"
	"github.com/mindmate-health/mindmate/internal/vitals"
)

// HandleStress handles POST /stress.
//
// Out-of-range vitals yield 422 INVALID_VITALS with the offending field in
// details. With legacy errors enabled the old degraded 200 body is returned
// instead.
func (h *Handlers) HandleStress(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBodyBytes)
	var req model.StressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	res, err := h.stress.Evaluate(r.Context(), req)
	if err != nil {
		h.internalError(w, r, "stress evaluate", err)
		return
	}

	if !res.OK() {
		if h.legacyStressErrors {
			writeJSON(w, r, http.StatusOK, stress.LegacyErrorResponse(res.Err))
			return
		}
		var invalid *vitals.InvalidVitalsError
		if errors.As(res.Err, &invalid) {
			writeErrorDetails(w, r, http.StatusUnprocessableEntity, model.ErrCodeInvalidVitals, invalid.Error(),
				map[string]any{"field": invalid.Field, "value": invalid.Value, "range": invalid.Range})
			return
		}
		writeError(w, r, http.StatusUnprocessableEntity, model.ErrCodeInvalidVitals, res.Err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, res.Response())
}

// HandleStressHistory handles GET /stress/history?user=.
func (h *Handlers) HandleStressHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := h.stress.History(r.Context(), r.URL.Query().Get("user"))
	if err != nil {
		h.internalError(w, r, "stress history", err)
		return
	}
	writeJSON(w, r, http.StatusOK, recs)
}

// HandleDeleteStress handles DELETE /stress/history/delete/{id}.
func (h *Handlers) HandleDeleteStress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.stress.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, r, "delete stress record", "Stress history record not found", err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.MessageResponse{Message: "Stress history record deleted successfully"})
}
