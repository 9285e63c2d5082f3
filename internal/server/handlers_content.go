package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mindmate-health/mindmate/internal/model"
)

// HandleCreateFeedback handles POST /feedback (form: name, country, message, rating).
func (h *Handlers) HandleCreateFeedback(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) || !requireFields(w, r, "name", "country", "message", "rating") {
		return
	}
	rating, err := strconv.Atoi(r.FormValue("rating"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "rating must be 1-5")
		return
	}
	fb := model.Feedback{
		Name:    r.FormValue("name"),
		Country: r.FormValue("country"),
		Message: r.FormValue("message"),
		Rating:  rating,
	}
	if err := model.ValidateFeedback(fb); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	fb, err = h.store.CreateFeedback(r.Context(), fb)
	if err != nil {
		h.internalError(w, r, "create feedback", err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.MessageResponse{Message: "Feedback submitted successfully", ID: &fb.ID})
}

// HandleListFeedback handles GET /feedback and GET /admin/feedbacks.
func (h *Handlers) HandleListFeedback(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListFeedback(r.Context())
	if err != nil {
		h.internalError(w, r, "list feedback", err)
		return
	}
	writeJSON(w, r, http.StatusOK, nonNil(list))
}

// HandleListContent handles GET /exercises, /diets and /videos.
func (h *Handlers) HandleListContent(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseContentKind(strings.TrimPrefix(r.URL.Path, "/"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, err.Error())
		return
	}
	list, err := h.store.ListContent(r.Context(), kind)
	if err != nil {
		h.internalError(w, r, "list "+string(kind), err)
		return
	}
	writeJSON(w, r, http.StatusOK, nonNil(list))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
