package server

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/mindmate-health/mindmate/internal/export"
	"github.com/mindmate-health/mindmate/internal/model"
)

// HandleAdminListUsers handles GET /admin/users.
func (h *Handlers) HandleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.internalError(w, r, "list users", err)
		return
	}
	writeJSON(w, r, http.StatusOK, nonNil(users))
}

// HandleAdminDeleteUser handles DELETE /admin/users/{id}. The user's stress
// history is removed with the account.
func (h *Handlers) HandleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		h.writeStoreError(w, r, "delete user", "User not found", err)
		return
	}
	h.logger.Info("admin deleted user", "user_id", id, "admin", SessionFromContext(r.Context()).Subject)
	writeJSON(w, r, http.StatusOK, model.MessageResponse{Message: "User deleted"})
}

// HandleAdminDeleteFeedback handles DELETE /admin/feedbacks/{id}.
func (h *Handlers) HandleAdminDeleteFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteFeedback(r.Context(), id); err != nil {
		h.writeStoreError(w, r, "delete feedback", "Feedback not found", err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.MessageResponse{Message: "Feedback deleted"})
}

// HandleAdminCreateContent handles POST /admin/{kind}
// (form: title, description; videos take link instead of description).
func (h *Handlers) HandleAdminCreateContent(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseContentKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, err.Error())
		return
	}
	if !h.parseForm(w, r) {
		return
	}
	body := r.FormValue("description")
	if kind == model.ContentVideo {
		body = r.FormValue("link")
	}
	c := model.Content{Kind: kind, Title: r.FormValue("title"), Body: body}
	if err := model.ValidateContent(c); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	c, err = h.store.CreateContent(r.Context(), c)
	if err != nil {
		h.internalError(w, r, "create "+string(kind), err)
		return
	}
	writeJSON(w, r, http.StatusCreated, c)
}

// HandleAdminDeleteContent handles DELETE /admin/{kind}/{id}.
func (h *Handlers) HandleAdminDeleteContent(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseContentKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, err.Error())
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteContent(r.Context(), kind, id); err != nil {
		h.writeStoreError(w, r, "delete "+string(kind), "Entry not found", err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.MessageResponse{Message: "Entry deleted"})
}

// HandleAdminAnalytics handles GET /admin/analytics/users.
func (h *Handlers) HandleAdminAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.Analytics(r.Context())
	if err != nil {
		h.internalError(w, r, "analytics", err)
		return
	}
	writeJSON(w, r, http.StatusOK, a)
}

// HandleAdminExportStress handles GET /admin/export/stress. The workbook is
// built in memory so a failure can still be reported as JSON.
func (h *Handlers) HandleAdminExportStress(w http.ResponseWriter, r *http.Request) {
	recs, err := h.stress.All(r.Context())
	if err != nil {
		h.internalError(w, r, "export stress", err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteStressWorkbook(&buf, recs); err != nil {
		h.internalError(w, r, "export stress", err)
		return
	}

	filename := fmt.Sprintf("stress-results-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
