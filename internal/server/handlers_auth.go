package server

import (
	"errors"
	"net/http"

	"github.com/mindmate-health/mindmate/internal/model"
	"github.com/mindmate-health/mindmate/internal/service/accounts"
)

// HandleRegister handles POST /register (form: email, password).
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) || !requireFields(w, r, "email", "password") {
		return
	}
	email := r.FormValue("email")

	token, _, err := h.accounts.Register(r.Context(), email, r.FormValue("password"))
	if err != nil {
		var verr *accounts.ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, verr.Error())
		case errors.Is(err, accounts.ErrExists):
			writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "user exists")
		default:
			h.internalError(w, r, "register", err)
		}
		return
	}
	writeJSON(w, r, http.StatusOK, model.TokenResponse{
		Message: "User " + email + " registered",
		Token:   token,
	})
}

// HandleLogin handles POST /login (form: email, password).
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) || !requireFields(w, r, "email", "password") {
		return
	}
	email := r.FormValue("email")

	token, err := h.accounts.Login(r.Context(), email, r.FormValue("password"))
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid credentials")
			return
		}
		h.internalError(w, r, "login", err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.TokenResponse{
		Message: "User " + email + " logged in",
		Token:   token,
	})
}

// HandleAdminLogin handles POST /admin/login (form: username, password).
// username may be the admin's username or email.
func (h *Handlers) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) || !requireFields(w, r, "username", "password") {
		return
	}

	token, admin, err := h.accounts.AdminLogin(r.Context(), r.FormValue("username"), r.FormValue("password"))
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid admin credentials")
			return
		}
		h.internalError(w, r, "admin login", err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.TokenResponse{
		Message:  "Admin " + admin.Email + " logged in",
		Token:    token,
		AdminID:  admin.ID,
		Username: admin.Email,
	})
}

// HandleLogout handles POST /logout and POST /admin/logout. Both revoke the
// presented token whatever its kind, and succeed without one.
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Logout(r.Context(), tokenFromContext(r.Context())); err != nil {
		h.internalError(w, r, "logout", err)
		return
	}
	msg := "User logged out"
	if r.URL.Path == "/admin/logout" {
		msg = "Admin logged out"
	}
	writeJSON(w, r, http.StatusOK, model.MessageResponse{Message: msg})
}
