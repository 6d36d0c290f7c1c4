package handler

import (
	"log/slog"
	"net/http"

	"github.com/foliodev/folio/internal/model"
	"github.com/foliodev/folio/internal/server/middleware"
	"github.com/foliodev/folio/internal/service"
)

// AuthHandler serves the admin sign-in endpoints under /api/auth.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AuthHandler{auth: auth, logger: logger}
}

// CheckEmail reports whether an email is whitelisted and which branch it
// takes next.
// POST /api/auth/check-email
func (h *AuthHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	var req service.CheckEmailInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	status, err := h.auth.CheckIdentity(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to check email")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Login authenticates with email and password.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	sess, err := h.auth.AuthenticateWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, sess.Response())
}

// Register sets the first password on a whitelisted identity.
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	sess, err := h.auth.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Registration failed")
		return
	}
	writeJSON(w, http.StatusOK, sess.Response())
}

// SendOTP emails a fresh one-time code.
// POST /api/auth/send-otp
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req service.CheckEmailInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.auth.SendOTP(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to send OTP")
		return
	}
	writeJSON(w, http.StatusOK, model.SuccessResponse{
		Success: true,
		Message: "OTP sent to your email",
	})
}

// VerifyOTP exchanges a one-time code for a session.
// POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req service.VerifyOTPInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	sess, err := h.auth.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "OTP verification failed")
		return
	}
	writeJSON(w, http.StatusOK, sess.Response())
}

// Session describes the presented bearer token. It must be mounted behind
// middleware.Authenticate.
// GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, model.SessionInfo{
		Authenticated: true,
		User:          model.User{ID: p.AdminID, Email: p.Email},
		ExpiresAt:     p.ExpiresAt,
	})
}

// Logout acknowledges a sign-out. Tokens are stateless, so this is a no-op
// on the server side. Clients should discard their token.
// DELETE /api/auth/session
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true, Message: "Logged out"})
}
