package http

import (
	"log/slog"
	"net/http"

	"github.com/fjod/storefront/internal/service"
)

type AuthHandler struct {
	auth AuthService
	log  *slog.Logger
}

func NewAuthHandler(auth AuthService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

type SendOTPRequestDTO struct {
	Email string `json:"email"`
}

type VerifyOTPRequestDTO struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/user/auth/send-otp
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if err := h.auth.SendOTP(r.Context(), req.Email); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, "verification code sent")
}

// POST /api/user/auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if err := h.auth.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, "email verified")
}

// POST /api/user/auth/complete-signup
func (h *AuthHandler) CompleteSignup(w http.ResponseWriter, r *http.Request) {
	var req service.SignupInput
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	res, err := h.auth.CompleteSignup(r.Context(), req)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// POST /api/user/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// POST /api/user/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	if err := h.auth.Logout(r.Context(), session); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, "logged out")
}

// GET /api/user/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	u, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// POST /api/superadmin/users
func (h *AuthHandler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req service.StaffInput
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	u, err := h.auth.CreateStaff(r.Context(), req)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, u)
}
