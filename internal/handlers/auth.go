package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/secureblog/apiserver/internal/auth"
	"github.com/secureblog/apiserver/internal/services"
	"github.com/secureblog/apiserver/internal/session"
)

// AuthHandler provides the registration, login, unlock, logout, and
// account endpoints.
type AuthHandler struct {
	auth     *services.AuthService
	sessions *session.Manager
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{auth: authService, sessions: sessions}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService, sessions *session.Manager, mw *Middleware) {
	handler := NewAuthHandler(authService, sessions)

	r.With(mw.AnonymousOnly).Post("/register", handler.Register)
	r.With(mw.AnonymousOnly).Post("/login", handler.Login)
	r.With(mw.AnonymousOnly).Get("/unlock", handler.Unlock)
	r.With(mw.RequireAuth).Post("/logout", handler.Logout)
	r.With(mw.RequireAuth).Get("/account", handler.Account)
}

type RegisterRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
}

// RegisterResponse moves the new user straight into MFA enrollment.
type RegisterResponse struct {
	Message         string `json:"message"`
	MFASecret       string `json:"mfa_secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFAToken string `json:"mfa_token"`
}

// LoginResponse reports one login submission outcome. Fields beyond
// Result are populated per outcome.
type LoginResponse struct {
	Result          string `json:"result"`
	Message         string `json:"message,omitempty"`
	Redirect        string `json:"redirect,omitempty"`
	Remaining       int    `json:"remaining_attempts,omitempty"`
	MFASecret       string `json:"mfa_secret,omitempty"`
	ProvisioningURI string `json:"provisioning_uri,omitempty"`
	Unlock          string `json:"unlock,omitempty"`
}

// Register creates a new account and returns its MFA enrollment data.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Email == "" || req.FirstName == "" || req.LastName == "" || req.Phone == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	result, err := h.auth.Register(r.Context(), services.RegisterParams{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Password:  req.Password,
		IP:        r.RemoteAddr,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateAccount):
			writeError(w, http.StatusConflict, "Email already exists.")
		case errors.Is(err, services.ErrInvalidEmail), errors.Is(err, services.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create account")
		}
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Message:         "Account Created. You must enable Multi-Factor Authentication (MFA) to login.",
		MFASecret:       result.MFASecret,
		ProvisioningURI: result.ProvisioningURI,
	})
}

// Login runs one submission through the authentication flow.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	state := h.sessions.Attempts(r)
	result, state, err := h.auth.Login(r.Context(), services.LoginParams{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		MFAToken: req.MFAToken,
		IP:       r.RemoteAddr,
	}, state)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	switch result.Outcome {
	case services.LoginSuccess:
		if err := h.sessions.SignIn(w, r, result.User.ID); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to establish session")
			return
		}
		writeJSON(w, http.StatusOK, LoginResponse{
			Result:   "success",
			Redirect: result.Redirect,
		})

	case services.LoginMFASetup:
		writeJSON(w, http.StatusOK, LoginResponse{
			Result:          "mfa_setup",
			Message:         "You have not enabled Multi-Factor Authentication. Please enable MFA to login.",
			MFASecret:       result.MFASecret,
			ProvisioningURI: result.ProvisioningURI,
		})

	case services.LoginLocked:
		if err := h.sessions.SaveAttempts(w, r, state); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save session")
			return
		}
		writeJSON(w, http.StatusForbidden, LoginResponse{
			Result:  "locked",
			Message: "Maximum login attempts reached. Unlock to try again.",
			Unlock:  "/auth/unlock",
		})

	default:
		if err := h.sessions.SaveAttempts(w, r, state); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save session")
			return
		}
		writeJSON(w, http.StatusUnauthorized, LoginResponse{
			Result:    "retry",
			Message:   fmt.Sprintf("Invalid credentials. %d attempt(s) remaining.", result.Remaining),
			Remaining: result.Remaining,
		})
	}
}

// Unlock resets the session's attempt counter so login can be retried.
func (h *AuthHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	state := h.sessions.Attempts(r)
	if err := h.sessions.SaveAttempts(w, r, state.Reset()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save session")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Result: "unlocked", Redirect: auth.DestLogin})
}

// Logout ends the authenticated session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	h.auth.Logout(r.Context(), user, r.RemoteAddr)

	if err := h.sessions.SignOut(w, r); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to end session")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Result: "logged_out", Redirect: "/"})
}

// Account returns the current authenticated account.
func (h *AuthHandler) Account(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	writeJSON(w, http.StatusOK, user)
}
