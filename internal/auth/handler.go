package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/runbook-hub/runbook-hub/internal/shared"
)

// Handler serves login, logout and registration.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *shared.SessionManager
	validate *validator.Validate
	manage   func(r *http.Request) bool
}

// NewHandler constructs the auth handler. manage reports whether the
// request is allowed to administer accounts; registration of the first
// account is always allowed so the project can bootstrap.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, manage func(r *http.Request) bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		sessions: sessions,
		validate: validator.New(),
		manage:   manage,
	}
}

// MountRoutes registers the auth endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)
	r.Post("/auth/register", h.handleRegister)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type accountResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		shared.RespondError(w, h.logger, errors.New("auth: session unavailable"))
		return
	}
	sess.SetUser(account.ID)
	shared.RespondJSON(w, http.StatusOK, accountResponse{ID: account.ID, Email: account.Email, Name: account.Name})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessions.Destroy(sess)
	}
	shared.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	existing, err := h.service.HasAccounts(r.Context())
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	if existing && (h.manage == nil || !h.manage(r)) {
		shared.RespondError(w, h.logger, shared.ErrPermissionDenied)
		return
	}
	account, err := h.service.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			shared.RespondJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, accountResponse{ID: account.ID, Email: account.Email, Name: account.Name})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	if err := h.validate.Struct(dest); err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}
