package accesshttp

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/runbook-hub/runbook-hub/internal/access"
	"github.com/runbook-hub/runbook-hub/internal/shared"
)

// Handler serves the security administration endpoints.
type Handler struct {
	logger     *slog.Logger
	controller *access.Controller
	validate   *validator.Validate
}

// NewHandler constructs the security handler.
func NewHandler(logger *slog.Logger, controller *access.Controller) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		controller: controller,
		validate:   validator.New(),
	}
}

type assignmentRequest struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role" validate:"required"`
}

type defaultRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

type roleResponse struct {
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	CanWrite    bool   `json:"canWrite"`
	CanDelete   bool   `json:"canDelete"`
	CanManage   bool   `json:"canManage"`
}

func (h *Handler) handleCurrentRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.ensureInit(r)
	role, ok := h.controller.CurrentRole(ctx)
	if !ok {
		shared.RespondError(w, h.logger, shared.ErrPermissionDenied)
		return
	}
	shared.RespondJSON(w, http.StatusOK, roleResponse{
		Role:        string(role),
		DisplayName: role.DisplayName(),
		CanWrite:    h.controller.CanWrite(ctx),
		CanDelete:   h.controller.CanDelete(ctx),
		CanManage:   h.controller.CanManageSecurity(ctx),
	})
}

func (h *Handler) handleAssignments(w http.ResponseWriter, r *http.Request) {
	h.ensureInit(r)
	if !h.controller.CanManageSecurity(r.Context()) {
		shared.RespondError(w, h.logger, shared.ErrPermissionDenied)
		return
	}
	assignments, ok := h.controller.Assignments()
	if !ok {
		shared.RespondError(w, h.logger, shared.ErrStoreUnavailable)
		return
	}
	shared.RespondJSON(w, http.StatusOK, assignments)
}

func (h *Handler) handleAddAssignment(w http.ResponseWriter, r *http.Request) {
	h.ensureInit(r)
	var req assignmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.controller.AddUserToRole(r.Context(), req.UserID, access.Role(req.Role)); err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	assignments, _ := h.controller.Assignments()
	shared.RespondJSON(w, http.StatusOK, assignments)
}

func (h *Handler) handleRemoveAssignment(w http.ResponseWriter, r *http.Request) {
	h.ensureInit(r)
	userID := chi.URLParam(r, "userID")
	if err := h.controller.RemoveUserFromRole(r.Context(), userID); err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	assignments, _ := h.controller.Assignments()
	shared.RespondJSON(w, http.StatusOK, assignments)
}

func (h *Handler) handleSetDefaultRole(w http.ResponseWriter, r *http.Request) {
	h.ensureInit(r)
	var req defaultRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.controller.SetDefaultRole(r.Context(), access.Role(req.Role)); err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	assignments, _ := h.controller.Assignments()
	shared.RespondJSON(w, http.StatusOK, assignments)
}

// ensureInit loads the assignment record best effort. A failed load leaves
// the controller answering "permissions unknown" instead of blocking the
// request outright.
func (h *Handler) ensureInit(r *http.Request) {
	if err := h.controller.Init(r.Context()); err != nil {
		h.logger.Warn("init access controller", slog.Any("error", err))
	}
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
