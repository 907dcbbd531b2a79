package runbookshttp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/runbook-hub/runbook-hub/internal/runbooks"
	"github.com/runbook-hub/runbook-hub/internal/shared"
)

// Handler serves the runbook and task endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *runbooks.Service
	validate *validator.Validate
	now      func() time.Time
}

// NewHandler constructs the runbooks handler.
func NewHandler(logger *slog.Logger, service *runbooks.Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New(), now: time.Now}
}

type runbookRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	Owner       string   `json:"owner"`
	Tags        []string `json:"tags"`
	StartDate   string   `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string   `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
}

type taskRequest struct {
	Title      string `json:"title" validate:"required"`
	Owner      string `json:"owner"`
	StartDate  string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	WorkItemID string `json:"workItemId" validate:"required"`
}

type completionRequest struct {
	Completed bool `json:"completed"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	collection, err := h.service.List(r.Context(), q.Get("search"), q.Get("status"))
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, collection)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	runbook, err := h.service.Get(r.Context(), chi.URLParam(r, "runbookID"))
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, runbook)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req runbookRequest
	if !h.decode(w, r, &req) {
		return
	}
	runbook, err := h.service.Create(r.Context(), createInput(req))
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, runbook)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req runbookRequest
	if !h.decode(w, r, &req) {
		return
	}
	runbook, err := h.service.Update(r.Context(), chi.URLParam(r, "runbookID"), createInput(req))
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, runbook)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "runbookID")); err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	runbook, err := h.service.Archive(r.Context(), chi.URLParam(r, "runbookID"))
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, runbook)
}

func (h *Handler) handleExportTasks(w http.ResponseWriter, r *http.Request) {
	runbook, err := h.service.Get(r.Context(), chi.URLParam(r, "runbookID"))
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	filename := fmt.Sprintf("%s_%s.csv", runbook.Name, h.now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := runbooks.WriteTasksCSV(w, runbook.Tasks); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !h.decode(w, r, &req) {
		return
	}
	task, err := h.service.AddTask(r.Context(), chi.URLParam(r, "runbookID"), taskInput(req))
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, task)
}

func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !h.decode(w, r, &req) {
		return
	}
	task, err := h.service.UpdateTask(r.Context(), chi.URLParam(r, "runbookID"), chi.URLParam(r, "taskID"), taskInput(req))
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, task)
}

func (h *Handler) handleTaskCompletion(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	task, err := h.service.SetTaskCompletion(r.Context(), chi.URLParam(r, "runbookID"), chi.URLParam(r, "taskID"), req.Completed)
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, task)
}

func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.DeleteTask(r.Context(), chi.URLParam(r, "runbookID"), chi.URLParam(r, "taskID"))
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, task)
}

func (h *Handler) handleRestoreTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.RestoreTask(r.Context(), chi.URLParam(r, "runbookID"), chi.URLParam(r, "taskID"))
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, task)
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

func createInput(req runbookRequest) runbooks.CreateInput {
	return runbooks.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
		Tags:        req.Tags,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
}

func taskInput(req taskRequest) runbooks.TaskInput {
	return runbooks.TaskInput{
		Title:      req.Title,
		Owner:      req.Owner,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		WorkItemID: req.WorkItemID,
	}
}
