package audithttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/runbook-hub/runbook-hub/internal/audit"
	"github.com/runbook-hub/runbook-hub/internal/shared"
)

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// TrailService defines the business contract for audit data.
type TrailService interface {
	Query(ctx context.Context, filters audit.Filters) ([]audit.Entry, error)
}

// Guard answers authorization queries for the current request.
type Guard interface {
	Init(ctx context.Context) error
	CanRead(ctx context.Context) bool
}

// Handler menangani permintaan audit log dan ekspor CSV.
type Handler struct {
	logger  *slog.Logger
	service TrailService
	guard   Guard
	now     func() time.Time
}

// NewHandler membuat handler audit baru.
func NewHandler(logger *slog.Logger, service TrailService, guard Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, now: time.Now}
}

type listResponse struct {
	Entries    []audit.Entry     `json:"entries"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(r) {
		shared.RespondError(w, h.logger, shared.ErrPermissionDenied)
		return
	}
	filters, page, perPage, err := h.parseQuery(r)
	if err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	entries, err := h.service.Query(r.Context(), filters)
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	pagination := shared.NewPagination(page, perPage, len(entries))
	start := (pagination.Page - 1) * pagination.PerPage
	if start > len(entries) {
		start = len(entries)
	}
	end := start + pagination.PerPage
	if end > len(entries) {
		end = len(entries)
	}
	shared.RespondJSON(w, http.StatusOK, listResponse{Entries: entries[start:end], Pagination: pagination})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(r) {
		shared.RespondError(w, h.logger, shared.ErrPermissionDenied)
		return
	}
	filters, _, _, err := h.parseQuery(r)
	if err != nil {
		shared.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	entries, err := h.service.Query(r.Context(), filters)
	if err != nil {
		shared.RespondError(w, h.logger, err)
		return
	}
	filename := fmt.Sprintf("audit-log-%s.csv", h.now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := audit.WriteCSV(w, entries); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) authorize(r *http.Request) bool {
	if err := h.guard.Init(r.Context()); err != nil {
		h.logger.Warn("init access controller", slog.Any("error", err))
	}
	return h.guard.CanRead(r.Context())
}

func (h *Handler) parseQuery(r *http.Request) (audit.Filters, int, int, error) {
	q := r.URL.Query()
	filters := audit.Filters{
		EntityType: audit.EntityType(strings.TrimSpace(q.Get("entityType"))),
		EntityID:   strings.TrimSpace(q.Get("entityId")),
		Action:     audit.Action(strings.TrimSpace(q.Get("action"))),
		ActorID:    strings.TrimSpace(q.Get("actorId")),
	}
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		from, err := time.Parse("2006-01-02", v)
		if err != nil {
			return audit.Filters{}, 0, 0, fmt.Errorf("invalid from date %q", v)
		}
		filters.From = from
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		to, err := time.Parse("2006-01-02", v)
		if err != nil {
			return audit.Filters{}, 0, 0, fmt.Errorf("invalid to date %q", v)
		}
		// Inclusive upper bound covers the whole day.
		filters.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	page := 1
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.Filters{}, 0, 0, fmt.Errorf("invalid page %q", v)
		}
		page = parsed
	}
	perPage := defaultPerPage
	if v := strings.TrimSpace(q.Get("per_page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.Filters{}, 0, 0, fmt.Errorf("invalid per_page %q", v)
		}
		if parsed > maxPerPage {
			parsed = maxPerPage
		}
		perPage = parsed
	}
	return filters, page, perPage, nil
}
