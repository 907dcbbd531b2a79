package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/runbook-hub/runbook-hub/internal/audit"
	"github.com/runbook-hub/runbook-hub/internal/settings"
)

// AuditRetentionHandler prunes audit entries older than the retention
// window. The 1000-entry cap is enforced synchronously on every append;
// this sweep only trims by age.
type AuditRetentionHandler struct {
	store  settings.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditRetentionHandler constructs the handler.
func NewAuditRetentionHandler(store settings.Store, logger *slog.Logger) *AuditRetentionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditRetentionHandler{store: store, logger: logger, now: time.Now}
}

// ProcessTask handles TaskAuditRetention tasks.
func (h *AuditRetentionHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	maxAge, err := time.ParseDuration(payload.MaxAge)
	if err != nil || maxAge <= 0 {
		return asynq.SkipRetry
	}
	cutoff := h.now().UTC().Add(-maxAge)

	pruned := 0
	err = h.store.Update(ctx, payload.ProjectID, audit.LogKey, func(raw []byte) (any, error) {
		var log []audit.Entry
		if raw != nil {
			if err := json.Unmarshal(raw, &log); err != nil {
				return nil, err
			}
		}
		kept := make([]audit.Entry, 0, len(log))
		for _, entry := range log {
			if entry.Timestamp.Before(cutoff) {
				pruned++
				continue
			}
			kept = append(kept, entry)
		}
		return kept, nil
	})
	if err != nil {
		return err
	}
	h.logger.Info("audit retention sweep",
		slog.String("project", payload.ProjectID),
		slog.Int("pruned", pruned))
	return nil
}
