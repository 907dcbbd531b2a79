package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/runbook-hub/runbook-hub/internal/identity"
	"github.com/runbook-hub/runbook-hub/internal/settings"
	"github.com/runbook-hub/runbook-hub/internal/shared"
)

const (
	// LogKey is the settings store key holding the audit log document.
	LogKey = "auditLog"
	// maxEntries caps the persisted log; older entries are evicted.
	maxEntries = 1000

	persistTimeout = 10 * time.Second
)

// Trail menyimpan catatan audit yang append-only dan dibatasi kapasitas.
type Trail struct {
	store  settings.Store
	ident  identity.Provider
	logger *slog.Logger
	now    func() time.Time

	seq atomic.Int64
	wg  sync.WaitGroup
}

// NewTrail membuat audit trail baru di atas settings store.
func NewTrail(store settings.Store, ident identity.Provider, logger *slog.Logger) *Trail {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trail{
		store:  store,
		ident:  ident,
		logger: logger,
		now:    time.Now,
	}
}

// Record stamps an entry with the current identity and persists it in the
// background. It never blocks on the store and never returns an error:
// audit failures must not abort the domain operation that triggered them.
func (t *Trail) Record(ctx context.Context, action Action, entityType EntityType, entityID, entityName string, details map[string]any) Entry {
	user, _ := t.ident.CurrentUser(ctx)
	project, _ := t.ident.CurrentProject(ctx)
	if details == nil {
		details = map[string]any{}
	}
	now := t.now().UTC()
	entry := Entry{
		ID:         t.nextID(now),
		Timestamp:  now,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		EntityName: entityName,
		User:       actorFor(user),
		Project:    ProjectRef{ID: project.ID, Name: project.Name},
		Details:    details,
		UserAgent:  identity.UserAgentFromContext(ctx),
	}

	persistCtx := context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(persistCtx, persistTimeout)
		defer cancel()
		if err := t.persist(ctx, project.ID, entry); err != nil {
			t.logger.Error("record audit entry",
				slog.String("action", string(action)),
				slog.String("entity", string(entityType)),
				slog.Any("error", err))
		}
	}()
	return entry
}

// Flush waits for in-flight persists. Intended for tests and shutdown.
func (t *Trail) Flush() {
	t.wg.Wait()
}

// Query returns entries matching the filters, newest first.
func (t *Trail) Query(ctx context.Context, filters Filters) ([]Entry, error) {
	project, ok := t.ident.CurrentProject(ctx)
	if !ok {
		return nil, errors.New("audit: project unavailable")
	}
	var log []Entry
	if err := t.store.Get(ctx, project.ID, LogKey, &log); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return []Entry{}, nil
		}
		return nil, err
	}
	matched := make([]Entry, 0, len(log))
	for _, entry := range log {
		if filters.Matches(entry) {
			matched = append(matched, entry)
		}
	}
	return matched, nil
}

func (t *Trail) persist(ctx context.Context, projectID string, entry Entry) error {
	return t.store.Update(ctx, projectID, LogKey, func(raw []byte) (any, error) {
		var log []Entry
		if raw != nil {
			if err := json.Unmarshal(raw, &log); err != nil {
				return nil, fmt.Errorf("audit: decode log: %w", err)
			}
		}
		log = append([]Entry{entry}, log...)
		if len(log) > maxEntries {
			log = log[:maxEntries]
		}
		return log, nil
	})
}

// nextID combines the millisecond timestamp with a process-local sequence
// so ids within one log never collide.
func (t *Trail) nextID(now time.Time) int64 {
	return now.UnixMilli()<<16 | (t.seq.Add(1) & 0xFFFF)
}

// actorFor prefers the unique name as the recorded address, matching what
// the work-tracking platform reports for the signed-in account.
func actorFor(user identity.User) Actor {
	email := user.UniqueName
	if email == "" {
		email = user.Email
	}
	return Actor{ID: user.ID, Name: user.Name, Email: email}
}
