package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/runbook-hub/runbook-hub/internal/identity"
	"github.com/runbook-hub/runbook-hub/internal/settings"
	"github.com/runbook-hub/runbook-hub/internal/shared"
)

// recordKey is the settings store key holding the assignment record.
const recordKey = "security"

// Controller resolves the current user's role and guards every mutation of
// the project's assignment record.
type Controller struct {
	store  settings.Store
	ident  identity.Provider
	logger *slog.Logger
	now    func() time.Time

	sf singleflight.Group

	mu     sync.RWMutex
	record *AssignmentRecord
}

// NewController constructs a Controller. The record is not loaded until
// Init is called.
func NewController(store settings.Store, ident identity.Provider, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:  store,
		ident:  ident,
		logger: logger,
		now:    time.Now,
	}
}

// Init loads the assignment record, bootstrapping it with the current user
// as sole manager when the project has none yet. Concurrent calls share a
// single load. It fails only when the settings store is unreachable;
// callers should treat failure as "permissions unknown" and continue.
func (c *Controller) Init(ctx context.Context) error {
	if c.initialised() {
		return nil
	}
	_, err, _ := c.sf.Do("init", func() (any, error) {
		return nil, c.load(ctx)
	})
	return err
}

func (c *Controller) initialised() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.record != nil
}

func (c *Controller) load(ctx context.Context) error {
	if c.initialised() {
		return nil
	}
	user, ok := c.ident.CurrentUser(ctx)
	if !ok {
		return errors.New("access: identity unavailable")
	}
	project, ok := c.ident.CurrentProject(ctx)
	if !ok {
		return errors.New("access: project unavailable")
	}

	var loaded *AssignmentRecord
	bootstrapped := false
	err := c.store.Update(ctx, project.ID, recordKey, func(raw []byte) (any, error) {
		bootstrapped = false
		if raw != nil {
			rec := &AssignmentRecord{}
			if err := json.Unmarshal(raw, rec); err != nil {
				return nil, fmt.Errorf("access: decode record: %w", err)
			}
			loaded = rec
			return rec, nil
		}
		rec := &AssignmentRecord{
			Managers:     []string{user.ID},
			Contributors: []string{},
			Readers:      []string{},
			DefaultRole:  RoleContributor,
			CreatedBy:    user.ID,
			CreatedDate:  c.now().UTC(),
		}
		loaded = rec
		bootstrapped = true
		return rec, nil
	})
	if err != nil {
		return err
	}
	if bootstrapped {
		c.logger.Info("bootstrapped security assignments",
			slog.String("project", project.ID),
			slog.String("manager", user.ID))
	}

	c.mu.Lock()
	c.record = loaded
	c.mu.Unlock()
	return nil
}

// CurrentRole resolves the role of the user carried by ctx. The second
// return is false before Init has completed or when ctx carries no user.
func (c *Controller) CurrentRole(ctx context.Context) (Role, bool) {
	user, ok := c.ident.CurrentUser(ctx)
	if !ok {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.record == nil {
		return "", false
	}
	if role, ok := c.record.RoleOf(user.ID); ok {
		return role, true
	}
	if c.record.DefaultRole.Valid() {
		return c.record.DefaultRole, true
	}
	return RoleReader, true
}

// CanRead reports whether the current user may view project data.
func (c *Controller) CanRead(ctx context.Context) bool {
	_, ok := c.CurrentRole(ctx)
	return ok
}

// CanWrite reports whether the current user may create or edit.
func (c *Controller) CanWrite(ctx context.Context) bool {
	role, ok := c.CurrentRole(ctx)
	return ok && (role == RoleContributor || role == RoleManager)
}

// CanDelete reports whether the current user may delete. Kept separate from
// CanWrite as a distinct extension point even though the predicates match.
func (c *Controller) CanDelete(ctx context.Context) bool {
	role, ok := c.CurrentRole(ctx)
	return ok && (role == RoleContributor || role == RoleManager)
}

// CanManageSecurity reports whether the current user may administer roles.
func (c *Controller) CanManageSecurity(ctx context.Context) bool {
	role, ok := c.CurrentRole(ctx)
	return ok && role == RoleManager
}

// AddUserToRole assigns userID to role, evicting any prior assignment.
// Adding an already assigned user to the same role is a no-op.
func (c *Controller) AddUserToRole(ctx context.Context, userID string, role Role) error {
	if !c.CanManageSecurity(ctx) {
		return shared.ErrPermissionDenied
	}
	if !role.Valid() {
		return shared.ErrInvalidRole
	}
	return c.mutate(ctx, func(rec *AssignmentRecord) error {
		rec.removeFromAll(userID)
		rec.addToRole(userID, role)
		return nil
	})
}

// RemoveUserFromRole clears any explicit assignment for userID. Removing
// the sole remaining manager is refused.
func (c *Controller) RemoveUserFromRole(ctx context.Context, userID string) error {
	if !c.CanManageSecurity(ctx) {
		return shared.ErrPermissionDenied
	}
	return c.mutate(ctx, func(rec *AssignmentRecord) error {
		if contains(rec.Managers, userID) && len(rec.Managers) == 1 {
			return shared.ErrLastManager
		}
		rec.removeFromAll(userID)
		return nil
	})
}

// SetDefaultRole changes the role applied to users with no explicit
// assignment.
func (c *Controller) SetDefaultRole(ctx context.Context, role Role) error {
	if !c.CanManageSecurity(ctx) {
		return shared.ErrPermissionDenied
	}
	if !role.Valid() {
		return shared.ErrInvalidRole
	}
	return c.mutate(ctx, func(rec *AssignmentRecord) error {
		rec.DefaultRole = role
		return nil
	})
}

// Assignments returns a defensive snapshot of the assignment record. The
// second return is false before Init has completed.
func (c *Controller) Assignments() (Assignments, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.record == nil {
		return Assignments{}, false
	}
	snap := c.record.clone()
	return Assignments{
		Managers:     snap.Managers,
		Contributors: snap.Contributors,
		Readers:      snap.Readers,
		DefaultRole:  snap.DefaultRole,
	}, true
}

// mutate applies one change to the latest persisted record and refreshes
// the in-memory copy on success. The read-modify-write cycle is isolated
// inside the store so conflicting writers retry against fresh state.
func (c *Controller) mutate(ctx context.Context, apply func(*AssignmentRecord) error) error {
	project, ok := c.ident.CurrentProject(ctx)
	if !ok {
		return errors.New("access: project unavailable")
	}
	var next *AssignmentRecord
	err := c.store.Update(ctx, project.ID, recordKey, func(raw []byte) (any, error) {
		rec := c.snapshot()
		if raw != nil {
			rec = &AssignmentRecord{}
			if err := json.Unmarshal(raw, rec); err != nil {
				return nil, fmt.Errorf("access: decode record: %w", err)
			}
		}
		if rec == nil {
			return nil, errors.New("access: record not initialised")
		}
		if err := apply(rec); err != nil {
			return nil, err
		}
		next = rec
		return rec, nil
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.record = next
	c.mu.Unlock()
	return nil
}

func (c *Controller) snapshot() *AssignmentRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.record.clone()
}
