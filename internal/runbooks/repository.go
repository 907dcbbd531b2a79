package runbooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/runbook-hub/runbook-hub/internal/settings"
	"github.com/runbook-hub/runbook-hub/internal/shared"
)

// collectionKey is the settings store key holding all project runbooks.
const collectionKey = "projectRunbooks"

// Repository persists the runbook collection in the settings store.
type Repository struct {
	store   settings.Store
	project string
}

// NewRepository constructs a Repository scoped to the given project.
func NewRepository(store settings.Store, projectID string) *Repository {
	return &Repository{store: store, project: projectID}
}

// List returns all runbooks, empty when none are stored.
func (r *Repository) List(ctx context.Context) ([]Runbook, error) {
	var collection []Runbook
	if err := r.store.Get(ctx, r.project, collectionKey, &collection); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return collection, nil
}

// Mutate applies fn to the latest stored collection in one
// read-modify-write cycle.
func (r *Repository) Mutate(ctx context.Context, fn func([]Runbook) ([]Runbook, error)) error {
	return r.store.Update(ctx, r.project, collectionKey, func(raw []byte) (any, error) {
		var collection []Runbook
		if raw != nil {
			if err := json.Unmarshal(raw, &collection); err != nil {
				return nil, fmt.Errorf("runbooks: decode collection: %w", err)
			}
		}
		next, err := fn(collection)
		if err != nil {
			return nil, err
		}
		return next, nil
	})
}
