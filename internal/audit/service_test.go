package audit_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/runbook-hub/runbook-hub/internal/audit"
	"github.com/runbook-hub/runbook-hub/internal/identity"
	"github.com/runbook-hub/runbook-hub/internal/settings"
	"github.com/runbook-hub/runbook-hub/internal/shared"
	_ "github.com/runbook-hub/runbook-hub/testing"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(ctx context.Context, project, key string, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return shared.ErrStoreUnavailable
	}
	raw, ok := s.data[project+"/"+key]
	if !ok {
		return shared.ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (s *memStore) Set(ctx context.Context, project, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return shared.ErrStoreUnavailable
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.data[project+"/"+key] = raw
	return nil
}

func (s *memStore) Update(ctx context.Context, project, key string, fn settings.UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return shared.ErrStoreUnavailable
	}
	next, err := fn(s.data[project+"/"+key])
	if err != nil {
		return err
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return err
	}
	s.data[project+"/"+key] = raw
	return nil
}

var testProvider = identity.StaticProvider{
	User:    identity.User{ID: "user-1", Name: "Alice", Email: "alice@test.local", UniqueName: "alice@corp.local"},
	Project: identity.Project{ID: "proj", Name: "Project X"},
}

func newTrail(store settings.Store) *audit.Trail {
	return audit.NewTrail(store, testProvider, nil)
}

func TestRecordStampsIdentitySnapshot(t *testing.T) {
	store := newMemStore()
	trail := newTrail(store)

	entry := trail.Record(context.Background(), audit.ActionCreate, audit.EntityRunbook, "rb-1", "Deploy", map[string]any{"owner": "Alice"})
	trail.Flush()

	if entry.ID == 0 {
		t.Fatalf("expected non-zero entry id")
	}
	if entry.User.ID != "user-1" || entry.User.Name != "Alice" {
		t.Fatalf("unexpected actor snapshot %+v", entry.User)
	}
	if entry.User.Email != "alice@corp.local" {
		t.Fatalf("expected unique name as recorded address, got %q", entry.User.Email)
	}
	if entry.Project.ID != "proj" || entry.Project.Name != "Project X" {
		t.Fatalf("unexpected project snapshot %+v", entry.Project)
	}

	entries, err := trail.Query(context.Background(), audit.Filters{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Details["owner"] != "Alice" {
		t.Fatalf("unexpected details %+v", entries[0].Details)
	}
}

func TestLogCapacityEvictsOldest(t *testing.T) {
	store := newMemStore()
	trail := newTrail(store)
	ctx := context.Background()

	for i := 0; i <= 1000; i++ {
		trail.Record(ctx, audit.ActionCreate, audit.EntityTask, fmt.Sprintf("task-%d", i), fmt.Sprintf("entry-%d", i), nil)
		trail.Flush()
	}

	entries, err := trail.Query(ctx, audit.Filters{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 1000 {
		t.Fatalf("expected 1000 entries, got %d", len(entries))
	}
	if entries[0].EntityName != "entry-1000" {
		t.Fatalf("expected newest entry first, got %q", entries[0].EntityName)
	}
	if entries[len(entries)-1].EntityName != "entry-1" {
		t.Fatalf("expected entry-0 evicted, oldest is %q", entries[len(entries)-1].EntityName)
	}
}

func TestEntryIDsAreUnique(t *testing.T) {
	store := newMemStore()
	trail := newTrail(store)
	ctx := context.Background()

	seen := make(map[int64]bool)
	for i := 0; i < 500; i++ {
		entry := trail.Record(ctx, audit.ActionUpdate, audit.EntityTask, "task-1", "Task", nil)
		if seen[entry.ID] {
			t.Fatalf("duplicate entry id %d", entry.ID)
		}
		seen[entry.ID] = true
	}
	trail.Flush()
}

func TestRecordSwallowsStoreFailure(t *testing.T) {
	store := newMemStore()
	store.fail = true
	trail := newTrail(store)

	entry := trail.Record(context.Background(), audit.ActionDelete, audit.EntityRunbook, "rb-1", "Deploy", nil)
	trail.Flush()

	if entry.Action != audit.ActionDelete {
		t.Fatalf("expected entry returned even when persist fails")
	}
}

func TestQueryEmptyLog(t *testing.T) {
	trail := newTrail(newMemStore())
	entries, err := trail.Query(context.Background(), audit.Filters{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty log, got %d entries", len(entries))
	}
}

func TestQueryFiltersAreConjunctive(t *testing.T) {
	store := newMemStore()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	log := []audit.Entry{
		fixture(5, base.Add(4*time.Hour), audit.ActionDelete, audit.EntityTask, "task-2", "user-1"),
		fixture(4, base.Add(3*time.Hour), audit.ActionUpdate, audit.EntityTask, "task-2", "user-2"),
		fixture(3, base.Add(2*time.Hour), audit.ActionDelete, audit.EntityRunbook, "rb-1", "user-1"),
		fixture(2, base.Add(time.Hour), audit.ActionDelete, audit.EntityTask, "task-1", "user-1"),
		fixture(1, base, audit.ActionCreate, audit.EntityTask, "task-1", "user-1"),
	}
	if err := store.Set(context.Background(), "proj", audit.LogKey, log); err != nil {
		t.Fatalf("seed log: %v", err)
	}
	trail := newTrail(store)

	entries, err := trail.Query(context.Background(), audit.Filters{
		EntityType: audit.EntityTask,
		Action:     audit.ActionDelete,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != 5 || entries[1].ID != 2 {
		t.Fatalf("expected ids [5 2] preserving order, got [%d %d]", entries[0].ID, entries[1].ID)
	}

	entries, err = trail.Query(context.Background(), audit.Filters{ActorID: "user-2"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != 4 {
		t.Fatalf("expected actor filter to match entry 4, got %+v", entries)
	}

	entries, err = trail.Query(context.Background(), audit.Filters{
		From: base.Add(time.Hour),
		To:   base.Add(3 * time.Hour),
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries in window, got %d", len(entries))
	}
}

func fixture(id int64, ts time.Time, action audit.Action, entityType audit.EntityType, entityID, actorID string) audit.Entry {
	return audit.Entry{
		ID:         id,
		Timestamp:  ts,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		EntityName: entityID,
		User:       audit.Actor{ID: actorID, Name: actorID},
		Project:    audit.ProjectRef{ID: "proj", Name: "Project X"},
		Details:    map[string]any{},
	}
}
