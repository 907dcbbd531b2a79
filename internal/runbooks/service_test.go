package runbooks_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/runbook-hub/runbook-hub/internal/audit"
	"github.com/runbook-hub/runbook-hub/internal/runbooks"
	"github.com/runbook-hub/runbook-hub/internal/settings"
	"github.com/runbook-hub/runbook-hub/internal/shared"
	_ "github.com/runbook-hub/runbook-hub/testing"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(ctx context.Context, project, key string, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[project+"/"+key]
	if !ok {
		return shared.ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (s *memStore) Set(ctx context.Context, project, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
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

// stubGuard answers every permission query from fixed flags.
type stubGuard struct {
	read, write, del bool
}

func (g stubGuard) Init(ctx context.Context) error { return nil }

func (g stubGuard) CanRead(ctx context.Context) bool { return g.read }

func (g stubGuard) CanWrite(ctx context.Context) bool { return g.write }

func (g stubGuard) CanDelete(ctx context.Context) bool { return g.del }

var (
	contributorGuard = stubGuard{read: true, write: true, del: true}
	readerGuard      = stubGuard{read: true}
	strangerGuard    = stubGuard{}
)

// captureTrail collects recorded entries for assertions.
type captureTrail struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (c *captureTrail) Record(ctx context.Context, action audit.Action, entityType audit.EntityType, entityID, entityName string, details map[string]any) audit.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    details,
	}
	c.entries = append(c.entries, entry)
	return entry
}

func (c *captureTrail) last(t *testing.T) audit.Entry {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.entries, "expected an audit entry to be recorded")
	return c.entries[len(c.entries)-1]
}

func (c *captureTrail) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func newService(store *memStore, guard runbooks.Guard) (*runbooks.Service, *captureTrail) {
	trail := &captureTrail{}
	repo := runbooks.NewRepository(store, "proj")
	return runbooks.NewService(repo, guard, trail), trail
}

func TestCreateRunbook(t *testing.T) {
	store := newMemStore()
	svc, trail := newService(store, contributorGuard)
	ctx := context.Background()

	created, err := svc.Create(ctx, runbooks.CreateInput{
		Name:        "  Deploy  ",
		Description: "Release checklist",
		Owner:       "Alice",
		Tags:        []string{"release"},
		StartDate:   "2026-09-01",
		EndDate:     "2026-09-05",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "Deploy", created.Name)
	require.Equal(t, runbooks.StatusActive, created.Status)
	require.NotNil(t, created.Tasks)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)

	entry := trail.last(t)
	require.Equal(t, audit.ActionCreate, entry.Action)
	require.Equal(t, audit.EntityRunbook, entry.EntityType)
	require.Equal(t, "Deploy", entry.EntityName)
	require.Equal(t, "Alice", entry.Details["owner"])
}

func TestListFiltersBySearchAndStatus(t *testing.T) {
	store := newMemStore()
	svc, _ := newService(store, contributorGuard)
	ctx := context.Background()

	deploy, err := svc.Create(ctx, runbooks.CreateInput{Name: "Deploy service", Tags: []string{"release"}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, runbooks.CreateInput{Name: "Incident drill", Description: "quarterly exercise"})
	require.NoError(t, err)
	_, err = svc.Archive(ctx, deploy.ID)
	require.NoError(t, err)

	all, err := svc.List(ctx, "", "all")
	require.NoError(t, err)
	require.Len(t, all, 2)

	active, err := svc.List(ctx, "", "active")
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "Incident drill", active[0].Name)

	byTag, err := svc.List(ctx, "RELEASE", "all")
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	require.Equal(t, deploy.ID, byTag[0].ID)

	byDescription, err := svc.List(ctx, "quarterly", "")
	require.NoError(t, err)
	require.Len(t, byDescription, 1)
}

func TestUpdateRecordsChangeDiff(t *testing.T) {
	store := newMemStore()
	svc, trail := newService(store, contributorGuard)
	ctx := context.Background()

	created, err := svc.Create(ctx, runbooks.CreateInput{Name: "Deploy", Owner: "Alice"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, runbooks.CreateInput{Name: "Deploy v2", Owner: "Alice"})
	require.NoError(t, err)
	require.Equal(t, "Deploy v2", updated.Name)

	entry := trail.last(t)
	require.Equal(t, audit.ActionUpdate, entry.Action)
	changes, ok := entry.Details["changes"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, changes, "name")
	require.NotContains(t, changes, "owner")
}

func TestDeleteRunbook(t *testing.T) {
	store := newMemStore()
	svc, trail := newService(store, contributorGuard)
	ctx := context.Background()

	created, err := svc.Create(ctx, runbooks.CreateInput{Name: "Deploy"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	entry := trail.last(t)
	require.Equal(t, audit.ActionDelete, entry.Action)
	require.Equal(t, audit.EntityRunbook, entry.EntityType)
}

func TestTaskLifecycle(t *testing.T) {
	store := newMemStore()
	svc, trail := newService(store, contributorGuard)
	ctx := context.Background()

	created, err := svc.Create(ctx, runbooks.CreateInput{Name: "Deploy"})
	require.NoError(t, err)

	task, err := svc.AddTask(ctx, created.ID, runbooks.TaskInput{
		Title:      "Scale down",
		Owner:      "Bob",
		WorkItemID: "4711",
	})
	require.NoError(t, err)
	require.Equal(t, audit.EntityTask, trail.last(t).EntityType)
	require.Equal(t, "4711", trail.last(t).Details["workItemId"])

	done, err := svc.SetTaskCompletion(ctx, created.ID, task.ID, true)
	require.NoError(t, err)
	require.True(t, done.Completed)
	require.Equal(t, "Marked as completed", trail.last(t).Details["change"])

	deleted, err := svc.DeleteTask(ctx, created.ID, task.ID)
	require.NoError(t, err)
	require.True(t, deleted.Deleted)
	require.Equal(t, audit.ActionDelete, trail.last(t).Action)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Tasks, 1, "deleted task stays stored for restore")

	restored, err := svc.RestoreTask(ctx, created.ID, task.ID)
	require.NoError(t, err)
	require.False(t, restored.Deleted)
	require.Equal(t, audit.ActionRestore, trail.last(t).Action)
}

func TestProgressSkipsDeletedTasks(t *testing.T) {
	store := newMemStore()
	svc, _ := newService(store, contributorGuard)
	ctx := context.Background()

	created, err := svc.Create(ctx, runbooks.CreateInput{Name: "Deploy"})
	require.NoError(t, err)

	first, err := svc.AddTask(ctx, created.ID, runbooks.TaskInput{Title: "one", WorkItemID: "1"})
	require.NoError(t, err)
	second, err := svc.AddTask(ctx, created.ID, runbooks.TaskInput{Title: "two", WorkItemID: "2"})
	require.NoError(t, err)

	_, err = svc.SetTaskCompletion(ctx, created.ID, first.ID, true)
	require.NoError(t, err)
	_, err = svc.DeleteTask(ctx, created.ID, second.ID)
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	completed, total := got.Progress()
	require.Equal(t, 1, completed)
	require.Equal(t, 1, total)
}

func TestReaderCannotMutate(t *testing.T) {
	store := newMemStore()
	writer, _ := newService(store, contributorGuard)
	ctx := context.Background()

	created, err := writer.Create(ctx, runbooks.CreateInput{Name: "Deploy"})
	require.NoError(t, err)
	task, err := writer.AddTask(ctx, created.ID, runbooks.TaskInput{Title: "one", WorkItemID: "1"})
	require.NoError(t, err)

	reader, trail := newService(store, readerGuard)

	listed, err := reader.List(ctx, "", "all")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = reader.Create(ctx, runbooks.CreateInput{Name: "Nope"})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
	_, err = reader.Update(ctx, created.ID, runbooks.CreateInput{Name: "Nope"})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
	err = reader.Delete(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
	_, err = reader.DeleteTask(ctx, created.ID, task.ID)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	require.Zero(t, trail.count(), "denied operations must not be recorded")

	after, err := reader.List(ctx, "", "all")
	require.NoError(t, err)
	require.Equal(t, listed, after, "denied operations must not change data")
}

func TestStrangerCannotRead(t *testing.T) {
	store := newMemStore()
	svc, _ := newService(store, strangerGuard)

	_, err := svc.List(context.Background(), "", "all")
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestGetUnknownRunbook(t *testing.T) {
	store := newMemStore()
	svc, _ := newService(store, contributorGuard)

	_, err := svc.Get(context.Background(), "runbook-missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMutateUnknownTask(t *testing.T) {
	store := newMemStore()
	svc, trail := newService(store, contributorGuard)
	ctx := context.Background()

	created, err := svc.Create(ctx, runbooks.CreateInput{Name: "Deploy"})
	require.NoError(t, err)
	before := trail.count()

	_, err = svc.SetTaskCompletion(ctx, created.ID, "task-missing", true)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, before, trail.count())
}
