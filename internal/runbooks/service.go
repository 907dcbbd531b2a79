package runbooks

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/runbook-hub/runbook-hub/internal/audit"
	"github.com/runbook-hub/runbook-hub/internal/shared"
)

// Guard answers authorization queries before a mutation is applied.
type Guard interface {
	Init(ctx context.Context) error
	CanRead(ctx context.Context) bool
	CanWrite(ctx context.Context) bool
	CanDelete(ctx context.Context) bool
}

// Recorder appends one audit entry per successful mutation.
type Recorder interface {
	Record(ctx context.Context, action audit.Action, entityType audit.EntityType, entityID, entityName string, details map[string]any) audit.Entry
}

// Service owns runbook and task operations. Every mutation is gated by the
// guard and recorded on the trail after it succeeds.
type Service struct {
	repo  *Repository
	guard Guard
	trail Recorder
	now   func() time.Time
	newID func() string
}

// NewService constructs a Service.
func NewService(repo *Repository, guard Guard, trail Recorder) *Service {
	return &Service{
		repo:  repo,
		guard: guard,
		trail: trail,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// CreateInput carries the writable runbook fields.
type CreateInput struct {
	Name        string
	Description string
	Owner       string
	Tags        []string
	StartDate   string
	EndDate     string
}

// TaskInput carries the writable task fields.
type TaskInput struct {
	Title      string
	Owner      string
	StartDate  string
	EndDate    string
	WorkItemID string
}

// List returns runbooks matching the search term and status filter.
func (s *Service) List(ctx context.Context, search, status string) ([]Runbook, error) {
	if err := s.ensureRead(ctx); err != nil {
		return nil, err
	}
	collection, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	term := strings.ToLower(strings.TrimSpace(search))
	matched := make([]Runbook, 0, len(collection))
	for _, runbook := range collection {
		if status != "" && status != "all" && string(runbook.Status) != status {
			continue
		}
		if term != "" && !matchesSearch(runbook, term) {
			continue
		}
		matched = append(matched, runbook)
	}
	return matched, nil
}

// Get returns one runbook by id.
func (s *Service) Get(ctx context.Context, id string) (Runbook, error) {
	if err := s.ensureRead(ctx); err != nil {
		return Runbook{}, err
	}
	collection, err := s.repo.List(ctx)
	if err != nil {
		return Runbook{}, err
	}
	for _, runbook := range collection {
		if runbook.ID == id {
			return runbook, nil
		}
	}
	return Runbook{}, shared.ErrNotFound
}

// Create adds a new active runbook.
func (s *Service) Create(ctx context.Context, input CreateInput) (Runbook, error) {
	if err := s.ensureWrite(ctx); err != nil {
		return Runbook{}, err
	}
	now := s.now().UTC()
	runbook := Runbook{
		ID:           "runbook-" + s.newID(),
		Name:         strings.TrimSpace(input.Name),
		Description:  strings.TrimSpace(input.Description),
		Owner:        strings.TrimSpace(input.Owner),
		Tags:         input.Tags,
		StartDate:    input.StartDate,
		EndDate:      input.EndDate,
		Status:       StatusActive,
		Tasks:        []Task{},
		CreatedDate:  now,
		ModifiedDate: now,
	}
	err := s.repo.Mutate(ctx, func(collection []Runbook) ([]Runbook, error) {
		return append(collection, runbook), nil
	})
	if err != nil {
		return Runbook{}, err
	}
	s.trail.Record(ctx, audit.ActionCreate, audit.EntityRunbook, runbook.ID, runbook.Name, map[string]any{
		"description": runbook.Description,
		"owner":       runbook.Owner,
		"startDate":   runbook.StartDate,
		"endDate":     runbook.EndDate,
	})
	return runbook, nil
}

// Update edits an existing runbook and records a field-level change diff.
func (s *Service) Update(ctx context.Context, id string, input CreateInput) (Runbook, error) {
	if err := s.ensureWrite(ctx); err != nil {
		return Runbook{}, err
	}
	var updated Runbook
	var changes map[string]any
	err := s.mutateRunbook(ctx, id, func(runbook *Runbook) error {
		changes = map[string]any{}
		diff(changes, "name", runbook.Name, strings.TrimSpace(input.Name))
		diff(changes, "description", runbook.Description, strings.TrimSpace(input.Description))
		diff(changes, "owner", runbook.Owner, strings.TrimSpace(input.Owner))
		diff(changes, "startDate", runbook.StartDate, input.StartDate)
		diff(changes, "endDate", runbook.EndDate, input.EndDate)
		runbook.Name = strings.TrimSpace(input.Name)
		runbook.Description = strings.TrimSpace(input.Description)
		runbook.Owner = strings.TrimSpace(input.Owner)
		runbook.Tags = input.Tags
		runbook.StartDate = input.StartDate
		runbook.EndDate = input.EndDate
		runbook.ModifiedDate = s.now().UTC()
		updated = *runbook
		return nil
	})
	if err != nil {
		return Runbook{}, err
	}
	s.trail.Record(ctx, audit.ActionUpdate, audit.EntityRunbook, updated.ID, updated.Name, map[string]any{
		"changes": changes,
	})
	return updated, nil
}

// Delete removes a runbook permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.ensureDelete(ctx); err != nil {
		return err
	}
	var removed Runbook
	err := s.repo.Mutate(ctx, func(collection []Runbook) ([]Runbook, error) {
		next := collection[:0]
		found := false
		for _, runbook := range collection {
			if runbook.ID == id {
				removed = runbook
				found = true
				continue
			}
			next = append(next, runbook)
		}
		if !found {
			return nil, shared.ErrNotFound
		}
		return next, nil
	})
	if err != nil {
		return err
	}
	s.trail.Record(ctx, audit.ActionDelete, audit.EntityRunbook, removed.ID, removed.Name, nil)
	return nil
}

// Archive moves a runbook out of the active list.
func (s *Service) Archive(ctx context.Context, id string) (Runbook, error) {
	if err := s.ensureWrite(ctx); err != nil {
		return Runbook{}, err
	}
	var archived Runbook
	err := s.mutateRunbook(ctx, id, func(runbook *Runbook) error {
		runbook.Status = StatusArchived
		runbook.ModifiedDate = s.now().UTC()
		archived = *runbook
		return nil
	})
	if err != nil {
		return Runbook{}, err
	}
	s.trail.Record(ctx, audit.ActionArchive, audit.EntityRunbook, archived.ID, archived.Name, nil)
	return archived, nil
}

// AddTask appends a task to a runbook.
func (s *Service) AddTask(ctx context.Context, runbookID string, input TaskInput) (Task, error) {
	if err := s.ensureWrite(ctx); err != nil {
		return Task{}, err
	}
	task := Task{
		ID:         s.newID(),
		Title:      strings.TrimSpace(input.Title),
		Owner:      strings.TrimSpace(input.Owner),
		StartDate:  input.StartDate,
		EndDate:    input.EndDate,
		WorkItemID: strings.TrimSpace(input.WorkItemID),
	}
	var parent Runbook
	err := s.mutateRunbook(ctx, runbookID, func(runbook *Runbook) error {
		runbook.Tasks = append(runbook.Tasks, task)
		runbook.ModifiedDate = s.now().UTC()
		parent = *runbook
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	s.trail.Record(ctx, audit.ActionCreate, audit.EntityTask, task.ID, task.Title, map[string]any{
		"runbookId":   parent.ID,
		"runbookName": parent.Name,
		"owner":       task.Owner,
		"startDate":   task.StartDate,
		"endDate":     task.EndDate,
		"workItemId":  task.WorkItemID,
	})
	return task, nil
}

// UpdateTask edits a task and records a field-level change diff.
func (s *Service) UpdateTask(ctx context.Context, runbookID, taskID string, input TaskInput) (Task, error) {
	if err := s.ensureWrite(ctx); err != nil {
		return Task{}, err
	}
	var updated Task
	var parent Runbook
	var changes map[string]any
	err := s.mutateTask(ctx, runbookID, taskID, func(runbook *Runbook, task *Task) error {
		changes = map[string]any{}
		diff(changes, "title", task.Title, strings.TrimSpace(input.Title))
		diff(changes, "owner", task.Owner, strings.TrimSpace(input.Owner))
		diff(changes, "startDate", task.StartDate, input.StartDate)
		diff(changes, "endDate", task.EndDate, input.EndDate)
		diff(changes, "workItemId", task.WorkItemID, strings.TrimSpace(input.WorkItemID))
		task.Title = strings.TrimSpace(input.Title)
		task.Owner = strings.TrimSpace(input.Owner)
		task.StartDate = input.StartDate
		task.EndDate = input.EndDate
		task.WorkItemID = strings.TrimSpace(input.WorkItemID)
		updated = *task
		parent = *runbook
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	s.trail.Record(ctx, audit.ActionUpdate, audit.EntityTask, updated.ID, updated.Title, map[string]any{
		"runbookId":   parent.ID,
		"runbookName": parent.Name,
		"changes":     changes,
	})
	return updated, nil
}

// SetTaskCompletion toggles the completed flag.
func (s *Service) SetTaskCompletion(ctx context.Context, runbookID, taskID string, completed bool) (Task, error) {
	if err := s.ensureWrite(ctx); err != nil {
		return Task{}, err
	}
	var updated Task
	var parent Runbook
	err := s.mutateTask(ctx, runbookID, taskID, func(runbook *Runbook, task *Task) error {
		task.Completed = completed
		updated = *task
		parent = *runbook
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	change := "Marked as incomplete"
	if completed {
		change = "Marked as completed"
	}
	s.trail.Record(ctx, audit.ActionUpdate, audit.EntityTask, updated.ID, updated.Title, map[string]any{
		"runbookId":   parent.ID,
		"runbookName": parent.Name,
		"completed":   completed,
		"change":      change,
	})
	return updated, nil
}

// DeleteTask soft-deletes a task.
func (s *Service) DeleteTask(ctx context.Context, runbookID, taskID string) (Task, error) {
	return s.setTaskDeleted(ctx, runbookID, taskID, true)
}

// RestoreTask reverses a soft delete.
func (s *Service) RestoreTask(ctx context.Context, runbookID, taskID string) (Task, error) {
	return s.setTaskDeleted(ctx, runbookID, taskID, false)
}

func (s *Service) setTaskDeleted(ctx context.Context, runbookID, taskID string, deleted bool) (Task, error) {
	if err := s.ensureDelete(ctx); err != nil {
		return Task{}, err
	}
	var updated Task
	var parent Runbook
	err := s.mutateTask(ctx, runbookID, taskID, func(runbook *Runbook, task *Task) error {
		task.Deleted = deleted
		updated = *task
		parent = *runbook
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	action := audit.ActionDelete
	if !deleted {
		action = audit.ActionRestore
	}
	s.trail.Record(ctx, action, audit.EntityTask, updated.ID, updated.Title, map[string]any{
		"runbookId":   parent.ID,
		"runbookName": parent.Name,
	})
	return updated, nil
}

func (s *Service) mutateRunbook(ctx context.Context, id string, apply func(*Runbook) error) error {
	return s.repo.Mutate(ctx, func(collection []Runbook) ([]Runbook, error) {
		for i := range collection {
			if collection[i].ID != id {
				continue
			}
			if err := apply(&collection[i]); err != nil {
				return nil, err
			}
			return collection, nil
		}
		return nil, shared.ErrNotFound
	})
}

func (s *Service) mutateTask(ctx context.Context, runbookID, taskID string, apply func(*Runbook, *Task) error) error {
	return s.mutateRunbook(ctx, runbookID, func(runbook *Runbook) error {
		for i := range runbook.Tasks {
			if runbook.Tasks[i].ID != taskID {
				continue
			}
			if err := apply(runbook, &runbook.Tasks[i]); err != nil {
				return err
			}
			runbook.ModifiedDate = s.now().UTC()
			return nil
		}
		return shared.ErrNotFound
	})
}

func (s *Service) ensureRead(ctx context.Context) error {
	s.ensureInit(ctx)
	if !s.guard.CanRead(ctx) {
		return shared.ErrPermissionDenied
	}
	return nil
}

func (s *Service) ensureWrite(ctx context.Context) error {
	s.ensureInit(ctx)
	if !s.guard.CanWrite(ctx) {
		return shared.ErrPermissionDenied
	}
	return nil
}

func (s *Service) ensureDelete(ctx context.Context) error {
	s.ensureInit(ctx)
	if !s.guard.CanDelete(ctx) {
		return shared.ErrPermissionDenied
	}
	return nil
}

func (s *Service) ensureInit(ctx context.Context) {
	// Best effort: a failed load leaves the guard answering false.
	_ = s.guard.Init(ctx)
}

func matchesSearch(runbook Runbook, term string) bool {
	if strings.Contains(strings.ToLower(runbook.Name), term) {
		return true
	}
	if strings.Contains(strings.ToLower(runbook.Description), term) {
		return true
	}
	for _, tag := range runbook.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

func diff(changes map[string]any, field, oldValue, newValue string) {
	if oldValue == newValue {
		return
	}
	changes[field] = map[string]string{"old": oldValue, "new": newValue}
}
