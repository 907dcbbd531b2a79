package audit

import "time"

// Action enumerates the domain mutations recorded in the trail.
type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionUpdate  Action = "UPDATE"
	ActionDelete  Action = "DELETE"
	ActionRestore Action = "RESTORE"
	ActionArchive Action = "ARCHIVE"
)

// EntityType enumerates the kinds of objects an entry can reference.
type EntityType string

const (
	EntityRunbook EntityType = "RUNBOOK"
	EntityTask    EntityType = "TASK"
)

// Actor is the identity snapshot stamped on an entry at creation time.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ProjectRef is the project snapshot stamped on an entry.
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Entry is one immutable audit record. Entity name and project name are
// snapshots taken when the event happened; later renames do not rewrite
// past entries.
type Entry struct {
	ID         int64          `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Action     Action         `json:"action"`
	EntityType EntityType     `json:"entityType"`
	EntityID   string         `json:"entityId"`
	EntityName string         `json:"entityName"`
	User       Actor          `json:"user"`
	Project    ProjectRef     `json:"project"`
	Details    map[string]any `json:"details"`
	UserAgent  string         `json:"userAgent"`
}

// Filters narrows a query. Zero-valued fields are ignored; the set
// predicates combine with AND.
type Filters struct {
	EntityType EntityType
	EntityID   string
	Action     Action
	ActorID    string
	From       time.Time
	To         time.Time
}

// Matches reports whether the entry satisfies every set predicate.
func (f Filters) Matches(e Entry) bool {
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.ActorID != "" && e.User.ID != f.ActorID {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}
