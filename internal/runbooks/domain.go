package runbooks

import "time"

// Status is the lifecycle state of a runbook.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Task is a unit of work within a runbook. Deleted tasks are kept for
// restore rather than removed.
type Task struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Owner      string `json:"owner"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	WorkItemID string `json:"workItemId,omitempty"`
	Completed  bool   `json:"completed"`
	Deleted    bool   `json:"deleted"`
}

// Runbook is a named collection of scheduled tasks.
type Runbook struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Owner        string    `json:"owner"`
	Tags         []string  `json:"tags"`
	StartDate    string    `json:"startDate"`
	EndDate      string    `json:"endDate"`
	Status       Status    `json:"status"`
	Tasks        []Task    `json:"tasks"`
	CreatedDate  time.Time `json:"createdDate"`
	ModifiedDate time.Time `json:"modifiedDate"`
}

// Progress returns completed and total counts over non-deleted tasks.
func (r Runbook) Progress() (completed, total int) {
	for _, task := range r.Tasks {
		if task.Deleted {
			continue
		}
		total++
		if task.Completed {
			completed++
		}
	}
	return completed, total
}
