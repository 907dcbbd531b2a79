package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRetention is the task type for pruning aged audit entries.
	TaskAuditRetention = "audit:retention"
)

// AuditRetentionPayload describes one retention sweep.
type AuditRetentionPayload struct {
	ProjectID string `json:"project_id"`
	MaxAge    string `json:"max_age"`
}

// NewAuditRetentionTask constructs an Asynq task.
func NewAuditRetentionTask(payload AuditRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}
