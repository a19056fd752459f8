package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskIntegrityScan reports dangling role and profile references.
	TaskIntegrityScan = "rbac:integrity_scan"
)

// IntegrityScanPayload carries who asked for the scan. Scheduled runs leave
// it empty.
type IntegrityScanPayload struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

// NewIntegrityScanTask constructs an Asynq task.
func NewIntegrityScanTask(payload IntegrityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIntegrityScan, data), nil
}
