package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRequestDecision mails a requester the outcome of their room request.
	TaskRequestDecision = "room_request:decision"
	// TaskIdempotencyCleanup prunes expired intake idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// DecisionPayload is the snapshot of a decided request the mail is built from.
type DecisionPayload struct {
	RequestID      string `json:"request_id"`
	RequesterName  string `json:"requester_name"`
	RequesterEmail string `json:"requester_email"`
	RoomName       string `json:"room_name"`
	RequestedDate  string `json:"requested_date"`
	TimeStart      string `json:"time_start"`
	TimeEnd        string `json:"time_end"`
	Status         string `json:"status"`
}

// NewDecisionTask builds a decision mail task. The task id is derived from
// the request so a retried enqueue never mails twice.
func NewDecisionTask(payload DecisionPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRequestDecision, body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.TaskID(TaskRequestDecision+":"+payload.RequestID),
	), nil
}

// CleanupPayload configures one idempotency cleanup run.
type CleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// Retention returns the configured window, falling back to fallback when unset.
func (p CleanupPayload) Retention(fallback time.Duration) time.Duration {
	if p.RetentionHours <= 0 {
		return fallback
	}
	return time.Duration(p.RetentionHours) * time.Hour
}

// NewIdempotencyCleanupTask builds the cleanup task registered on the scheduler.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(CleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
