package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue every roommend task is enqueued on.
	QueueDefault = "default"
	// TaskRecordLastLogin persists the last login timestamp of a user.
	TaskRecordLastLogin = "auth:record_login"
)

// RecordLoginPayload identifies the user and the moment they signed in.
type RecordLoginPayload struct {
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

var errIncompletePayload = errors.New("jobs: record login payload incomplete")

// Validate rejects payloads that can never succeed.
func (p RecordLoginPayload) Validate() error {
	if p.UserID == "" || p.At.IsZero() {
		return errIncompletePayload
	}
	return nil
}

// NewRecordLoginTask encodes payload. Failed updates are retried a few times;
// a later login overwrites the value anyway.
func NewRecordLoginTask(payload RecordLoginPayload) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode record login payload: %w", err)
	}
	return asynq.NewTask(TaskRecordLastLogin, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

// ParseRecordLoginPayload decodes and validates a task payload. Errors wrap
// asynq.SkipRetry since a malformed payload never becomes valid.
func ParseRecordLoginPayload(task *asynq.Task) (RecordLoginPayload, error) {
	var payload RecordLoginPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RecordLoginPayload{}, fmt.Errorf("decode record login payload: %w: %w", err, asynq.SkipRetry)
	}
	if err := payload.Validate(); err != nil {
		return RecordLoginPayload{}, fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return payload, nil
}
