package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue recalculation tasks run on.
	QueueDefault = "default"
	// TaskRecalculateClient recalculates the usage of one client.
	TaskRecalculateClient = "usage:recalculate_client"
	// TaskRecalculateAll fans out one TaskRecalculateClient per active client.
	TaskRecalculateAll = "usage:recalculate_all"
)

// RecalculatePayload is the body of a recalculation task.
type RecalculatePayload struct {
	ClientID string `json:"client_id,omitempty"`
	Trigger  string `json:"trigger"`
}

// NewRecalculateClientTask builds a task recalculating clientID.
func NewRecalculateClientTask(clientID, trigger string) (*asynq.Task, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, errors.New("recalculate client: client id is required")
	}
	body, err := json.Marshal(RecalculatePayload{ClientID: clientID, Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecalculateClient, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// NewRecalculateAllTask builds the fan-out task used by the scheduler.
func NewRecalculateAllTask(trigger string) (*asynq.Task, error) {
	body, err := json.Marshal(RecalculatePayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecalculateAll, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

func decodePayload(task *asynq.Task) (RecalculatePayload, error) {
	var payload RecalculatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	return payload, nil
}
