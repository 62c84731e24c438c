package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/newwdead/bizcard-annotator/internal/mapper"
)

// TypeFeedbackIngest is the task type of a corrected document
const TypeFeedbackIngest = "feedback:ingest"

// NewFeedbackTask wraps fb in an ingest task
func NewFeedbackTask(fb *mapper.Feedback) (*asynq.Task, error) {
	if fb == nil || fb.ContactID == "" {
		return nil, fmt.Errorf("feedback with a contact ID is required")
	}
	payload, err := json.Marshal(fb)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feedback: %w", err)
	}
	return asynq.NewTask(TypeFeedbackIngest, payload), nil
}

func parseFeedbackTask(task *asynq.Task) (*mapper.Feedback, error) {
	var fb mapper.Feedback
	if err := json.Unmarshal(task.Payload(), &fb); err != nil {
		return nil, err
	}
	if fb.ContactID == "" {
		return nil, fmt.Errorf("contact_id is missing")
	}
	return &fb, nil
}
