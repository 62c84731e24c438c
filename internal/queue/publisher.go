/**
 * Feedback Publisher
 *
 * Enqueues corrected documents for the feedback worker. Used by the editor as
 * its feedback sink when FEEDBACK_TRANSPORT=queue.
 */

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/newwdead/bizcard-annotator/internal/mapper"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Publisher implements mapper.FeedbackSink on top of an asynq client
type Publisher struct {
	client    enqueuer
	queueName string
	maxRetry  int
}

// NewPublisher creates a publisher for queueName
func NewPublisher(redisURL, queueName string) (*Publisher, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if queueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &Publisher{
		client:    asynq.NewClient(redisOpt),
		queueName: queueName,
		maxRetry:  5,
	}, nil
}

// Submit enqueues fb. It returns once the task is in Redis.
func (p *Publisher) Submit(ctx context.Context, fb *mapper.Feedback) error {
	task, err := NewFeedbackTask(fb)
	if err != nil {
		return err
	}

	if _, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue(p.queueName),
		asynq.MaxRetry(p.maxRetry),
		asynq.Timeout(2*time.Minute),
	); err != nil {
		return fmt.Errorf("failed to enqueue feedback for contact %s: %w", fb.ContactID, err)
	}
	return nil
}

// Close closes the underlying client
func (p *Publisher) Close() error {
	return p.client.Close()
}
