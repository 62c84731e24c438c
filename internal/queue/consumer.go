/**
 * Queue Consumer for the feedback worker
 *
 * Consumes feedback:ingest tasks from Redis and stores the corrected
 * documents. Uses Asynq for queue management.
 */

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/newwdead/bizcard-annotator/internal/errors"
	"github.com/newwdead/bizcard-annotator/internal/logging"
	"github.com/newwdead/bizcard-annotator/internal/mapper"
	"github.com/newwdead/bizcard-annotator/internal/storage"
)

// FeedbackStore persists corrected documents
type FeedbackStore interface {
	StoreFeedback(ctx context.Context, in *storage.FeedbackInput) (*storage.StoredFeedback, error)
}

// StatsRecorder tracks what was stored
type StatsRecorder interface {
	Record(ctx context.Context, fb *mapper.Feedback, stored *storage.StoredFeedback) error
}

// Consumer handles task consumption from Redis queue
type Consumer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	store  FeedbackStore
	stats  StatsRecorder
	config *ConsumerConfig
	logger *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Store       FeedbackStore
	// Stats is optional
	Stats             StatsRecorder
	ProcessingTimeout int64 // milliseconds, default 60000
	Logger            *logging.Logger
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Store == nil {
		return nil, fmt.Errorf("Store is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("queue")
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: retryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task processing error", "type", task.Type(), "error", err)
			}),
		},
	)

	return newConsumer(server, cfg, logger), nil
}

func newConsumer(server *asynq.Server, cfg *ConsumerConfig, logger *logging.Logger) *Consumer {
	c := &Consumer{
		server: server,
		mux:    asynq.NewServeMux(),
		store:  cfg.Store,
		stats:  cfg.Stats,
		config: cfg,
		logger: logger,
	}
	c.mux.HandleFunc(TypeFeedbackIngest, c.handleFeedbackIngest)
	return c
}

// retryDelay is exponential backoff: 5s, 10s, 20s, capped at 60s
func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	delay := time.Duration(5*(1<<uint(n))) * time.Second
	if delay > 60*time.Second || delay <= 0 {
		delay = 60 * time.Second
	}
	return delay
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting queue consumer", "concurrency", c.config.Concurrency, "queue", c.config.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			c.logger.Error("Queue consumer error", "error", err)
		}
	}()

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info("Stopping queue consumer")
	c.server.Shutdown()
	c.logger.Info("Queue consumer stopped")
	return nil
}

func (c *Consumer) timeout() time.Duration {
	if c.config.ProcessingTimeout > 0 {
		return time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	}
	return 60 * time.Second
}

// handleFeedbackIngest stores one corrected document
func (c *Consumer) handleFeedbackIngest(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	fb, err := parseFeedbackTask(task)
	if err != nil {
		// Malformed payloads are not retried.
		return fmt.Errorf("%w: %w", errors.NewInvalidPayloadError(task.Type(), err), asynq.SkipRetry)
	}

	log := c.logger.With("contact", fb.ContactID)
	log.Debug("Storing feedback", "blocks", len(fb.Blocks))

	timeout := c.timeout()
	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stored, err := c.store.StoreFeedback(processCtx, &storage.FeedbackInput{
		ContactID:   fb.ContactID,
		ImageWidth:  fb.ImageWidth,
		ImageHeight: fb.ImageHeight,
		Blocks:      fb.Blocks,
		SubmittedAt: fb.SubmittedAt,
	})
	duration := time.Since(startTime)

	if err != nil && stored == nil {
		if processCtx.Err() == context.DeadlineExceeded {
			log.Error("Feedback storage timed out", "duration", duration, "timeout", timeout)
			return errors.NewProcessingTimeoutError(fb.ContactID, timeout, err)
		}
		log.Error("Feedback storage failed", "duration", duration, "error", err)
		return errors.NewStorageFailedError(fb.ContactID, err)
	}
	if err != nil {
		// The sample is stored; only the cleanup of older vectors failed.
		log.Warn("Feedback stored with warnings", "error", err)
	}

	if c.stats != nil {
		if err := c.stats.Record(ctx, fb, stored); err != nil {
			log.Warn("Failed to record feedback stats", "error", err)
		}
	}

	log.Info("Feedback stored",
		"sample", stored.SampleID,
		"points", len(stored.PointIDs),
		"agreed", fmt.Sprintf("%d/%d", stored.Agreed, stored.Compared),
		"duration", duration)
	return nil
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
		"timeout":     c.timeout().String(),
	}
}
