/**
 * Feedback statistics in Redis
 *
 * Per-field counters of mapped blocks and the agreement rate of new mappings
 * with their nearest stored neighbours. Every stored sample is announced on
 * the <prefix>:events channel.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/newwdead/bizcard-annotator/internal/block"
	"github.com/newwdead/bizcard-annotator/internal/mapper"
	"github.com/newwdead/bizcard-annotator/internal/storage"
)

// Stats records feedback statistics
type Stats struct {
	client *redis.Client
	prefix string
}

// NewStats connects to Redis. Keys are namespaced by prefix.
func NewStats(redisURL, prefix string) (*Stats, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if prefix == "" {
		prefix = "ocr_feedback"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Stats{client: client, prefix: prefix}, nil
}

func (s *Stats) key(name string) string {
	return fmt.Sprintf("%s:%s", s.prefix, name)
}

// Record updates the counters for one stored sample and publishes an event
func (s *Stats) Record(ctx context.Context, fb *mapper.Feedback, stored *storage.StoredFeedback) error {
	confirmed, auto := fieldTallies(fb.Blocks)

	pipe := s.client.TxPipeline()
	pipe.Incr(ctx, s.key("samples"))
	pipe.SAdd(ctx, s.key("contacts"), fb.ContactID)
	for field, n := range confirmed {
		pipe.HIncrBy(ctx, s.key("fields:confirmed"), field, n)
	}
	for field, n := range auto {
		pipe.HIncrBy(ctx, s.key("fields:auto"), field, n)
	}
	if stored != nil && stored.Compared > 0 {
		pipe.HIncrBy(ctx, s.key("agreement"), "agreed", int64(stored.Agreed))
		pipe.HIncrBy(ctx, s.key("agreement"), "compared", int64(stored.Compared))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update feedback counters: %w", err)
	}

	event, err := json.Marshal(feedbackEvent(fb, stored, time.Now()))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return s.client.Publish(ctx, s.key("events"), event).Err()
}

// GetStats returns the global counters
func (s *Stats) GetStats(ctx context.Context) (map[string]int64, error) {
	samples, err := s.client.Get(ctx, s.key("samples")).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read sample count: %w", err)
	}
	contacts, _ := s.client.SCard(ctx, s.key("contacts")).Result()
	agreement, _ := s.client.HGetAll(ctx, s.key("agreement")).Result()

	out := map[string]int64{
		"samples":  samples,
		"contacts": contacts,
	}
	for _, k := range []string{"agreed", "compared"} {
		var n int64
		fmt.Sscan(agreement[k], &n)
		out[k] = n
	}
	return out, nil
}

// FieldCounts returns how often each field was confirmed by a user
func (s *Stats) FieldCounts(ctx context.Context) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, s.key("fields:confirmed")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read field counters: %w", err)
	}
	out := make(map[string]int64, len(raw))
	for field, v := range raw {
		var n int64
		if _, err := fmt.Sscan(v, &n); err == nil {
			out[field] = n
		}
	}
	return out, nil
}

// Close closes the Redis connection
func (s *Stats) Close() error {
	return s.client.Close()
}

// fieldTallies counts mapped blocks per field, split by who chose the field
func fieldTallies(blocks []block.Block) (confirmed, auto map[string]int64) {
	confirmed = make(map[string]int64)
	auto = make(map[string]int64)
	for _, b := range blocks {
		switch {
		case !b.HasField():
		case b.AutoDetected:
			auto[b.Field]++
		default:
			confirmed[b.Field]++
		}
	}
	return confirmed, auto
}

func feedbackEvent(fb *mapper.Feedback, stored *storage.StoredFeedback, now time.Time) map[string]interface{} {
	event := map[string]interface{}{
		"event":     "feedback:stored",
		"contactId": fb.ContactID,
		"blocks":    len(fb.Blocks),
		"timestamp": now.Format(time.RFC3339),
	}
	if stored != nil {
		event["sampleId"] = stored.SampleID
		event["revision"] = !stored.Inserted
		event["points"] = len(stored.PointIDs)
	}
	return event
}
