package queue

import (
	"context"
	stderrors "errors"
	"reflect"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/newwdead/bizcard-annotator/internal/block"
	"github.com/newwdead/bizcard-annotator/internal/errors"
	"github.com/newwdead/bizcard-annotator/internal/geometry"
	"github.com/newwdead/bizcard-annotator/internal/logging"
	"github.com/newwdead/bizcard-annotator/internal/mapper"
	"github.com/newwdead/bizcard-annotator/internal/storage"
)

type fakeStore struct {
	got   *storage.FeedbackInput
	out   *storage.StoredFeedback
	err   error
	block bool
}

func (f *fakeStore) StoreFeedback(ctx context.Context, in *storage.FeedbackInput) (*storage.StoredFeedback, error) {
	f.got = in
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.out, f.err
}

type fakeStats struct {
	recorded []*storage.StoredFeedback
	err      error
}

func (f *fakeStats) Record(ctx context.Context, fb *mapper.Feedback, stored *storage.StoredFeedback) error {
	f.recorded = append(f.recorded, stored)
	return f.err
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

var sample = &mapper.Feedback{
	ContactID:   "c1",
	ImageWidth:  800,
	ImageHeight: 400,
	Blocks: []block.Block{
		{ID: "1", Text: "ivan@example.com", Confidence: 0.9, Box: geometry.Box{X: 1, Y: 1, Width: 10, Height: 5}, Field: "email"},
		{ID: "2", Text: "+7 912", Confidence: 0.8, Box: geometry.Box{X: 1, Y: 9, Width: 10, Height: 5}, Field: "phone_mobile", AutoDetected: true},
		{ID: "3", Text: "Ivan", Confidence: 0.7, Box: geometry.Box{X: 1, Y: 20, Width: 10, Height: 5}},
	},
	SubmittedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
}

func newTestConsumer(store FeedbackStore, stats StatsRecorder, timeoutMs int64) *Consumer {
	return newConsumer(nil, &ConsumerConfig{
		QueueName:         "ocr_feedback",
		Store:             store,
		Stats:             stats,
		ProcessingTimeout: timeoutMs,
	}, logging.Discard())
}

func TestPublisherRoundTrip(t *testing.T) {
	enq := &fakeEnqueuer{}
	p := &Publisher{client: enq, queueName: "ocr_feedback", maxRetry: 1}

	if err := p.Submit(context.Background(), sample); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(enq.tasks) != 1 || enq.tasks[0].Type() != TypeFeedbackIngest {
		t.Fatalf("tasks = %v", enq.tasks)
	}

	got, err := parseFeedbackTask(enq.tasks[0])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(got, sample) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, sample)
	}
}

func TestPublisherErrors(t *testing.T) {
	p := &Publisher{client: &fakeEnqueuer{err: stderrors.New("redis down")}, queueName: "q"}
	if err := p.Submit(context.Background(), sample); err == nil {
		t.Error("expected enqueue error")
	}
	if err := p.Submit(context.Background(), &mapper.Feedback{}); err == nil {
		t.Error("expected error for feedback without contact")
	}
}

func TestHandleFeedbackIngest(t *testing.T) {
	store := &fakeStore{out: &storage.StoredFeedback{SampleID: "s1", PointIDs: []string{"p1", "p2"}}}
	stats := &fakeStats{}
	c := newTestConsumer(store, stats, 0)

	task, err := NewFeedbackTask(sample)
	if err != nil {
		t.Fatalf("NewFeedbackTask: %v", err)
	}
	if err := c.handleFeedbackIngest(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if store.got.ContactID != "c1" || len(store.got.Blocks) != 3 || store.got.ImageWidth != 800 {
		t.Errorf("store input = %+v", store.got)
	}
	if len(stats.recorded) != 1 || stats.recorded[0].SampleID != "s1" {
		t.Errorf("stats = %+v", stats.recorded)
	}
}

func TestHandleFeedbackIngestInvalidPayload(t *testing.T) {
	c := newTestConsumer(&fakeStore{}, nil, 0)

	for _, payload := range []string{"{not json", `{"blocks":[]}`} {
		err := c.handleFeedbackIngest(context.Background(), asynq.NewTask(TypeFeedbackIngest, []byte(payload)))
		if !stderrors.Is(err, asynq.SkipRetry) || !stderrors.Is(err, errors.ErrInvalidPayload) {
			t.Errorf("payload %q: err = %v", payload, err)
		}
	}
}

func TestHandleFeedbackIngestStorageFailure(t *testing.T) {
	stats := &fakeStats{}
	c := newTestConsumer(&fakeStore{err: stderrors.New("db down")}, stats, 0)
	task, _ := NewFeedbackTask(sample)

	err := c.handleFeedbackIngest(context.Background(), task)
	if !stderrors.Is(err, errors.ErrStorage) {
		t.Fatalf("err = %v", err)
	}
	if stderrors.Is(err, asynq.SkipRetry) {
		t.Error("storage failures should be retried")
	}
	if len(stats.recorded) != 0 {
		t.Error("nothing should be recorded on failure")
	}
}

func TestHandleFeedbackIngestTimeout(t *testing.T) {
	c := newTestConsumer(&fakeStore{block: true}, nil, 10)
	task, _ := NewFeedbackTask(sample)

	if err := c.handleFeedbackIngest(context.Background(), task); !stderrors.Is(err, errors.ErrProcessingTimeout) {
		t.Errorf("err = %v", err)
	}
}

func TestHandleFeedbackIngestPartialStore(t *testing.T) {
	stats := &fakeStats{}
	store := &fakeStore{
		out: &storage.StoredFeedback{SampleID: "s1"},
		err: stderrors.New("cleanup failed"),
	}
	c := newTestConsumer(store, stats, 0)
	task, _ := NewFeedbackTask(sample)

	if err := c.handleFeedbackIngest(context.Background(), task); err != nil {
		t.Fatalf("stored sample should not fail the task: %v", err)
	}
	if len(stats.recorded) != 1 {
		t.Error("stats should be recorded")
	}
}

func TestRetryDelay(t *testing.T) {
	tests := map[int]time.Duration{
		0:  5 * time.Second,
		1:  10 * time.Second,
		2:  20 * time.Second,
		4:  60 * time.Second,
		70: 60 * time.Second,
	}
	for n, want := range tests {
		if got := retryDelay(n, nil, nil); got != want {
			t.Errorf("retryDelay(%d) = %v, want %v", n, got, want)
		}
	}
}

func TestFieldTallies(t *testing.T) {
	confirmed, auto := fieldTallies(sample.Blocks)
	if !reflect.DeepEqual(confirmed, map[string]int64{"email": 1}) {
		t.Errorf("confirmed = %v", confirmed)
	}
	if !reflect.DeepEqual(auto, map[string]int64{"phone_mobile": 1}) {
		t.Errorf("auto = %v", auto)
	}
}

func TestFeedbackEvent(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ev := feedbackEvent(sample, &storage.StoredFeedback{SampleID: "s1", Inserted: false, PointIDs: []string{"a"}}, now)

	if ev["event"] != "feedback:stored" || ev["contactId"] != "c1" || ev["revision"] != true || ev["points"] != 1 {
		t.Errorf("event = %v", ev)
	}
	if ev["timestamp"] != "2024-05-01T12:00:00Z" {
		t.Errorf("timestamp = %v", ev["timestamp"])
	}
}
