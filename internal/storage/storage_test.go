package storage

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	qdrant "github.com/qdrant/go-client/qdrant"

	"github.com/newwdead/bizcard-annotator/internal/block"
	"github.com/newwdead/bizcard-annotator/internal/geometry"
)

type fakeSamples struct {
	err      error
	pingErr  error
	inserted bool
	got      *Sample
}

func (f *fakeSamples) UpsertSample(ctx context.Context, s *Sample) (string, bool, error) {
	f.got = s
	if f.err != nil {
		return "", false, f.err
	}
	return s.ID, f.inserted, nil
}

func (f *fakeSamples) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeSamples) GetStats() sql.DBStats          { return sql.DBStats{MaxOpenConnections: 10} }
func (f *fakeSamples) Close() error                   { return nil }

type fakeVectors struct {
	stored    []*VectorPoint
	deleted   []string
	dropped   []string
	neighbors []*VectorPoint
	upsertErr error
}

func (f *fakeVectors) UpsertVectors(ctx context.Context, points []*VectorPoint) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.stored = append(f.stored, points...)
	return nil
}

func (f *fakeVectors) SearchVectors(ctx context.Context, v []float32, limit int) ([]*VectorPoint, error) {
	return f.neighbors, nil
}

func (f *fakeVectors) DeleteVectors(ctx context.Context, ids []string) error {
	f.deleted = append(f.deleted, ids...)
	return nil
}

func (f *fakeVectors) DeleteByKeyword(ctx context.Context, key, value, keepKey, keepValue string) error {
	f.dropped = append(f.dropped, key+"="+value+" except "+keepKey+"="+keepValue)
	return nil
}

func (f *fakeVectors) GetCollectionInfo(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"points_count": uint64(len(f.stored))}, nil
}

func (f *fakeVectors) Close() error { return nil }

func vectorizeLen(text string) []float32 { return []float32{float32(len(text)), 1} }

var cardBlocks = []block.Block{
	{ID: "1", Text: "ivan@example.com", Confidence: 0.96320000001, Box: geometry.Box{Width: 1, Height: 1}, Field: "email"},
	{ID: "2", Text: "+7 912 000 00 00", Confidence: 0.8, Box: geometry.Box{Width: 1, Height: 1}, Field: "phone_mobile", AutoDetected: true},
	{ID: "3", Text: "Ivan", Confidence: 0.5, Box: geometry.Box{Width: 1, Height: 1}},
}

func TestStoreFeedback(t *testing.T) {
	samples := &fakeSamples{inserted: true}
	vectors := &fakeVectors{neighbors: []*VectorPoint{
		{Metadata: map[string]interface{}{keyContactID: "other", keyField: "email"}, Score: 0.9},
	}}
	sm := newManager(samples, vectors, vectorizeLen, 0)

	out, err := sm.StoreFeedback(context.Background(), &FeedbackInput{ContactID: "c1", Blocks: cardBlocks})
	if err != nil {
		t.Fatalf("StoreFeedback: %v", err)
	}

	if len(vectors.stored) != 2 || len(out.PointIDs) != 2 {
		t.Fatalf("stored %d points, ids %v", len(vectors.stored), out.PointIDs)
	}
	if got := vectors.stored[0].Metadata[keyField]; got != "email" {
		t.Errorf("payload field = %v", got)
	}
	if out.Confirmed != 1 || out.Compared != 2 || out.Agreed != 1 {
		t.Errorf("out = %+v", out)
	}
	if !reflect.DeepEqual(out.FieldCounts, map[string]int{"email": 1, "phone_mobile": 1}) {
		t.Errorf("field counts = %v", out.FieldCounts)
	}
	if !reflect.DeepEqual(samples.got.ConfirmedFields, []string{"email"}) {
		t.Errorf("confirmed = %v", samples.got.ConfirmedFields)
	}
	if len(vectors.dropped) != 0 {
		t.Errorf("new contact should not drop vectors: %v", vectors.dropped)
	}
}

func TestStoreFeedbackRevisionDropsPrevious(t *testing.T) {
	vectors := &fakeVectors{}
	sm := newManager(&fakeSamples{inserted: false}, vectors, vectorizeLen, 0)

	out, err := sm.StoreFeedback(context.Background(), &FeedbackInput{ContactID: "c1", Blocks: cardBlocks})
	if err != nil {
		t.Fatalf("StoreFeedback: %v", err)
	}
	want := "contact_id=c1 except submission_id=" + out.SubmissionID
	if len(vectors.dropped) != 1 || vectors.dropped[0] != want {
		t.Errorf("dropped = %v", vectors.dropped)
	}
}

func TestStoreFeedbackRollsBackVectors(t *testing.T) {
	vectors := &fakeVectors{}
	sm := newManager(&fakeSamples{err: errors.New("db down")}, vectors, vectorizeLen, 0)

	if _, err := sm.StoreFeedback(context.Background(), &FeedbackInput{ContactID: "c1", Blocks: cardBlocks}); err == nil {
		t.Fatal("expected error")
	}
	if len(vectors.deleted) != 2 {
		t.Errorf("deleted = %v", vectors.deleted)
	}
}

func TestStoreFeedbackVectorFailure(t *testing.T) {
	samples := &fakeSamples{}
	sm := newManager(samples, &fakeVectors{upsertErr: errors.New("qdrant down")}, vectorizeLen, 0)

	if _, err := sm.StoreFeedback(context.Background(), &FeedbackInput{ContactID: "c1", Blocks: cardBlocks}); err == nil {
		t.Fatal("expected error")
	}
	if samples.got != nil {
		t.Error("sample must not be written when vectors fail")
	}
}

func TestVote(t *testing.T) {
	point := func(contact, field string, score float32) *VectorPoint {
		return &VectorPoint{Metadata: map[string]interface{}{keyContactID: contact, keyField: field}, Score: score}
	}

	tests := []struct {
		name   string
		points []*VectorPoint
		want   string
		ok     bool
	}{
		{"empty", nil, "", false},
		{"own contact ignored", []*VectorPoint{point("c1", "email", 1)}, "", false},
		{"summed", []*VectorPoint{point("a", "email", 0.9), point("b", "website", 0.6), point("c", "website", 0.5)}, "website", true},
		{"tie", []*VectorPoint{point("a", "phone", 0.5), point("b", "email", 0.5)}, "email", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := vote(tt.points, "c1")
			if got != tt.want || ok != tt.ok {
				t.Errorf("vote = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSanitizeConfidence(t *testing.T) {
	tests := map[float64]float64{
		-0.1:               0,
		1.2:                1,
		0.9632000000000001: 0.9632,
		0.5:                0.5,
	}
	for in, want := range tests {
		if got := sanitizeConfidence(in); got != want {
			t.Errorf("sanitizeConfidence(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestSanitizeJSONForPostgres(t *testing.T) {
	in := []byte(`{"text":"a\u0000b\u0007c"}`)
	want := `{"text":"ab c"}`
	if got := string(sanitizeJSONForPostgres(in)); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	in := map[string]interface{}{"s": "x", "i": 3, "f": 0.5, "b": true}
	got := fromPayload(toPayload(in))
	want := map[string]interface{}{"s": "x", "i": int64(3), "f": 0.5, "b": true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, ok := toPayload(map[string]interface{}{"t": []int{1}})["t"].Kind.(*qdrant.Value_StringValue); !ok {
		t.Error("unsupported values should be stored as strings")
	}
}

func TestGetStats(t *testing.T) {
	sm := newManager(&fakeSamples{}, &fakeVectors{}, vectorizeLen, 0)
	stats, err := sm.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	pg := stats["postgres"].(map[string]interface{})
	if pg["max_open_connections"] != 10 {
		t.Errorf("postgres stats = %v", pg)
	}
}

func TestHealthCheck(t *testing.T) {
	sm := newManager(&fakeSamples{}, &fakeVectors{}, vectorizeLen, 0)
	if err := sm.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	down := errors.New("connection refused")
	sm = newManager(&fakeSamples{pingErr: down}, &fakeVectors{}, vectorizeLen, 0)
	if err := sm.HealthCheck(context.Background()); !errors.Is(err, down) {
		t.Fatalf("HealthCheck = %v, want wrapped ping error", err)
	}
}
