package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"oculoo/pkg/trace"
)

// fakeStore 仅用于单元测试
type fakeStore struct {
	mu      sync.Mutex
	pending []*Event
	failed  []*Event
	sent    []int64
	retried []int64
	reset   []int64
}

func (f *fakeStore) GetPendingEvents(ctx context.Context, limit int) ([]*Event, error) {
	return f.pending, nil
}

func (f *fakeStore) GetFailedEvents(ctx context.Context, limit int) ([]*Event, error) {
	return f.failed, nil
}

func (f *fakeStore) MarkAsSent(ctx context.Context, eventID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, eventID)
	return nil
}

func (f *fakeStore) MarkAsFailed(ctx context.Context, eventID int64, maxRetries int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retried = append(f.retried, eventID)
	return nil
}

func (f *fakeStore) ResetForReplay(ctx context.Context, eventID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset = append(f.reset, eventID)
	return nil
}

type published struct {
	routingKey string
	traceID    string
	body       string
}

type fakePublisher struct {
	failKey string
	out     []published
}

func (p *fakePublisher) PublishWithContext(ctx context.Context, routingKey string, payload any) error {
	if routingKey == p.failKey {
		return errors.New("channel closed")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.out = append(p.out, published{routingKey: routingKey, traceID: trace.FromContext(ctx), body: string(body)})
	return nil
}

func TestProcessPending_PublishesAndMarks(t *testing.T) {
	store := &fakeStore{pending: []*Event{
		{ID: 1, RoutingKey: "medication.taken", Payload: json.RawMessage(`{"event_id":"e1","trace_id":"t1"}`)},
		{ID: 2, RoutingKey: "broken", Payload: json.RawMessage(`{"event_id":"e2"}`)},
	}}
	pub := &fakePublisher{failKey: "broken"}
	d := NewDispatcher(store, pub, zap.NewNop())

	n := d.ProcessPending(context.Background())

	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{1}, store.sent)
	assert.Equal(t, []int64{2}, store.retried)
	require.Len(t, pub.out, 1)
	assert.Equal(t, "t1", pub.out[0].traceID)
	assert.JSONEq(t, `{"event_id":"e1","trace_id":"t1"}`, pub.out[0].body)
}

func TestReplayFailed(t *testing.T) {
	store := &fakeStore{failed: []*Event{{ID: 7}, {ID: 9}}}
	d := NewDispatcher(store, &fakePublisher{}, zap.NewNop())

	n, err := d.ReplayFailed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{7, 9}, store.reset)
}

func TestDispatcherOptions_IgnoreNonPositive(t *testing.T) {
	d := NewDispatcher(&fakeStore{}, &fakePublisher{}, zap.NewNop()).
		WithBatchSize(0).
		WithMaxRetries(-1).
		WithInterval(0)
	assert.Equal(t, 100, d.batchSize)
	assert.Equal(t, 5, d.maxRetries)
}
