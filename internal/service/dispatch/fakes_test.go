package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"oculoo/internal/model"
	"oculoo/internal/push"
	"oculoo/internal/repository"
)

// fakeEventStore 内存版 notifications_queue，仅用于单元测试
type fakeEventStore struct {
	mu        sync.Mutex
	events    map[string]*model.MedicationEvent
	writes    int
	failMark  error
	failError error
	deleteErr map[string]error
}

func newFakeEventStore(events ...*model.MedicationEvent) *fakeEventStore {
	s := &fakeEventStore{events: make(map[string]*model.MedicationEvent), deleteErr: make(map[string]error)}
	for _, e := range events {
		s.events[e.ID] = e
	}
	return s
}

func (s *fakeEventStore) mark(id string, result, errMsg *string) error {
	s.writes++
	e, ok := s.events[id]
	if !ok {
		return repository.ErrEventNotFound
	}
	if e.Processed {
		return repository.ErrAlreadyProcessed
	}
	now := time.Now()
	e.Processed = true
	e.ProcessedAt = &now
	e.Result = result
	e.Error = errMsg
	return nil
}

func (s *fakeEventStore) MarkProcessed(ctx context.Context, id, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMark != nil {
		s.writes++
		return s.failMark
	}
	return s.mark(id, &result, nil)
}

func (s *fakeEventStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failError != nil {
		s.writes++
		return s.failError
	}
	return s.mark(id, nil, &errMsg)
}

func (s *fakeEventStore) ListExpiredProcessed(ctx context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, e := range s.events {
		if e.Processed && e.ProcessedAt != nil && e.ProcessedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *fakeEventStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteErr[id]; err != nil {
		return err
	}
	delete(s.events, id)
	return nil
}

func (s *fakeEventStore) get(id string) *model.MedicationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id]
}

type fakeLinkageStore struct {
	guardians map[string][]string
	err       error
	calls     int
}

func (f *fakeLinkageStore) ListAcceptedGuardians(ctx context.Context, patientUID string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.guardians[patientUID], nil
}

type fakeLegacyStore struct {
	guardians map[string][]string
	err       error
	calls     int
}

func (f *fakeLegacyStore) ListLegacyGuardians(ctx context.Context, patientUID string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.guardians[patientUID], nil
}

type fakeTokenSource struct {
	name   string
	mu     sync.Mutex
	tokens map[string]string
	err    error
	calls  int
}

func (f *fakeTokenSource) Name() string { return f.name }

func (f *fakeTokenSource) LookupToken(ctx context.Context, uid string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.tokens[uid], nil
}

type fakeNotificationStore struct {
	mu      sync.Mutex
	written []model.GuardianNotification
	err     error
}

func (f *fakeNotificationStore) Insert(ctx context.Context, n *model.GuardianNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, *n)
	return nil
}

func (f *fakeNotificationStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

// mockTransport 是 push.Transport 的 mock 实现
type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Send(ctx context.Context, token string, msg push.Message) (*push.SendResult, error) {
	args := m.Called(ctx, token, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*push.SendResult), args.Error(1)
}

func okResult() *push.SendResult {
	return &push.SendResult{SuccessCount: 1, Results: []push.ResultItem{{}}}
}

var errStore = errors.New("store unavailable")

func strPtr(s string) *string { return &s }
