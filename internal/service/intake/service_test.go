package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqcontracts "oculoo/contracts/mq"
	"oculoo/internal/model"
	"oculoo/pkg/trace"
)

// fakeTx 只实现 Commit 和 Rollback，其余方法调用会 panic
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	tx  *fakeTx
	err error
}

func (d *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.tx, nil
}

type fakeEvents struct {
	created []*model.MedicationEvent
	err     error
}

func (f *fakeEvents) CreateInTx(ctx context.Context, tx pgx.Tx, e *model.MedicationEvent) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, e)
	return nil
}

type outboxCall struct {
	aggregateType string
	aggregateID   string
	routingKey    string
	payload       interface{}
}

func newTestService(db *fakeDB, events *fakeEvents, outboxErr error) (*Service, *[]outboxCall) {
	var calls []outboxCall
	s := NewService(db, events, zap.NewNop())
	s.writeOutbox = func(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, routingKey string, payload interface{}) error {
		if outboxErr != nil {
			return outboxErr
		}
		calls = append(calls, outboxCall{aggregateType, aggregateID, routingKey, payload})
		return nil
	}
	return s, &calls
}

func TestSubmit_WritesEventAndOutboxInOneTx(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	events := &fakeEvents{}
	s, calls := newTestService(db, events, nil)
	name := "Alice"

	ctx := trace.WithContext(context.Background(), "trace-1")
	id, err := s.Submit(ctx, Request{PatientUID: " p1 ", PatientName: &name})

	require.NoError(t, err)
	require.Len(t, events.created, 1)
	assert.Equal(t, id, events.created[0].ID)
	assert.Equal(t, "p1", events.created[0].PatientUID)
	assert.Equal(t, "Alice", *events.created[0].PatientName)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "medication_event", call.aggregateType)
	assert.Equal(t, id, call.aggregateID)
	assert.Equal(t, mqcontracts.RoutingKeyMedicationTaken, call.routingKey)
	assert.Equal(t, mqcontracts.MedicationTakenPayload{EventID: id, PatientUID: "p1", TraceID: "trace-1"}, call.payload)
	assert.True(t, db.tx.committed)
}

func TestSubmit_GeneratesTraceID(t *testing.T) {
	s, calls := newTestService(&fakeDB{tx: &fakeTx{}}, &fakeEvents{}, nil)

	_, err := s.Submit(context.Background(), Request{PatientUID: "p1"})

	require.NoError(t, err)
	payload := (*calls)[0].payload.(mqcontracts.MedicationTakenPayload)
	assert.NotEmpty(t, payload.TraceID)
}

func TestSubmit_MissingPatient(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	s, _ := newTestService(db, &fakeEvents{}, nil)

	_, err := s.Submit(context.Background(), Request{PatientUID: "  "})

	assert.ErrorIs(t, err, ErrMissingPatient)
	assert.False(t, db.tx.committed)
}

func TestSubmit_OutboxFailureRollsBack(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	s, _ := newTestService(db, &fakeEvents{}, errors.New("outbox down"))

	_, err := s.Submit(context.Background(), Request{PatientUID: "p1"})

	assert.EqualError(t, err, "outbox down")
	assert.False(t, db.tx.committed)
	assert.True(t, db.tx.rolledBack)
}

func TestSubmit_EventFailureSkipsOutbox(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	s, calls := newTestService(db, &fakeEvents{err: errors.New("insert failed")}, nil)

	_, err := s.Submit(context.Background(), Request{PatientUID: "p1"})

	assert.Error(t, err)
	assert.Empty(t, *calls)
	assert.True(t, db.tx.rolledBack)
}

func TestSubmit_BeginFailure(t *testing.T) {
	s, _ := newTestService(&fakeDB{err: errors.New("pool closed")}, &fakeEvents{}, nil)

	_, err := s.Submit(context.Background(), Request{PatientUID: "p1"})

	assert.ErrorContains(t, err, "pool closed")
}

func TestSubmit_CommitFailure(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{commitErr: errors.New("serialization failure")}}
	s, _ := newTestService(db, &fakeEvents{}, nil)

	_, err := s.Submit(context.Background(), Request{PatientUID: "p1"})

	assert.ErrorContains(t, err, "serialization failure")
}
