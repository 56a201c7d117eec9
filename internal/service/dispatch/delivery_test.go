package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"oculoo/internal/model"
	"oculoo/internal/push"
)

type deliveryFixture struct {
	users         *fakeTokenSource
	guardians     *fakeTokenSource
	notifications *fakeNotificationStore
	transport     *mockTransport
	worker        *DeliveryWorker
}

func newDeliveryFixture() *deliveryFixture {
	f := &deliveryFixture{
		users:         &fakeTokenSource{name: "users", tokens: map[string]string{}},
		guardians:     &fakeTokenSource{name: "guardians", tokens: map[string]string{}},
		notifications: &fakeNotificationStore{},
		transport:     new(mockTransport),
	}
	f.worker = NewDeliveryWorker(
		f.notifications,
		NewTokenResolver(zap.NewNop(), f.users, f.guardians),
		f.transport,
		zap.NewNop(),
	)
	f.worker.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return f
}

func aliceRequest() DeliveryRequest {
	return DeliveryRequest{
		GuardianID:     "g1",
		PatientUID:     "p1",
		PatientName:    "Alice",
		MedicationName: "Aspirin",
	}
}

func TestDeliver_Success(t *testing.T) {
	f := newDeliveryFixture()
	f.users.tokens["g1"] = "tokenA"
	f.transport.On("Send", mock.Anything, "tokenA", mock.Anything).Return(okResult(), nil)

	out := f.worker.Deliver(context.Background(), aliceRequest())

	assert.Equal(t, model.DeliveryOutcome{GuardianID: "g1", Success: true, Delivered: true}, out)
	require.Equal(t, 1, f.notifications.count())
	n := f.notifications.written[0]
	assert.Equal(t, "g1", n.GuardianUID)
	assert.Equal(t, "p1", n.PatientUID)
	assert.Equal(t, "Alice", n.PatientName)
	assert.Equal(t, "Aspirin", n.MedicationName)
	assert.Equal(t, model.NotificationTypeMedicationTaken, n.Type)
	assert.Nil(t, n.ImageURL)

	msg := f.transport.Calls[0].Arguments.Get(2).(push.Message)
	assert.Equal(t, PushTitle, msg.Notification.Title)
	assert.Equal(t, "Alice has taken Aspirin", msg.Notification.Body)
	assert.Equal(t, PushClickAction, msg.Notification.ClickAction)
	assert.Equal(t, map[string]string{
		"type":           "medication_taken",
		"patientUid":     "p1",
		"patientName":    "Alice",
		"medicationName": "Aspirin",
		"imageUrl":       "",
		"timestamp":      "1700000000000",
	}, msg.Data)
}

func TestDeliver_ImageURLCarried(t *testing.T) {
	f := newDeliveryFixture()
	f.users.tokens["g1"] = "tokenA"
	f.transport.On("Send", mock.Anything, "tokenA", mock.Anything).Return(okResult(), nil)

	req := aliceRequest()
	req.ImageURL = strPtr("https://img.example/pill.png")
	out := f.worker.Deliver(context.Background(), req)

	assert.True(t, out.Success)
	assert.Equal(t, "https://img.example/pill.png", *f.notifications.written[0].ImageURL)
	msg := f.transport.Calls[0].Arguments.Get(2).(push.Message)
	assert.Equal(t, "https://img.example/pill.png", msg.Data["imageUrl"])
}

func TestDeliver_NoToken(t *testing.T) {
	f := newDeliveryFixture()

	out := f.worker.Deliver(context.Background(), aliceRequest())

	assert.False(t, out.Success)
	assert.False(t, out.Delivered)
	assert.Equal(t, ErrMsgNoToken, out.Error)
	assert.Equal(t, 1, f.notifications.count())
	f.transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliver_SecondaryToken(t *testing.T) {
	f := newDeliveryFixture()
	f.guardians.tokens["g1"] = "tokenB"
	f.transport.On("Send", mock.Anything, "tokenB", mock.Anything).Return(okResult(), nil)

	out := f.worker.Deliver(context.Background(), aliceRequest())

	assert.True(t, out.Success)
	f.transport.AssertExpectations(t)
}

func TestDeliver_ReportedFailure(t *testing.T) {
	f := newDeliveryFixture()
	f.users.tokens["g1"] = "tokenA"
	f.transport.On("Send", mock.Anything, "tokenA", mock.Anything).Return(&push.SendResult{
		FailureCount: 1,
		Results:      []push.ResultItem{{Error: "registration-token-not-registered"}},
	}, nil)

	out := f.worker.Deliver(context.Background(), aliceRequest())

	assert.False(t, out.Success)
	assert.Equal(t, "registration-token-not-registered", out.Error)
}

func TestDeliver_SuccessCountWins(t *testing.T) {
	f := newDeliveryFixture()
	f.users.tokens["g1"] = "tokenA"
	f.transport.On("Send", mock.Anything, "tokenA", mock.Anything).Return(&push.SendResult{
		SuccessCount: 1,
		FailureCount: 1,
		Results:      []push.ResultItem{{Error: "ignored"}, {}},
	}, nil)

	out := f.worker.Deliver(context.Background(), aliceRequest())

	assert.True(t, out.Success)
	assert.Empty(t, out.Error)
}

func TestDeliver_NothingReported(t *testing.T) {
	f := newDeliveryFixture()
	f.users.tokens["g1"] = "tokenA"
	f.transport.On("Send", mock.Anything, "tokenA", mock.Anything).Return(&push.SendResult{}, nil)

	out := f.worker.Deliver(context.Background(), aliceRequest())

	assert.False(t, out.Success)
	assert.Equal(t, ErrMsgNoDelivery, out.Error)
}

func TestDeliver_TransportError(t *testing.T) {
	f := newDeliveryFixture()
	f.users.tokens["g1"] = "tokenA"
	f.transport.On("Send", mock.Anything, "tokenA", mock.Anything).Return(nil, errors.New("connection reset"))

	out := f.worker.Deliver(context.Background(), aliceRequest())

	assert.False(t, out.Success)
	assert.False(t, out.Delivered)
	assert.Equal(t, "connection reset", out.Error)
}

func TestDeliver_RecordFailureStillPushes(t *testing.T) {
	f := newDeliveryFixture()
	f.notifications.err = errStore
	f.users.tokens["g1"] = "tokenA"
	f.transport.On("Send", mock.Anything, "tokenA", mock.Anything).Return(okResult(), nil)

	out := f.worker.Deliver(context.Background(), aliceRequest())

	assert.False(t, out.Success)
	assert.True(t, out.Delivered)
	assert.Equal(t, "notification record: store unavailable", out.Error)
	f.transport.AssertNumberOfCalls(t, "Send", 1)
}

func TestDeliver_RecordAndPushFailures(t *testing.T) {
	f := newDeliveryFixture()
	f.notifications.err = errStore

	out := f.worker.Deliver(context.Background(), aliceRequest())

	assert.False(t, out.Success)
	assert.Equal(t, "notification record: store unavailable; No FCM token found", out.Error)
}

type panicTransport struct{}

func (panicTransport) Send(ctx context.Context, token string, msg push.Message) (*push.SendResult, error) {
	panic("boom")
}

func TestDeliver_RecoversPanic(t *testing.T) {
	users := &fakeTokenSource{name: "users", tokens: map[string]string{"g1": "tokenA"}}
	w := NewDeliveryWorker(&fakeNotificationStore{}, NewTokenResolver(zap.NewNop(), users), panicTransport{}, zap.NewNop())

	var out model.DeliveryOutcome
	assert.NotPanics(t, func() {
		out = w.Deliver(context.Background(), aliceRequest())
	})
	assert.Equal(t, "g1", out.GuardianID)
	assert.False(t, out.Success)
	assert.Equal(t, "panic: boom", out.Error)
}
