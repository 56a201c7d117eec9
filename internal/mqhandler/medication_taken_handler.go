package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	mqcontracts "oculoo/contracts/mq"
	"oculoo/internal/model"
	"oculoo/internal/repository"
	"oculoo/pkg/logger"
	"oculoo/pkg/mq"
	"oculoo/pkg/trace"
	"oculoo/pkg/util"
)

const (
	handlerName = "medication_taken_notify"

	defaultInFlightRetryDelay = time.Second
)

// ErrEventInFlight 表示另一个消费者持有该事件的处理锁
var ErrEventInFlight = errors.New("medication event is in flight on another consumer")

// EventLoader 由 repository.EventRepository 实现
type EventLoader interface {
	GetByID(ctx context.Context, id string) (*model.MedicationEvent, error)
}

// EventHandler 由 dispatch.Coordinator 实现
type EventHandler interface {
	Handle(ctx context.Context, ev *model.MedicationEvent) error
}

// Guard 由 util.InFlightGuard 实现
type Guard interface {
	Acquire(ctx context.Context, handler, id string) bool
	Release(ctx context.Context, handler, id string)
}

type MedicationTakenHandler struct {
	events      EventLoader
	coordinator EventHandler
	guard       Guard
	logger      *zap.Logger

	// 锁被占用时重新入队前的等待时间，避免立即重投形成空转
	inFlightRetryDelay time.Duration
}

func NewMedicationTakenHandler(events EventLoader, coordinator EventHandler, guard Guard, logger *zap.Logger) *MedicationTakenHandler {
	return &MedicationTakenHandler{
		events:      events,
		coordinator: coordinator,
		guard:       guard,
		logger:      logger,

		inFlightRetryDelay: defaultInFlightRetryDelay,
	}
}

// Handle -- 读取完整事件记录并交给 Coordinator
// 返回 nil 即 ack；可重试的错误让消息重新入队，无法处理的记录转入 DLQ
func (h *MedicationTakenHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.MedicationTakenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal medication taken payload, dropping", zap.Error(err))
		return nil
	}
	if p.EventID == "" {
		h.logger.Error("Medication taken payload without event id, dropping")
		return nil
	}

	if trace.FromContext(ctx) == "" {
		ctx = trace.WithContext(ctx, p.TraceID)
	}
	log := logger.WithTrace(ctx, h.logger).With(zap.String("event_id", p.EventID))

	if !h.guard.Acquire(ctx, handlerName, p.EventID) {
		// 持有者可能已经崩溃，锁要等 TTL 过期；消息必须重新入队而不是 ack
		log.Info("Medication event in flight elsewhere, requeueing")
		h.waitBeforeRequeue(ctx)
		return ErrEventInFlight
	}
	defer h.guard.Release(ctx, handlerName, p.EventID)

	ev, err := h.events.GetByID(ctx, p.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			log.Warn("Medication event not found, dropping message")
			return nil
		}
		retryable, reason := util.IsRetryableError(err)
		if retryable {
			log.Warn("Failed to load medication event, will retry",
				zap.String("reason", reason),
				zap.Error(err),
			)
			return fmt.Errorf("load medication event %s: %w", p.EventID, err)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("load medication event %s: %w", p.EventID, err)
		}
		log.Error("Failed to load medication event, dead-lettering message",
			zap.String("reason", reason),
			zap.Error(err),
		)
		return mq.DeadLetter(fmt.Errorf("load medication event %s: %w", p.EventID, err))
	}

	return h.coordinator.Handle(ctx, ev)
}

func (h *MedicationTakenHandler) waitBeforeRequeue(ctx context.Context) {
	if h.inFlightRetryDelay <= 0 {
		return
	}
	timer := time.NewTimer(h.inFlightRetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
