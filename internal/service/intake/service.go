package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	mqcontracts "oculoo/contracts/mq"
	"oculoo/internal/model"
	"oculoo/pkg/logger"
	"oculoo/pkg/outbox"
	"oculoo/pkg/trace"
)

const aggregateType = "medication_event"

var ErrMissingPatient = errors.New("patient uid is required")

// TxBeginner 由 *pgxpool.Pool 实现
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// EventWriter 由 repository.EventRepository 实现
type EventWriter interface {
	CreateInTx(ctx context.Context, tx pgx.Tx, e *model.MedicationEvent) error
}

type outboxWriter func(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, routingKey string, payload interface{}) error

// Request 是一次服药上报
type Request struct {
	PatientUID     string
	PatientName    *string
	MedicationName *string
	ImageURL       *string
}

// Service 把服药事件和对应的 outbox 消息写在同一个事务里
type Service struct {
	db          TxBeginner
	events      EventWriter
	writeOutbox outboxWriter
	logger      *zap.Logger
}

func NewService(db TxBeginner, events EventWriter, logger *zap.Logger) *Service {
	return &Service{
		db:          db,
		events:      events,
		writeOutbox: outbox.InsertEventInTx,
		logger:      logger,
	}
}

// Submit 返回新事件的 ID；提交成功后由 outbox dispatcher 负责发布
func (s *Service) Submit(ctx context.Context, req Request) (string, error) {
	req.PatientUID = strings.TrimSpace(req.PatientUID)
	if req.PatientUID == "" {
		return "", ErrMissingPatient
	}

	ctx, traceID := trace.EnsureContext(ctx)
	log := logger.WithTrace(ctx, s.logger)

	ev := &model.MedicationEvent{
		ID:             uuid.NewString(),
		PatientUID:     req.PatientUID,
		PatientName:    req.PatientName,
		MedicationName: req.MedicationName,
		ImageURL:       req.ImageURL,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.events.CreateInTx(ctx, tx, ev); err != nil {
		return "", err
	}

	payload := mqcontracts.MedicationTakenPayload{
		EventID:    ev.ID,
		PatientUID: ev.PatientUID,
		TraceID:    traceID,
	}
	if err := s.writeOutbox(ctx, tx, aggregateType, ev.ID, mqcontracts.RoutingKeyMedicationTaken, payload); err != nil {
		log.Error("Failed to insert medication.taken to outbox", zap.Error(err))
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info("Medication event queued",
		zap.String("event_id", ev.ID),
		zap.String("patient_uid", ev.PatientUID),
	)
	return ev.ID, nil
}
