package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"oculoo/internal/model"
	"oculoo/internal/push"
	"oculoo/pkg/logger"
	"oculoo/pkg/metrics"
)

const (
	ErrMsgNoToken     = "No FCM token found"
	ErrMsgNoDelivery  = "no successful delivery reported"
	PushTitle         = "Medication Taken"
	PushClickAction   = "FLUTTER_NOTIFICATION_CLICK"
	recordErrorPrefix = "notification record: "
)

// DeliveryRequest 是发给单个监护人的通知内容
type DeliveryRequest struct {
	GuardianID     string
	PatientUID     string
	PatientName    string
	MedicationName string
	ImageURL       *string
}

// DeliveryWorker 为单个监护人写站内通知并推送
type DeliveryWorker struct {
	notifications NotificationStore
	tokens        *TokenResolver
	transport     push.Transport
	logger        *zap.Logger
	now           func() time.Time
}

func NewDeliveryWorker(
	notifications NotificationStore,
	tokens *TokenResolver,
	transport push.Transport,
	logger *zap.Logger,
) *DeliveryWorker {
	return &DeliveryWorker{
		notifications: notifications,
		tokens:        tokens,
		transport:     transport,
		logger:        logger,
		now:           time.Now,
	}
}

// Deliver 不返回错误，所有失败都体现在 DeliveryOutcome 中
// 站内通知写入失败时仍然尝试推送
func (w *DeliveryWorker) Deliver(ctx context.Context, req DeliveryRequest) (out model.DeliveryOutcome) {
	log := logger.WithTrace(ctx, w.logger).With(
		zap.String("guardian_uid", req.GuardianID),
		zap.String("patient_uid", req.PatientUID),
	)
	out.GuardianID = req.GuardianID

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic while delivering to guardian", zap.Any("panic", r))
			out.Success = false
			out.Error = fmt.Sprintf("panic: %v", r)
		}
		w.record(out)
	}()

	log.Info("Processing guardian")

	recordErr := w.notifications.Insert(ctx, &model.GuardianNotification{
		GuardianUID:    req.GuardianID,
		PatientUID:     req.PatientUID,
		PatientName:    req.PatientName,
		MedicationName: req.MedicationName,
		Type:           model.NotificationTypeMedicationTaken,
		ImageURL:       req.ImageURL,
	})
	if recordErr != nil {
		log.Error("Failed to create guardian notification record", zap.Error(recordErr))
	}

	delivered, deliverErr := w.push(ctx, log, req)
	out.Delivered = delivered
	out.Success = delivered && recordErr == nil
	out.Error = joinErrors(recordErr, deliverErr)
	return out
}

// push 查找 token 并推送，返回是否送达
func (w *DeliveryWorker) push(ctx context.Context, log *zap.Logger, req DeliveryRequest) (bool, error) {
	token, source, ok := w.tokens.Resolve(ctx, req.GuardianID)
	if !ok {
		return false, errors.New(ErrMsgNoToken)
	}

	result, err := w.transport.Send(ctx, token, w.buildMessage(req))
	if err != nil {
		log.Error("Push transport failed", zap.String("token_source", source), zap.Error(err))
		return false, err
	}

	log.Info("Push response",
		zap.String("token_source", source),
		zap.Int("success_count", result.SuccessCount),
		zap.Int("failure_count", result.FailureCount),
	)

	if result.SuccessCount > 0 {
		return true, nil
	}
	if result.FailureCount > 0 && len(result.Results) > 0 && result.Results[0].Error != "" {
		return false, errors.New(result.Results[0].Error)
	}
	return false, errors.New(ErrMsgNoDelivery)
}

func (w *DeliveryWorker) buildMessage(req DeliveryRequest) push.Message {
	image := ""
	if req.ImageURL != nil {
		image = *req.ImageURL
	}
	return push.Message{
		Notification: push.Notification{
			Title:       PushTitle,
			Body:        fmt.Sprintf("%s has taken %s", req.PatientName, req.MedicationName),
			ClickAction: PushClickAction,
		},
		Data: map[string]string{
			"type":           model.NotificationTypeMedicationTaken,
			"patientUid":     req.PatientUID,
			"patientName":    req.PatientName,
			"medicationName": req.MedicationName,
			"imageUrl":       image,
			"timestamp":      strconv.FormatInt(w.now().UnixMilli(), 10),
		},
	}
}

func (w *DeliveryWorker) record(out model.DeliveryOutcome) {
	switch {
	case out.Success:
		metrics.IncrementGuardianDelivery("success")
	case out.Error == ErrMsgNoToken:
		metrics.IncrementGuardianDelivery("no_token")
	default:
		metrics.IncrementGuardianDelivery("failed")
	}
}

// joinErrors 把站内通知错误和推送错误合并为一条描述
func joinErrors(recordErr, deliverErr error) string {
	switch {
	case recordErr == nil && deliverErr == nil:
		return ""
	case recordErr == nil:
		return deliverErr.Error()
	case deliverErr == nil:
		return recordErrorPrefix + recordErr.Error()
	default:
		return recordErrorPrefix + recordErr.Error() + "; " + deliverErr.Error()
	}
}
