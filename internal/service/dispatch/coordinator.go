package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"oculoo/internal/model"
	"oculoo/internal/repository"
	"oculoo/pkg/logger"
	"oculoo/pkg/metrics"
)

const (
	ResultSent        = "Notification sent to guardians"
	ResultSentLegacy  = "Notification sent to guardians (legacy method)"
	ResultNoGuardians = "No guardians found in any collection"
)

// Deliverer 由 DeliveryWorker 实现
type Deliverer interface {
	Deliver(ctx context.Context, req DeliveryRequest) model.DeliveryOutcome
}

// Coordinator 处理一条服药事件：解析监护人、并发推送、写回处理结果
// 每条事件无论走哪条分支都会被标记为 processed
type Coordinator struct {
	events   EventStore
	resolver *GuardianResolver
	worker   Deliverer
	logger   *zap.Logger
}

func NewCoordinator(events EventStore, resolver *GuardianResolver, worker Deliverer, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		events:   events,
		resolver: resolver,
		worker:   worker,
		logger:   logger,
	}
}

// Handle 只有在终态写入本身失败（事件仍未处理）时才返回错误，调用方应重新投递
func (c *Coordinator) Handle(ctx context.Context, ev *model.MedicationEvent) error {
	log := logger.WithTrace(ctx, c.logger).With(
		zap.String("event_id", ev.ID),
		zap.String("patient_uid", ev.PatientUID),
	)

	if ev.Processed {
		log.Debug("Event already processed, skipping")
		metrics.IncrementEventDispatched("skipped")
		return nil
	}

	start := time.Now()
	defer func() { metrics.RecordDispatchDuration(time.Since(start)) }()

	outcomes, err := c.dispatch(ctx, log, ev)
	if err == nil {
		return nil
	}

	if errors.Is(err, repository.ErrAlreadyProcessed) {
		log.Info("Event was processed by another run")
		metrics.IncrementEventDispatched("skipped")
		return nil
	}

	log.Error("Error processing medication notification",
		zap.Int("deliveries", len(outcomes)),
		zap.Error(err),
	)
	metrics.IncrementEventDispatched("error")

	if markErr := c.events.MarkFailed(ctx, ev.ID, err.Error()); markErr != nil {
		if errors.Is(markErr, repository.ErrAlreadyProcessed) {
			return nil
		}
		log.Error("Failed to record dispatch error on event", zap.Error(markErr))
		return fmt.Errorf("mark event %s failed: %w", ev.ID, markErr)
	}
	return nil
}

func (c *Coordinator) dispatch(ctx context.Context, log *zap.Logger, ev *model.MedicationEvent) (outcomes []model.DeliveryOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during dispatch: %v", r)
		}
	}()

	if ev.PatientUID == "" {
		return nil, errors.New("event has no patient uid")
	}

	patientName := ev.DisplayPatientName()
	medicationName := ev.DisplayMedicationName()
	log.Info("Processing medication notification", zap.String("medication", medicationName))

	resolution := c.resolver.Resolve(ctx, ev.PatientUID)
	if len(resolution.GuardianIDs) == 0 {
		if err := c.events.MarkProcessed(ctx, ev.ID, ResultNoGuardians); err != nil {
			return nil, err
		}
		log.Info("No guardians found for patient")
		metrics.IncrementEventDispatched("no_guardians")
		return nil, nil
	}

	result := ResultSent
	if resolution.Source == SourceLegacy {
		result = ResultSentLegacy
	}

	// 推送与状态更新并发执行；状态更新不依赖推送结果
	// recover 只对本 goroutine 生效，每个 g.Go 需要单独兜底
	outcomes = make([]model.DeliveryOutcome, len(resolution.GuardianIDs))
	var g errgroup.Group
	for i, guardianID := range resolution.GuardianIDs {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Error("Panic during guardian delivery",
						zap.String("guardian_id", guardianID),
						zap.Any("panic", r),
					)
					outcomes[i] = model.DeliveryOutcome{GuardianID: guardianID, Error: fmt.Sprintf("panic: %v", r)}
				}
			}()
			outcomes[i] = c.worker.Deliver(ctx, DeliveryRequest{
				GuardianID:     guardianID,
				PatientUID:     ev.PatientUID,
				PatientName:    patientName,
				MedicationName: medicationName,
				ImageURL:       ev.ImageURL,
			})
			return nil
		})
	}
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic during mark processed: %v", r)
			}
		}()
		return c.events.MarkProcessed(ctx, ev.ID, result)
	})
	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	sent, failed := summarize(outcomes)
	log.Info("Processed medication notification",
		zap.String("source", resolution.Source),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
		zap.Any("results", outcomes),
	)
	metrics.IncrementEventDispatched("sent")
	return outcomes, nil
}

func summarize(outcomes []model.DeliveryOutcome) (sent, failed int) {
	for _, o := range outcomes {
		if o.Success {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}
