package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"oculoo/pkg/metrics"
)

const (
	DefaultRetention     = 7 * 24 * time.Hour
	DefaultSweepInterval = 24 * time.Hour
)

// Sweeper 定期删除超过保留期的已处理事件
type Sweeper struct {
	store       RetentionStore
	maxAge      time.Duration
	interval    time.Duration
	concurrency int
	logger      *zap.Logger
	now         func() time.Time
}

func NewSweeper(store RetentionStore, maxAge, interval time.Duration, logger *zap.Logger) *Sweeper {
	if maxAge <= 0 {
		maxAge = DefaultRetention
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:       store,
		maxAge:      maxAge,
		interval:    interval,
		concurrency: 16,
		logger:      logger,
		now:         time.Now,
	}
}

// Sweep 执行一次清理，返回删除数量
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.maxAge)

	ids, err := s.store.ListExpiredProcessed(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to list expired events", zap.Error(err))
		return 0, err
	}

	var deleted atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := s.store.Delete(ctx, id); err != nil {
				return err
			}
			deleted.Add(1)
			return nil
		})
	}
	err = g.Wait()

	n := int(deleted.Load())
	metrics.AddRetentionDeleted(n)
	if err != nil {
		s.logger.Error("Retention sweep finished with errors",
			zap.Int("deleted", n),
			zap.Int("expired", len(ids)),
			zap.Error(err),
		)
		return n, err
	}

	s.logger.Info("Deleted old processed notifications",
		zap.Int("deleted", n),
		zap.Time("cutoff", cutoff),
	)
	return n, nil
}

// Start 立即执行一次，然后按 interval 周期执行，直到 ctx 取消
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting retention sweeper",
		zap.Duration("max_age", s.maxAge),
		zap.Duration("interval", s.interval),
	)

	_, _ = s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Retention sweeper stopped")
			return
		case <-ticker.C:
			_, _ = s.Sweep(ctx)
		}
	}
}
