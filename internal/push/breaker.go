package push

import (
	"context"

	"go.uber.org/zap"

	"oculoo/pkg/circuitbreaker"
	"oculoo/pkg/metrics"
)

// BreakerTransport 在推送通道外加熔断保护
// 只有通道本身返回错误才计为失败，单个 token 无效不会触发熔断
type BreakerTransport struct {
	next    Transport
	breaker *circuitbreaker.CircuitBreaker
}

func NewBreakerTransport(next Transport, cfg circuitbreaker.Config, logger *zap.Logger) *BreakerTransport {
	cfg.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("Push circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		metrics.SetPushCircuitState(int(to))
	}
	return &BreakerTransport{
		next:    next,
		breaker: circuitbreaker.NewCircuitBreaker(cfg),
	}
}

func (t *BreakerTransport) Send(ctx context.Context, token string, msg Message) (*SendResult, error) {
	var result *SendResult
	err := t.breaker.Execute(func() error {
		var err error
		result, err = t.next.Send(ctx, token, msg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
