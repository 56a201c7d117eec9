package push

import (
	"context"

	"go.uber.org/zap"
)

// LogTransport 只记录日志并视为投递成功，用于本地环境
type LogTransport struct {
	logger *zap.Logger
}

func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(ctx context.Context, token string, msg Message) (*SendResult, error) {
	t.logger.Info("Push notification (log transport)",
		zap.String("token", token),
		zap.String("title", msg.Notification.Title),
		zap.String("body", msg.Notification.Body),
		zap.Any("data", msg.Data),
	)
	return &SendResult{SuccessCount: 1, Results: []ResultItem{{}}}, nil
}
