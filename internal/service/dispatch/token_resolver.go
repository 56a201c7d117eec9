package dispatch

import (
	"context"

	"go.uber.org/zap"

	"oculoo/pkg/logger"
)

// TokenResolver 按顺序查询各个存储位置，返回第一个非空 token
type TokenResolver struct {
	sources []TokenSource
	logger  *zap.Logger
}

func NewTokenResolver(logger *zap.Logger, sources ...TokenSource) *TokenResolver {
	return &TokenResolver{
		sources: sources,
		logger:  logger,
	}
}

// Resolve 返回 token 和命中的存储位置名；某个位置查询出错视为未命中
func (r *TokenResolver) Resolve(ctx context.Context, guardianUID string) (string, string, bool) {
	log := logger.WithTrace(ctx, r.logger).With(zap.String("guardian_uid", guardianUID))

	for _, src := range r.sources {
		token, err := src.LookupToken(ctx, guardianUID)
		if err != nil {
			log.Warn("Token lookup failed, trying next source",
				zap.String("source", src.Name()),
				zap.Error(err),
			)
			continue
		}
		if token != "" {
			log.Debug("Found FCM token", zap.String("source", src.Name()))
			return token, src.Name(), true
		}
	}

	log.Info("No FCM token found in any source")
	return "", "", false
}
