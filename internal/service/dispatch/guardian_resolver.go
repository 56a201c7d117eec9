package dispatch

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"oculoo/pkg/logger"
)

const (
	SourceLinkages = "linkages"
	SourceLegacy   = "legacy"
	SourceNone     = "none"
)

// Resolution 是需要通知的监护人集合及其来源
type Resolution struct {
	GuardianIDs []string
	Source      string
}

// GuardianResolver 先查关联表，关联表为空时回退到旧版监护人数组
type GuardianResolver struct {
	linkages LinkageStore
	legacy   LegacyGuardianStore
	logger   *zap.Logger
}

func NewGuardianResolver(linkages LinkageStore, legacy LegacyGuardianStore, logger *zap.Logger) *GuardianResolver {
	return &GuardianResolver{
		linkages: linkages,
		legacy:   legacy,
		logger:   logger,
	}
}

// Resolve 不返回错误：查询失败按空集合处理
func (r *GuardianResolver) Resolve(ctx context.Context, patientUID string) Resolution {
	log := logger.WithTrace(ctx, r.logger).With(zap.String("patient_uid", patientUID))

	linked, err := r.linkages.ListAcceptedGuardians(ctx, patientUID)
	if err != nil {
		log.Warn("Error fetching linkages, treating as empty", zap.Error(err))
		linked = nil
	}
	if ids := uniqueIDs(linked); len(ids) > 0 {
		log.Info("Found guardians in patient linkages", zap.Int("count", len(ids)))
		return Resolution{GuardianIDs: ids, Source: SourceLinkages}
	}

	log.Info("No linkages found, trying legacy guardians list")
	legacy, err := r.legacy.ListLegacyGuardians(ctx, patientUID)
	if err != nil {
		log.Warn("Error fetching legacy guardians", zap.Error(err))
		return Resolution{Source: SourceNone}
	}
	if ids := uniqueIDs(legacy); len(ids) > 0 {
		log.Info("Found guardians in legacy list", zap.Int("count", len(ids)))
		return Resolution{GuardianIDs: ids, Source: SourceLegacy}
	}

	return Resolution{Source: SourceNone}
}

// uniqueIDs 去掉空值和重复值，保留首次出现的顺序
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
