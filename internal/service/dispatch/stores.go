package dispatch

import (
	"context"
	"time"

	"oculoo/internal/model"
)

// LinkageStore 查询已接受的患者-监护人关联，由 repository.LinkageRepository 实现
type LinkageStore interface {
	ListAcceptedGuardians(ctx context.Context, patientUID string) ([]string, error)
}

// LegacyGuardianStore 读取患者记录中的旧版监护人数组，由 repository.UserRepository 实现
type LegacyGuardianStore interface {
	ListLegacyGuardians(ctx context.Context, patientUID string) ([]string, error)
}

// TokenSource 是一个可以查到推送 token 的存储位置
// 没有 token 时返回空串和 nil
type TokenSource interface {
	Name() string
	LookupToken(ctx context.Context, uid string) (string, error)
}

// NotificationStore 写入监护人站内通知
type NotificationStore interface {
	Insert(ctx context.Context, n *model.GuardianNotification) error
}

// EventStore 更新 notifications_queue 的终态
type EventStore interface {
	MarkProcessed(ctx context.Context, id, result string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
}

// RetentionStore 供清理任务使用
type RetentionStore interface {
	ListExpiredProcessed(ctx context.Context, cutoff time.Time) ([]string, error)
	Delete(ctx context.Context, id string) error
}
