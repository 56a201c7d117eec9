package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"oculoo/internal/model"
)

// GuardianNotificationRepository 写入 guardian_notifications
type GuardianNotificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewGuardianNotificationRepository(db *pgxpool.Pool, logger *zap.Logger) *GuardianNotificationRepository {
	return &GuardianNotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Insert 写入一条未读通知，ID 和时间戳由本方法和数据库生成
func (r *GuardianNotificationRepository) Insert(ctx context.Context, n *model.GuardianNotification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Type == "" {
		n.Type = model.NotificationTypeMedicationTaken
	}
	n.Read = false

	query := `
        INSERT INTO guardian_notifications
            (id, guardian_uid, patient_uid, patient_name, medication_name, type, image_url, timestamp, read)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), FALSE)
        RETURNING timestamp
    `
	err := r.db.QueryRow(ctx, query,
		n.ID,
		n.GuardianUID,
		n.PatientUID,
		n.PatientName,
		n.MedicationName,
		n.Type,
		n.ImageURL,
	).Scan(&n.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert guardian notification: %w", err)
	}

	r.logger.Debug("Guardian notification inserted",
		zap.String("id", n.ID),
		zap.String("guardian_uid", n.GuardianUID),
	)
	return nil
}
