package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"oculoo/internal/model"
)

var (
	ErrEventNotFound    = errors.New("medication event not found")
	ErrAlreadyProcessed = errors.New("medication event already processed")
)

// EventRepository 访问 notifications_queue
type EventRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewEventRepository(db *pgxpool.Pool, logger *zap.Logger) *EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// CreateInTx 在事务中写入一条未处理的事件，返回 created_at
func (r *EventRepository) CreateInTx(ctx context.Context, tx pgx.Tx, e *model.MedicationEvent) error {
	query := `
        INSERT INTO notifications_queue (id, patient_uid, patient_name, medication_name, image_url, processed)
        VALUES ($1, $2, $3, $4, $5, FALSE)
        RETURNING created_at
    `
	err := tx.QueryRow(ctx, query, e.ID, e.PatientUID, e.PatientName, e.MedicationName, e.ImageURL).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert medication event: %w", err)
	}
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.MedicationEvent, error) {
	query := `
        SELECT id, patient_uid, patient_name, medication_name, image_url,
               processed, processed_at, result, error, created_at
        FROM notifications_queue
        WHERE id = $1
    `
	var e model.MedicationEvent
	err := r.db.QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.PatientUID,
		&e.PatientName,
		&e.MedicationName,
		&e.ImageURL,
		&e.Processed,
		&e.ProcessedAt,
		&e.Result,
		&e.Error,
		&e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load medication event: %w", err)
	}
	return &e, nil
}

// MarkProcessed 将事件标记为已处理并写入 result
// 只有 processed = FALSE 的记录会被更新，否则返回 ErrAlreadyProcessed
func (r *EventRepository) MarkProcessed(ctx context.Context, id, result string) error {
	return r.markProcessed(ctx, `
        UPDATE notifications_queue
        SET processed = TRUE, processed_at = NOW(), result = $2
        WHERE id = $1 AND processed = FALSE
    `, id, result)
}

// MarkFailed 将事件标记为已处理并写入 error
func (r *EventRepository) MarkFailed(ctx context.Context, id, errMsg string) error {
	return r.markProcessed(ctx, `
        UPDATE notifications_queue
        SET processed = TRUE, processed_at = NOW(), error = $2
        WHERE id = $1 AND processed = FALSE
    `, id, errMsg)
}

func (r *EventRepository) markProcessed(ctx context.Context, query, id, value string) error {
	tag, err := r.db.Exec(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("failed to update medication event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

// ListExpiredProcessed 返回 processed_at 早于 cutoff 的已处理事件 ID
func (r *EventRepository) ListExpiredProcessed(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `
        SELECT id
        FROM notifications_queue
        WHERE processed = TRUE AND processed_at < $1
    `
	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired events: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan expired events: %w", err)
	}
	return ids, nil
}

func (r *EventRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM notifications_queue WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete medication event %s: %w", id, err)
	}
	return nil
}
