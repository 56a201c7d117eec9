package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const LinkageStatusAccepted = "accepted"

// LinkageRepository 读取 patient_linkages（患者与监护人的关联）
type LinkageRepository struct {
	db *pgxpool.Pool
}

func NewLinkageRepository(db *pgxpool.Pool) *LinkageRepository {
	return &LinkageRepository{db: db}
}

// ListAcceptedGuardians 返回已接受关联的监护人 uid，按建立时间排序
func (r *LinkageRepository) ListAcceptedGuardians(ctx context.Context, patientUID string) ([]string, error) {
	query := `
        SELECT guardian_uid
        FROM patient_linkages
        WHERE patient_uid = $1 AND status = $2
        ORDER BY created_at ASC, guardian_uid ASC
    `
	rows, err := r.db.Query(ctx, query, patientUID, LinkageStatusAccepted)
	if err != nil {
		return nil, fmt.Errorf("failed to query linkages: %w", err)
	}
	guardians, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan linkages: %w", err)
	}
	return guardians, nil
}
