package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository 读取 users 表：旧版 guardians 数组和 fcm_token
type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// ListLegacyGuardians 返回患者 users 记录中的 guardians 数组；记录不存在时返回空
func (r *UserRepository) ListLegacyGuardians(ctx context.Context, patientUID string) ([]string, error) {
	var guardians []string
	err := r.db.QueryRow(ctx, `SELECT COALESCE(guardians, '{}') FROM users WHERE uid = $1`, patientUID).Scan(&guardians)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load legacy guardians: %w", err)
	}
	return guardians, nil
}

func (r *UserRepository) Name() string {
	return "users"
}

// LookupToken 返回 users.fcm_token，记录不存在或为空时返回空串
func (r *UserRepository) LookupToken(ctx context.Context, uid string) (string, error) {
	return lookupToken(ctx, r.db, `SELECT COALESCE(fcm_token, '') FROM users WHERE uid = $1`, uid)
}

// GuardianRepository 读取 guardians 表（监护人角色资料）
type GuardianRepository struct {
	db *pgxpool.Pool
}

func NewGuardianRepository(db *pgxpool.Pool) *GuardianRepository {
	return &GuardianRepository{db: db}
}

func (r *GuardianRepository) Name() string {
	return "guardians"
}

// LookupToken 返回 guardians.fcm_token
func (r *GuardianRepository) LookupToken(ctx context.Context, uid string) (string, error) {
	return lookupToken(ctx, r.db, `SELECT COALESCE(fcm_token, '') FROM guardians WHERE uid = $1`, uid)
}

func lookupToken(ctx context.Context, db *pgxpool.Pool, query, uid string) (string, error) {
	var token string
	err := db.QueryRow(ctx, query, uid).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load fcm token: %w", err)
	}
	return token, nil
}
