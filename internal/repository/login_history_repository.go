package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// LoginHistoryRepository records where users sign in from.
type LoginHistoryRepository interface {
	Create(ctx context.Context, entry *domain.LoginHistory) error
	Exists(ctx context.Context, userID, ip, deviceName string) (bool, error)
}

type loginHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewLoginHistoryRepository builds repository.
func NewLoginHistoryRepository(pool *pgxpool.Pool) LoginHistoryRepository {
	return &loginHistoryRepository{pool: pool}
}

func (r *loginHistoryRepository) Create(ctx context.Context, entry *domain.LoginHistory) error {
	const query = `
        INSERT INTO login_histories (user_id, ip, country, city, isp, source_app, device_type, device_name)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.UserID,
		entry.IP,
		entry.Country,
		entry.City,
		entry.ISP,
		entry.SourceApp,
		entry.DeviceType,
		entry.DeviceName,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// Exists reports whether the (user, ip, device) combination has been
// seen before; a miss triggers the new-device alert path.
func (r *loginHistoryRepository) Exists(ctx context.Context, userID, ip, deviceName string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM login_histories WHERE user_id=$1 AND ip=$2 AND device_name=$3)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, ip, deviceName).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
