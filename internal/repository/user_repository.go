package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByResetTokenHash(ctx context.Context, hash string, now time.Time) (*domain.User, error)
	GetByVerificationTokenHash(ctx context.Context, hash string, now time.Time) (*domain.User, error)
	ListAdministrators(ctx context.Context) ([]domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, first_name, last_name, username, email, password_hash, role,
       is_active, is_blocked, is_suspicious, email_verified,
       verification_token_hash, verification_token_expires,
       reset_token_hash, reset_token_expires,
       last_login_ip, last_login_country, last_login_city, last_login_at,
       created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (first_name, last_name, username, email, password_hash, role,
                           is_active, is_blocked, is_suspicious, email_verified)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.IsBlocked,
		user.IsSuspicious,
		user.EmailVerified,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET first_name=$1, last_name=$2, username=$3, email=$4, password_hash=$5,
            role=$6, is_active=$7, is_blocked=$8, is_suspicious=$9, email_verified=$10,
            verification_token_hash=$11, verification_token_expires=$12,
            reset_token_hash=$13, reset_token_expires=$14,
            last_login_ip=$15, last_login_country=$16, last_login_city=$17, last_login_at=$18,
            updated_at=NOW()
        WHERE id=$19`
	cmd, err := r.pool.Exec(ctx, query,
		user.FirstName,
		user.LastName,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.IsBlocked,
		user.IsSuspicious,
		user.EmailVerified,
		user.VerificationTokenHash,
		user.VerificationTokenExpires,
		user.ResetTokenHash,
		user.ResetTokenExpires,
		user.LastLoginIP,
		user.LastLoginCountry,
		user.LastLoginCity,
		user.LastLoginAt,
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *userRepository) GetByResetTokenHash(ctx context.Context, hash string, now time.Time) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE reset_token_hash=$1 AND reset_token_expires > $2`
	return r.fetchSingle(ctx, query, hash, now)
}

func (r *userRepository) GetByVerificationTokenHash(ctx context.Context, hash string, now time.Time) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE verification_token_hash=$1 AND verification_token_expires > $2 AND is_active`
	return r.fetchSingle(ctx, query, hash, now)
}

// ListAdministrators returns every enabled account holding an
// administrative role, used by the notification fan-out jobs.
func (r *userRepository) ListAdministrators(ctx context.Context) ([]domain.User, error) {
	const query = `
        SELECT ` + userColumns + `
        FROM users
        WHERE role = ANY($1) AND is_active AND NOT is_blocked AND NOT is_suspicious`
	roles := make([]string, 0, len(domain.AdministrativeRoles))
	for _, role := range domain.AdministrativeRoles {
		roles = append(roles, string(role))
	}
	rows, err := r.pool.Query(ctx, query, roles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, query, args...))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.IsBlocked,
		&user.IsSuspicious,
		&user.EmailVerified,
		&user.VerificationTokenHash,
		&user.VerificationTokenExpires,
		&user.ResetTokenHash,
		&user.ResetTokenExpires,
		&user.LastLoginIP,
		&user.LastLoginCountry,
		&user.LastLoginCity,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
