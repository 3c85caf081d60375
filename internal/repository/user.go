package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/user"
)

const (
	getUserSQL = `SELECT id, email, first_name, last_name, phone, is_active, created_at, updated_at
		FROM users WHERE id = $1`

	updateUserSQL = `UPDATE users
		SET first_name = $2, last_name = $3, phone = $4, is_active = $5, updated_at = $6
		WHERE id = $1`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Get(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var u user.User
	err := conn(ctx, r.pool).QueryRow(ctx, getUserSQL, id).Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Phone, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, apperr.Store(err, "get user")
	}
	return &u, nil
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, updateUserSQL,
		u.ID, u.FirstName, u.LastName, u.Phone, u.IsActive, u.UpdatedAt,
	)
	if err != nil {
		return apperr.Store(err, "update user")
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}
