package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/traincenter/traincenter-backend/internal/model"
)

// UserRepository handles platform account data access.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByUsername retrieves a user by their login name.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, username, password_hash, org_id, is_super_admin, created_at
		 FROM sys_user WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.OrgID, &u.SuperAdmin, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID retrieves a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, username, password_hash, org_id, is_super_admin, created_at
		 FROM sys_user WHERE user_id = $1`,
		id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.OrgID, &u.SuperAdmin, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO sys_user (username, password_hash, org_id, is_super_admin)
		 VALUES ($1, $2, $3, $4)
		 RETURNING user_id`,
		u.Username, u.PasswordHash, u.OrgID, u.SuperAdmin,
	).Scan(&u.ID)
}
