package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qcom/otpauth/internal/models"
	"github.com/sirupsen/logrus"
)

// PostgresUserRepository is the SQL user directory. The unique index on
// users.mobile makes concurrent first logins converge on one row.
type PostgresUserRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewPostgresUserRepository(db *sql.DB, logger *logrus.Logger) *PostgresUserRepository {
	return &PostgresUserRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PostgresUserRepository) ResolveOrCreate(ctx context.Context, mobile string) (*models.User, error) {
	const insert = `INSERT INTO users (id, mobile, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (mobile) DO NOTHING`

	res, err := r.db.ExecContext(ctx, insert, uuid.NewString(), mobile, time.Now().UTC())
	if err != nil {
		r.logger.WithError(err).Error("Failed to insert user")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		r.logger.Info("User created")
	}

	const query = `SELECT id, mobile, created_at FROM users WHERE mobile = $1`

	var user models.User
	err = r.db.QueryRowContext(ctx, query, mobile).Scan(&user.ID, &user.Mobile, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user for %s missing after upsert: %w", mobile, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}
