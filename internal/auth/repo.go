package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusdesk/campusdesk/internal/platform/db"
	"github.com/campusdesk/campusdesk/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	// CreateUser inserts the account and runs within in the same transaction.
	CreateUser(ctx context.Context, u NewUser, within func(q db.DBTX, id uuid.UUID) error) (*User, error)
	CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var userColumns = []string{"id", "email", "full_name", "password_hash", "is_active", "created_at", "updated_at"}

// FindByEmail fetches a user by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, sq.Eq{"lower(email)": strings.ToLower(strings.TrimSpace(email))})
}

// FindByID fetches a user by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.findOne(ctx, sq.Eq{"id": id.String()})
}

func (r *PGRepository) findOne(ctx context.Context, pred sq.Eq) (*User, error) {
	query, args, err := db.Builder.Select(userColumns...).From("users").Where(pred).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find user: %w", err)
	}
	var u User
	err = r.pool.QueryRow(ctx, query, args...).Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user and runs within inside the same transaction.
func (r *PGRepository) CreateUser(ctx context.Context, nu NewUser, within func(q db.DBTX, id uuid.UUID) error) (*User, error) {
	query, args, err := db.Builder.Insert("users").
		Columns("email", "full_name", "password_hash").
		Values(strings.ToLower(strings.TrimSpace(nu.Email)), nu.FullName, nu.PasswordHash).
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build create user: %w", err)
	}
	var u User
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query, args...).Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			if db.PgErrorCode(err) == db.CodeUniqueViolation {
				return shared.ErrDuplicateAccount
			}
			return err
		}
		if within != nil {
			return within(tx, u.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateSession persists a new login session in the database for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	query, args, err := db.Builder.Insert("sessions").
		Columns("id", "user_id", "created_at", "expires_at", "ip", "user_agent").
		Values(id, userID, time.Now().UTC(), expiresAt.UTC(), nullable(ip), nullable(ua)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create session: %w", err)
	}
	_, err = r.pool.Exec(ctx, query, args...)
	return err
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	query, args, err := db.Builder.Delete("sessions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete session: %w", err)
	}
	_, err = r.pool.Exec(ctx, query, args...)
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ Repository = (*PGRepository)(nil)
