package rbac

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk/internal/platform/db"
)

// Repository reads and writes role assignments.
type Repository interface {
	HasRole(ctx context.Context, userID uuid.UUID, role Role) (bool, error)
	ListAssignments(ctx context.Context, userID uuid.UUID) ([]Assignment, error)
	Assign(ctx context.Context, q db.DBTX, userID uuid.UUID, role Role) error
}

// PGRepository implements Repository on user_roles.
type PGRepository struct {
	q db.DBTX
}

// NewRepository builds a Postgres-backed repository.
func NewRepository(q db.DBTX) *PGRepository {
	return &PGRepository{q: q}
}

// HasRole runs a point lookup for the (user, role) pair.
func (r *PGRepository) HasRole(ctx context.Context, userID uuid.UUID, role Role) (bool, error) {
	inner := db.Builder.Select("1").From("user_roles").
		Where(sq.Eq{"user_id": userID.String(), "role": string(role)})
	query, args, err := inner.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, fmt.Errorf("build has role: %w", err)
	}
	var ok bool
	if err := r.q.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// ListAssignments returns every role held by userID, oldest first.
func (r *PGRepository) ListAssignments(ctx context.Context, userID uuid.UUID) ([]Assignment, error) {
	query, args, err := db.Builder.Select("user_id", "role", "created_at").
		From("user_roles").
		Where(sq.Eq{"user_id": userID.String()}).
		OrderBy("created_at ASC", "role ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list assignments: %w", err)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		var a Assignment
		var role string
		if err := rows.Scan(&a.UserID, &role, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Role = Role(role)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Assign inserts an assignment using q, which is normally the sign-up transaction.
func (r *PGRepository) Assign(ctx context.Context, q db.DBTX, userID uuid.UUID, role Role) error {
	if q == nil {
		q = r.q
	}
	query, args, err := db.Builder.Insert("user_roles").
		Columns("user_id", "role").
		Values(userID, string(role)).
		Suffix("ON CONFLICT (user_id, role) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build assign: %w", err)
	}
	_, err = q.Exec(ctx, query, args...)
	return err
}
