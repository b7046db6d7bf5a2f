package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusdesk/campusdesk/internal/platform/db"
	"github.com/campusdesk/campusdesk/internal/shared"
)

const idempotencyModule = "room_requests"

// Repository persists room requests.
type Repository interface {
	List(ctx context.Context) ([]RoomRequest, error)
	Get(ctx context.Context, id uuid.UUID) (RoomRequest, error)
	Insert(ctx context.Context, req RoomRequest, idempotencyKey string) (RoomRequest, error)
	// Transition moves a pending request to t.Status. It returns
	// shared.ErrNotFound for unknown ids and shared.ErrConflict when the
	// request already left pending.
	Transition(ctx context.Context, t Transition) (RoomRequest, error)
	CountByStatus(ctx context.Context, status Status) (int, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool        *pgxpool.Pool
	approvals   *shared.ApprovalRecorder
	audit       *shared.AuditLogger
	idempotency *shared.IdempotencyStore
}

// NewRepository builds a Postgres-backed repository. Decisions write their
// approval and audit rows in the same transaction as the status change.
func NewRepository(pool *pgxpool.Pool, approvals *shared.ApprovalRecorder, audit *shared.AuditLogger, idempotency *shared.IdempotencyStore) *PGRepository {
	return &PGRepository{pool: pool, approvals: approvals, audit: audit, idempotency: idempotency}
}

func selectRequests() sq.SelectBuilder {
	return db.Builder.Select(
		"rr.id", "rr.room_id", "r.name", "rr.requester_name", "rr.requester_email",
		"to_char(rr.requested_date, 'YYYY-MM-DD')",
		"to_char(rr.requested_time_start, 'HH24:MI')",
		"to_char(rr.requested_time_end, 'HH24:MI')",
		"rr.purpose", "rr.status", "rr.created_at",
	).From("room_requests rr").LeftJoin("rooms r ON r.id = rr.room_id")
}

// List returns requests newest first; ties on created_at fall back to id.
func (r *PGRepository) List(ctx context.Context) ([]RoomRequest, error) {
	query, args, err := selectRequests().OrderBy("rr.created_at DESC", "rr.id DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list requests: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RoomRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Get loads one request with its room name.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (RoomRequest, error) {
	return r.get(ctx, r.pool, id)
}

func (r *PGRepository) get(ctx context.Context, q db.DBTX, id uuid.UUID) (RoomRequest, error) {
	query, args, err := selectRequests().Where(sq.Eq{"rr.id": id.String()}).ToSql()
	if err != nil {
		return RoomRequest{}, fmt.Errorf("build get request: %w", err)
	}
	req, err := scanRequest(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return RoomRequest{}, shared.ErrNotFound
	}
	return req, err
}

// Insert stores a pending request. A repeated idempotency key fails with
// shared.ErrConflict and a room that does not exist with a validation error.
func (r *PGRepository) Insert(ctx context.Context, req RoomRequest, idempotencyKey string) (RoomRequest, error) {
	query, args, err := db.Builder.Insert("room_requests").
		Columns("room_id", "requester_name", "requester_email", "requested_date", "requested_time_start", "requested_time_end", "purpose", "status").
		Values(req.RoomID, req.RequesterName, req.RequesterEmail, req.RequestedDate, req.RequestedTimeStart, req.RequestedTimeEnd, req.Purpose, string(StatusPending)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return RoomRequest{}, fmt.Errorf("build insert request: %w", err)
	}
	var out RoomRequest
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if idempotencyKey != "" {
			if err := r.idempotency.WithQuerier(tx).CheckAndInsert(ctx, idempotencyKey, idempotencyModule); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					return fmt.Errorf("requests: duplicate submission: %w", shared.ErrConflict)
				}
				return err
			}
		}
		var id uuid.UUID
		if err := tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			if db.PgErrorCode(err) == db.CodeForeignKeyViolation {
				return shared.NewValidationError(map[string]string{"room_id": "does not match an existing room"})
			}
			return err
		}
		var e error
		out, e = r.get(ctx, tx, id)
		return e
	})
	if err != nil {
		return RoomRequest{}, err
	}
	return out, nil
}

// Transition applies a decision with a conditional update so concurrent
// decisions on the same request cannot both succeed.
func (r *PGRepository) Transition(ctx context.Context, t Transition) (RoomRequest, error) {
	var out RoomRequest
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var e error
		out, e = r.transition(ctx, tx, t)
		return e
	})
	if err != nil {
		return RoomRequest{}, err
	}
	return out, nil
}

func transitionQuery(t Transition) (string, []any, error) {
	return db.Builder.Update("room_requests").
		Set("status", string(t.Status)).
		Set("decided_by", t.ActorID).
		Set("decided_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": t.ID.String(), "status": string(StatusPending)}).
		Suffix("RETURNING id").
		ToSql()
}

// transition runs the decision through q, which must be a transaction. No
// returned row means the request is unknown or no longer pending.
func (r *PGRepository) transition(ctx context.Context, q db.DBTX, t Transition) (RoomRequest, error) {
	query, args, err := transitionQuery(t)
	if err != nil {
		return RoomRequest{}, fmt.Errorf("build transition: %w", err)
	}
	var id uuid.UUID
	if err := q.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return RoomRequest{}, err
		}
		current, err := r.get(ctx, q, t.ID)
		if err != nil {
			return RoomRequest{}, err
		}
		return RoomRequest{}, fmt.Errorf("requests: %s is already %s: %w", t.ID, current.Status, shared.ErrConflict)
	}
	action := shared.ApprovalApprove
	if t.Status == StatusDeclined {
		action = shared.ApprovalReject
	}
	if err := r.approvals.WithQuerier(q).Record(ctx, shared.ApprovalLog{
		Module: idempotencyModule, RefID: t.ID, ActorID: t.ActorID, Action: action,
	}); err != nil {
		return RoomRequest{}, err
	}
	if err := r.audit.WithQuerier(q).Record(ctx, shared.AuditLog{
		ActorID: t.ActorID, Action: "room_request." + string(t.Status), Entity: "room_request", EntityID: t.ID.String(),
		Meta: map[string]any{"from": StatusPending, "to": t.Status},
	}); err != nil {
		return RoomRequest{}, err
	}
	return r.get(ctx, q, id)
}

// CountByStatus counts requests in status.
func (r *PGRepository) CountByStatus(ctx context.Context, status Status) (int, error) {
	query, args, err := db.Builder.Select("COUNT(*)").From("room_requests").Where(sq.Eq{"status": string(status)}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count requests: %w", err)
	}
	var n int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanRequest(row pgx.Row) (RoomRequest, error) {
	var req RoomRequest
	var roomName *string
	var status string
	var createdAt time.Time
	if err := row.Scan(&req.ID, &req.RoomID, &roomName, &req.RequesterName, &req.RequesterEmail,
		&req.RequestedDate, &req.RequestedTimeStart, &req.RequestedTimeEnd, &req.Purpose, &status, &createdAt); err != nil {
		return RoomRequest{}, err
	}
	req.RoomName = MissingRoomName
	if roomName != nil && *roomName != "" {
		req.RoomName = *roomName
	}
	req.Status = Status(status)
	req.CreatedAt = createdAt
	return req, nil
}

var _ Repository = (*PGRepository)(nil)
