package rooms

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campusdesk/campusdesk/internal/platform/db"
	"github.com/campusdesk/campusdesk/internal/shared"
)

// Repository persists rooms.
type Repository interface {
	List(ctx context.Context) ([]Room, error)
	Get(ctx context.Context, id uuid.UUID) (Room, error)
	Insert(ctx context.Context, room Room) (Room, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (Room, error)
}

// PGRepository implements Repository on the rooms table.
type PGRepository struct {
	q db.DBTX
}

// NewRepository builds a Postgres-backed repository.
func NewRepository(q db.DBTX) *PGRepository {
	return &PGRepository{q: q}
}

var roomColumns = []string{"id", "name", "room_type", "capacity", "department", "status", "latitude", "longitude", "created_at"}

// List returns every room ordered by name.
func (r *PGRepository) List(ctx context.Context) ([]Room, error) {
	query, args, err := db.Builder.Select(roomColumns...).From("rooms").OrderBy("name ASC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list rooms: %w", err)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

// Get loads a single room.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (Room, error) {
	query, args, err := db.Builder.Select(roomColumns...).From("rooms").Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return Room{}, fmt.Errorf("build get room: %w", err)
	}
	room, err := scanRoom(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Room{}, shared.ErrNotFound
	}
	return room, err
}

// Insert stores a new room and returns the persisted row.
func (r *PGRepository) Insert(ctx context.Context, room Room) (Room, error) {
	query, args, err := db.Builder.Insert("rooms").
		Columns("name", "room_type", "capacity", "department", "status", "latitude", "longitude").
		Values(room.Name, string(room.RoomType), room.Capacity, room.Department, string(room.Status), room.Latitude, room.Longitude).
		Suffix("RETURNING id, name, room_type, capacity, department, status, latitude, longitude, created_at").
		ToSql()
	if err != nil {
		return Room{}, fmt.Errorf("build insert room: %w", err)
	}
	return scanRoom(r.q.QueryRow(ctx, query, args...))
}

// UpdateStatus sets the operator status of a room.
func (r *PGRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (Room, error) {
	query, args, err := db.Builder.Update("rooms").
		Set("status", string(status)).
		Where(sq.Eq{"id": id.String()}).
		Suffix("RETURNING id, name, room_type, capacity, department, status, latitude, longitude, created_at").
		ToSql()
	if err != nil {
		return Room{}, fmt.Errorf("build update room status: %w", err)
	}
	room, err := scanRoom(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Room{}, shared.ErrNotFound
	}
	return room, err
}

func scanRoom(row pgx.Row) (Room, error) {
	var room Room
	var roomType, status string
	if err := row.Scan(&room.ID, &room.Name, &roomType, &room.Capacity, &room.Department, &status, &room.Latitude, &room.Longitude, &room.CreatedAt); err != nil {
		return Room{}, err
	}
	room.RoomType = RoomType(roomType)
	room.Status = Status(status)
	return room, nil
}

var _ Repository = (*PGRepository)(nil)
