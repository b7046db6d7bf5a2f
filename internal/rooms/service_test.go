package rooms

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/campusdesk/internal/rbac"
	"github.com/campusdesk/campusdesk/internal/shared"
)

type memoryRepo struct {
	mu      sync.Mutex
	rooms   map[uuid.UUID]Room
	inserts int
	err     error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rooms: map[uuid.UUID]Room{}}
}

func (m *memoryRepo) List(context.Context) ([]Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id uuid.UUID) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return Room{}, shared.ErrNotFound
	}
	return r, nil
}

func (m *memoryRepo) Insert(_ context.Context, room Room) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.err != nil {
		return Room{}, m.err
	}
	room.ID = uuid.New()
	room.CreatedAt = time.Now()
	m.rooms[room.ID] = room
	return room, nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return Room{}, shared.ErrNotFound
	}
	r.Status = status
	m.rooms[id] = r
	return r, nil
}

type allowAll struct{ deny error }

func (a allowAll) Require(_ context.Context, p *rbac.Principal, _ rbac.Role) error {
	if p == nil {
		return shared.ErrUnauthorized
	}
	return a.deny
}

type auditSpy struct{ logs []shared.AuditLog }

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

var admin = &rbac.Principal{ID: uuid.New(), Email: "mis@campus.edu"}

func validInput() CreateRoomInput {
	return CreateRoomInput{Name: "Room 101", RoomType: "classroom", Capacity: 30, Department: "Science"}
}

func TestCreateRoomNegativeCapacityNeverInserts(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, allowAll{}, nil, nil)

	in := validInput()
	in.Capacity = -5
	_, err := svc.CreateRoom(context.Background(), admin, in)

	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, shared.FieldErrors(err), "capacity")
	require.Zero(t, repo.inserts)
}

func TestCreateRoomOversizedCapacityIsValidationError(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, allowAll{}, nil, nil)

	in := validInput()
	in.Capacity = 3_000_000_000
	_, err := svc.CreateRoom(context.Background(), admin, in)

	require.ErrorIs(t, err, shared.ErrValidation)
	require.NotErrorIs(t, err, shared.ErrTransient)
	require.Equal(t, "must be at most 100000", shared.FieldErrors(err)["capacity"])
	require.Zero(t, repo.inserts)
}

func TestCreateRoomRejectsUnknownType(t *testing.T) {
	repo := newMemoryRepo()
	in := validInput()
	in.RoomType = "gym"
	_, err := NewService(repo, allowAll{}, nil, nil).CreateRoom(context.Background(), admin, in)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Zero(t, repo.inserts)
}

func TestCreateRoomRoundTrip(t *testing.T) {
	repo := newMemoryRepo()
	audit := &auditSpy{}
	svc := NewService(repo, allowAll{}, audit, nil)

	created, err := svc.CreateRoom(context.Background(), admin, validInput())
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, created.Status)

	rooms, err := svc.ListRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	got := rooms[0]
	assert.Equal(t, "Room 101", got.Name)
	assert.Equal(t, RoomTypeClassroom, got.RoomType)
	assert.Equal(t, 30, got.Capacity)
	assert.Equal(t, "Science", got.Department)
	assert.Equal(t, StatusAvailable, got.Status)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, "room.create", audit.logs[0].Action)
	assert.Equal(t, admin.ID, audit.logs[0].ActorID)
}

func TestCreateRoomSanitisesText(t *testing.T) {
	repo := newMemoryRepo()
	in := validInput()
	in.Name = "<b>Lab</b> A"
	room, err := NewService(repo, allowAll{}, nil, nil).CreateRoom(context.Background(), admin, in)
	require.NoError(t, err)
	require.Equal(t, "Lab A", room.Name)
}

func TestCreateRoomRequiresRole(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, allowAll{deny: shared.ErrForbidden}, nil, nil)

	_, err := svc.CreateRoom(context.Background(), admin, validInput())
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.CreateRoom(context.Background(), nil, validInput())
	require.ErrorIs(t, err, shared.ErrUnauthorized)
	require.Zero(t, repo.inserts)
}

func TestListRoomsStoreFailureIsTransient(t *testing.T) {
	repo := newMemoryRepo()
	repo.err = errors.New("broken pipe")
	_, err := NewService(repo, allowAll{}, nil, nil).ListRooms(context.Background())
	require.ErrorIs(t, err, shared.ErrTransient)
}

func TestSetRoomStatus(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, allowAll{}, nil, nil)
	room, err := svc.CreateRoom(context.Background(), admin, validInput())
	require.NoError(t, err)

	updated, err := svc.SetRoomStatus(context.Background(), admin, room.ID, StatusOccupied)
	require.NoError(t, err)
	require.Equal(t, StatusOccupied, updated.Status)

	_, err = svc.SetRoomStatus(context.Background(), admin, room.ID, Status("closed"))
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.SetRoomStatus(context.Background(), admin, uuid.New(), StatusAvailable)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestStats(t *testing.T) {
	counts := Stats([]Room{
		{Status: StatusAvailable}, {Status: StatusAvailable},
		{Status: StatusOccupied}, {Status: StatusPending},
	})
	require.Equal(t, StatusCounts{Total: 4, Available: 2, Pending: 1, Occupied: 1}, counts)
	require.Equal(t, StatusCounts{}, Stats(nil))
}
