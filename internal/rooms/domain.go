package rooms

import (
	"time"

	"github.com/google/uuid"
)

// RoomType classifies a room.
type RoomType string

const (
	RoomTypeClassroom  RoomType = "classroom"
	RoomTypeOffice     RoomType = "office"
	RoomTypeEventSpace RoomType = "event_space"
)

// RoomTypes lists the selectable room types.
var RoomTypes = []RoomType{RoomTypeClassroom, RoomTypeOffice, RoomTypeEventSpace}

// Status is the operator-maintained occupancy of a room. It is not derived
// from room requests.
type Status string

const (
	StatusAvailable Status = "available"
	StatusPending   Status = "pending"
	StatusOccupied  Status = "occupied"
)

// Statuses lists room statuses in legend order.
var Statuses = []Status{StatusAvailable, StatusPending, StatusOccupied}

// Valid reports whether s is a known room status.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusPending, StatusOccupied:
		return true
	}
	return false
}

// Room is a bookable campus space.
type Room struct {
	ID         uuid.UUID
	Name       string
	RoomType   RoomType
	Capacity   int
	Department string
	Status     Status
	Latitude   *float64
	Longitude  *float64
	CreatedAt  time.Time
}

// CreateRoomInput carries the add-room form.
type CreateRoomInput struct {
	Name       string   `form:"name" validate:"required,max=120"`
	RoomType   string   `form:"room_type" validate:"required,oneof=classroom office event_space"`
	Capacity   int      `form:"capacity" validate:"gt=0,lte=100000"`
	Department string   `form:"department" validate:"required,max=120"`
	Latitude   *float64 `form:"latitude" validate:"omitempty,latitude"`
	Longitude  *float64 `form:"longitude" validate:"omitempty,longitude"`
}

// StatusCounts summarises a room snapshot for the dashboard cards.
type StatusCounts struct {
	Total     int
	Available int
	Pending   int
	Occupied  int
}

// Stats derives counts from rooms. The result is never stored.
func Stats(rooms []Room) StatusCounts {
	counts := StatusCounts{Total: len(rooms)}
	for _, r := range rooms {
		switch r.Status {
		case StatusAvailable:
			counts.Available++
		case StatusPending:
			counts.Pending++
		case StatusOccupied:
			counts.Occupied++
		}
	}
	return counts
}
