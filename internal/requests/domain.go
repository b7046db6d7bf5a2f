package requests

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a room request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDeclined
}

// Decision reports whether s is a valid target of SetRequestStatus.
func (s Status) Decision() bool {
	return s == StatusApproved || s == StatusDeclined
}

// MissingRoomName is shown when a request's room no longer resolves.
const MissingRoomName = "N/A"

// RoomRequest is a booking request for a room.
type RoomRequest struct {
	ID                 uuid.UUID `json:"id"`
	RoomID             uuid.UUID `json:"room_id"`
	RoomName           string    `json:"room_name"`
	RequesterName      string    `json:"requester_name"`
	RequesterEmail     string    `json:"requester_email"`
	RequestedDate      string    `json:"requested_date"`
	RequestedTimeStart string    `json:"requested_time_start"`
	RequestedTimeEnd   string    `json:"requested_time_end"`
	Purpose            string    `json:"purpose"`
	Status             Status    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
}

// Pending reports whether the request still awaits a decision.
func (r RoomRequest) Pending() bool {
	return r.Status == StatusPending
}

// CreateRequestInput carries a new request from the public form or JSON intake.
type CreateRequestInput struct {
	RoomID             string `form:"room_id" json:"room_id" validate:"required,uuid"`
	RequesterName      string `form:"requester_name" json:"requester_name" validate:"required,max=120"`
	RequesterEmail     string `form:"requester_email" json:"requester_email" validate:"required,email,max=254"`
	RequestedDate      string `form:"requested_date" json:"requested_date" validate:"required,datetime=2006-01-02"`
	RequestedTimeStart string `form:"requested_time_start" json:"requested_time_start" validate:"required,datetime=15:04"`
	RequestedTimeEnd   string `form:"requested_time_end" json:"requested_time_end" validate:"required,datetime=15:04"`
	Purpose            string `form:"purpose" json:"purpose" validate:"required,max=1000"`
	IdempotencyKey     string `form:"idempotency_key" json:"-" validate:"omitempty,max=128"`
}

// Transition describes a decision applied by an operator.
type Transition struct {
	ID      uuid.UUID
	Status  Status
	ActorID uuid.UUID
}
