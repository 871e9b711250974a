package model

import (
	"time"
)

const (
	StatusPending   = "PENDING"
	StatusApproved  = "APPROVED"
	StatusRejected  = "REJECTED"
	StatusCancelled = "CANCELLED"
)

type Reservation struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	FacilityID string    `json:"facility_id" bson:"facility_id" validate:"required,mongodb"`
	UserID     string    `json:"user_id" bson:"user_id" validate:"required,mongodb"`
	StartTime  time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" bson:"end_time" validate:"required"`
	Purpose    string    `json:"purpose,omitempty" bson:"purpose,omitempty" validate:"omitempty,max=500"`
	Status     string    `json:"status" bson:"status" validate:"required,oneof=PENDING APPROVED REJECTED CANCELLED"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// ReservationCreate is the request body for creating a reservation. The user id
// comes from the authenticated caller, never from the body.
type ReservationCreate struct {
	FacilityID string    `json:"facility_id" validate:"required,mongodb"`
	StartTime  time.Time `json:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" validate:"required"`
	Purpose    string    `json:"purpose,omitempty" validate:"omitempty,max=500"`
}

type ReservationStatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=PENDING APPROVED REJECTED CANCELLED"`
}
