package contracts

import "time"

// Reservation lifecycle event types published to the reservation events topic.
const (
	EventReservationCreated       = "reservation.created"
	EventReservationStatusChanged = "reservation.status_changed"
	EventReservationDeleted       = "reservation.deleted"
)

// ReservationEvent is the payload for all reservation lifecycle events.
// Messages are keyed by facility ID so events for one facility stay ordered.
type ReservationEvent struct {
	ReservationID  string    `json:"reservation_id"`
	FacilityID     string    `json:"facility_id"`
	UserID         string    `json:"user_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
