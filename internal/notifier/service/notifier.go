package service

import (
	"context"
	"fmt"
	"time"

	"reservo/pkg/contracts"
	"reservo/pkg/kafka"
	"reservo/pkg/logger"
	"reservo/pkg/sealer"
)

// Notification is the rendered message handed to a Sender.
type Notification struct {
	UserID        string
	ReservationID string
	FacilityID    string
	Subject       string
	Body          string
	// Reference is an opaque sealed token users can quote back in support
	// requests without exposing raw database ids.
	Reference string
	SentAt    time.Time
}

// Sender delivers a rendered notification. Implementations may push to
// email, SMS, or an in-app inbox.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the structured log. It is the default
// delivery channel when no external provider is configured.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.log.Info("Notification dispatched",
		"user_id", n.UserID,
		"reservation_id", n.ReservationID,
		"facility_id", n.FacilityID,
		"subject", n.Subject,
		"body", n.Body,
		"reference", n.Reference,
	)
	return nil
}

// NotifierService consumes reservation lifecycle events and dispatches
// user-facing notifications through the configured Sender.
type NotifierService struct {
	sender Sender
	seal   *sealer.Sealer
	log    *logger.Logger
}

func NewNotifierService(sender Sender, seal *sealer.Sealer, log *logger.Logger) *NotifierService {
	return &NotifierService{
		sender: sender,
		seal:   seal,
		log:    log,
	}
}

// HandleMessage is the kafka.MessageHandler entry point.
func (s *NotifierService) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var event contracts.ReservationEvent
	if err := msg.DecodeValue(&event); err != nil {
		// A payload that cannot be decoded will never succeed on retry.
		return kafka.NewPermanentError("failed to decode reservation event", err)
	}

	eventType := msg.GetEventType()

	notification, ok := s.render(eventType, event)
	if !ok {
		s.log.Warn("Skipping event with unknown type",
			"event_type", eventType,
			"event_id", msg.GetEventID(),
		)
		return nil
	}

	notification.SentAt = time.Now().UTC()

	if s.seal != nil {
		reference, err := s.seal.Seal(event.ReservationID, event.UserID)
		if err != nil {
			s.log.Error("Failed to seal reservation reference",
				"reservation_id", event.ReservationID,
				"error", err,
			)
		} else {
			notification.Reference = reference
		}
	}

	if err := s.sender.Send(ctx, notification); err != nil {
		return fmt.Errorf("failed to send notification for event %s: %w", msg.GetEventID(), err)
	}

	s.log.Info("Processed reservation event",
		"event_type", eventType,
		"event_id", msg.GetEventID(),
		"reservation_id", event.ReservationID,
	)
	return nil
}

func (s *NotifierService) render(eventType string, event contracts.ReservationEvent) (Notification, bool) {
	n := Notification{
		UserID:        event.UserID,
		ReservationID: event.ReservationID,
		FacilityID:    event.FacilityID,
	}

	window := fmt.Sprintf("%s to %s",
		event.StartTime.Format(time.RFC3339),
		event.EndTime.Format(time.RFC3339),
	)

	switch eventType {
	case contracts.EventReservationCreated:
		n.Subject = "Reservation received"
		n.Body = fmt.Sprintf("Your reservation request for %s is pending approval.", window)
	case contracts.EventReservationStatusChanged:
		n.Subject = fmt.Sprintf("Reservation %s", event.Status)
		n.Body = fmt.Sprintf("Your reservation for %s changed from %s to %s.",
			window, event.PreviousStatus, event.Status)
	case contracts.EventReservationDeleted:
		n.Subject = "Reservation cancelled"
		n.Body = fmt.Sprintf("Your reservation for %s has been removed.", window)
	default:
		return Notification{}, false
	}

	return n, true
}
