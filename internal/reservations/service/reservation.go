package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	facilitieserrors "reservo/internal/facilities/errors"
	reservationserrors "reservo/internal/reservations/errors"
	"reservo/internal/reservations/repository"
	"reservo/internal/reservations/validator"
	userserrors "reservo/internal/users/errors"
	"reservo/pkg/config"
	"reservo/pkg/contracts"
	apperrors "reservo/pkg/errors"
	"reservo/pkg/kafka"
	"reservo/pkg/model"
	"reservo/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// FacilityGetter is the facility lookup capability the booking engine
// consumes. Satisfied by the facilities repository.
type FacilityGetter interface {
	FindByID(ctx context.Context, id string) (*model.Facility, error)
}

// UserGetter is the user lookup capability the booking engine consumes.
// Satisfied by the users repository.
type UserGetter interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// EventPublisher publishes reservation lifecycle events. Satisfied by
// kafka.Producer. A nil publisher disables eventing.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type ReservationService interface {
	CheckAvailability(ctx context.Context, facilityID string, startTime, endTime time.Time, excludeReservationID string) (bool, error)
	Create(ctx context.Context, userID string, req *model.ReservationCreate) (*model.Reservation, error)
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error)
	GetByFacility(ctx context.Context, facilityID string, limit int, offset int64) ([]*model.Reservation, int64, error)
	GetByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, int64, error)
	GetByStatus(ctx context.Context, status string, limit int, offset int64) ([]*model.Reservation, int64, error)
	UpdateStatus(ctx context.Context, id string, update *model.ReservationStatusUpdate) (*model.Reservation, error)
	Delete(ctx context.Context, id string) error
}

type reservationService struct {
	repo       repository.ReservationRepository
	lockRepo   repository.SlotLockRepository
	facilities FacilityGetter
	users      UserGetter
	validator  *validator.ReservationValidator
	producer   EventPublisher
	cfg        *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	lockRepo repository.SlotLockRepository,
	facilities FacilityGetter,
	users UserGetter,
	validator *validator.ReservationValidator,
	producer EventPublisher,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:       repo,
		lockRepo:   lockRepo,
		facilities: facilities,
		users:      users,
		validator:  validator,
		producer:   producer,
		cfg:        cfg,
	}
}

// CheckAvailability reports whether [startTime, endTime] is free of APPROVED
// reservations for the facility. The overlap predicate is inclusive on both
// boundaries, so a reservation ending exactly at startTime still conflicts.
// When excludeReservationID is set, that reservation is ignored, which lets
// callers re-check a slot held by the reservation being modified.
func (s *reservationService) CheckAvailability(ctx context.Context, facilityID string, startTime, endTime time.Time, excludeReservationID string) (bool, error) {
	if facilityID == "" {
		return false, apperrors.InvalidInput("Facility ID cannot be empty")
	}

	overlapping, err := s.repo.FindOverlapping(ctx, facilityID, startTime, endTime)
	if err != nil {
		return false, apperrors.Internal("Failed to check availability", err)
	}

	for _, r := range overlapping {
		if excludeReservationID != "" && r.ID == excludeReservationID {
			continue
		}
		return false, nil
	}

	return true, nil
}

func (s *reservationService) Create(ctx context.Context, userID string, req *model.ReservationCreate) (*model.Reservation, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	req.Purpose = sanitizer.NormalizePurpose(req.Purpose)
	if err := s.validator.ValidateCreate(req); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return nil, apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}

	// Referential checks precede temporal checks which precede the conflict
	// check; the first failure wins.
	if _, err := s.facilities.FindByID(ctx, req.FacilityID); err != nil {
		if errors.Is(err, facilitieserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Facility", req.FacilityID)
		}
		if errors.Is(err, facilitieserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid facility ID format")
		}
		return nil, apperrors.Internal("Failed to verify facility", err)
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("User", userID)
		}
		if errors.Is(err, userserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid user ID format")
		}
		return nil, apperrors.Internal("Failed to verify user", err)
	}

	if !req.EndTime.After(req.StartTime) {
		return nil, apperrors.InvalidInput("End time must be strictly after start time")
	}

	if req.StartTime.Before(time.Now()) {
		return nil, apperrors.InvalidInput("Start time cannot be in the past")
	}

	// Acquire the facility-scoped advisory lock so the availability check and
	// the insert are serialized against concurrent booking attempts.
	lockID, err := s.acquireFacilityLock(ctx, req.FacilityID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.releaseFacilityLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release reservation lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	reservation := &model.Reservation{
		FacilityID: req.FacilityID,
		UserID:     userID,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Purpose:    req.Purpose,
		Status:     model.StatusPending,
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		available, err := s.CheckAvailability(sessCtx, req.FacilityID, req.StartTime, req.EndTime, "")
		if err != nil {
			return err
		}
		if !available {
			return apperrors.Conflict(fmt.Sprintf(
				"Requested interval (%s - %s) overlaps an approved reservation for this facility",
				req.StartTime.Format(time.RFC3339),
				req.EndTime.Format(time.RFC3339),
			)).WithDetails(map[string]any{"facility_id": req.FacilityID})
		}

		if err := s.repo.Create(sessCtx, reservation); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create reservation", "facility_id", req.FacilityID, "user_id", userID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Reservation created successfully",
		"id", reservation.ID,
		"facility_id", reservation.FacilityID,
		"user_id", reservation.UserID,
		"start_time", reservation.StartTime,
	)

	s.publishEvent(ctx, contracts.EventReservationCreated, reservation, "")

	return reservation, nil
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	return reservation, nil
}

func (s *reservationService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error) {
	return s.listConcurrently(ctx,
		func(ctx context.Context) (int64, error) { return s.repo.Count(ctx) },
		func(ctx context.Context) ([]*model.Reservation, error) { return s.repo.FindAll(ctx, limit, offset) },
	)
}

func (s *reservationService) GetByFacility(ctx context.Context, facilityID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if facilityID == "" {
		return nil, 0, apperrors.InvalidInput("Facility ID cannot be empty")
	}
	return s.listConcurrently(ctx,
		func(ctx context.Context) (int64, error) { return s.repo.CountByFacility(ctx, facilityID) },
		func(ctx context.Context) ([]*model.Reservation, error) {
			return s.repo.FindByFacility(ctx, facilityID, limit, offset)
		},
	)
}

func (s *reservationService) GetByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if userID == "" {
		return nil, 0, apperrors.InvalidInput("User ID cannot be empty")
	}
	return s.listConcurrently(ctx,
		func(ctx context.Context) (int64, error) { return s.repo.CountByUser(ctx, userID) },
		func(ctx context.Context) ([]*model.Reservation, error) {
			return s.repo.FindByUser(ctx, userID, limit, offset)
		},
	)
}

// GetByStatus lists upcoming reservations in the given status; reservations
// whose start time has already passed are excluded.
func (s *reservationService) GetByStatus(ctx context.Context, status string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if err := s.validator.ValidateStatusUpdate(&model.ReservationStatusUpdate{Status: status}); err != nil {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("Invalid status: %s", status))
	}
	now := time.Now().UTC()
	return s.listConcurrently(ctx,
		func(ctx context.Context) (int64, error) { return s.repo.CountByStatus(ctx, status, now) },
		func(ctx context.Context) ([]*model.Reservation, error) {
			return s.repo.FindByStatus(ctx, status, now, limit, offset)
		},
	)
}

// UpdateStatus sets the reservation status unconditionally. No transition
// graph is enforced and no availability re-check happens when approving; the
// admin doing the approval owns that judgment call.
func (s *reservationService) UpdateStatus(ctx context.Context, id string, update *model.ReservationStatusUpdate) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	if err := s.validator.ValidateStatusUpdate(update); err != nil {
		s.cfg.Log.Warn("Status update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid status update", map[string]any{"error": err.Error()})
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	previousStatus := existing.Status

	updated, err := s.repo.UpdateStatus(ctx, id, update.Status)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	s.cfg.Log.Info("Reservation status updated",
		"id", id,
		"previous_status", previousStatus,
		"status", updated.Status,
	)

	s.publishEvent(ctx, contracts.EventReservationStatusChanged, updated, previousStatus)

	return updated, nil
}

func (s *reservationService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.mapLookupError(err, id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapLookupError(err, id)
	}

	s.cfg.Log.Info("Reservation deleted successfully", "id", id)

	s.publishEvent(ctx, contracts.EventReservationDeleted, existing, existing.Status)

	return nil
}

// --- Helpers ---

func (s *reservationService) listConcurrently(
	ctx context.Context,
	count func(ctx context.Context) (int64, error),
	find func(ctx context.Context) ([]*model.Reservation, error),
) ([]*model.Reservation, int64, error) {
	var total int64
	var reservations []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count reservations", "error", errCount)
			errCount = apperrors.Internal("Failed to count reservations", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		reservations, errFind = find(ctx)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list reservations", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve reservations", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return reservations, total, nil
}

func (s *reservationService) mapLookupError(err error, id string) error {
	if errors.Is(err, reservationserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Reservation", id)
	}
	if errors.Is(err, reservationserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid reservation ID format")
	}
	return apperrors.Internal("Failed to retrieve reservation", err)
}

// acquireFacilityLock creates an advisory lock scoped to the whole facility.
// A per-slot lock would not serialize two requests whose intervals overlap
// without sharing a start time, so the facility is the locking granule.
// The coarse scope means two in-flight creates for disjoint intervals on the
// same facility contend too: the loser gets a Conflict it could have avoided
// and must retry. Accepted trade-off; the lock is held only across one
// availability check and insert.
func (s *reservationService) acquireFacilityLock(ctx context.Context, facilityID string) (string, error) {
	lockID := fmt.Sprintf("reservation_lock_%s", facilityID)

	lock := &model.SlotLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.SlotLockTTL),
	}

	_, err := s.lockRepo.Create(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This facility is currently being booked by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire reservation lock", err)
	}

	return lockID, nil
}

func (s *reservationService) releaseFacilityLock(ctx context.Context, lockID string) error {
	return s.lockRepo.Delete(ctx, lockID)
}

// publishEvent emits a lifecycle event keyed by facility so per-facility
// ordering is preserved. Publishing is best-effort: failures are logged, never
// surfaced to the caller.
func (s *reservationService) publishEvent(ctx context.Context, eventType string, reservation *model.Reservation, previousStatus string) {
	if s.producer == nil {
		return
	}

	event := contracts.ReservationEvent{
		ReservationID:  reservation.ID,
		FacilityID:     reservation.FacilityID,
		UserID:         reservation.UserID,
		StartTime:      reservation.StartTime,
		EndTime:        reservation.EndTime,
		Status:         reservation.Status,
		PreviousStatus: previousStatus,
		OccurredAt:     time.Now().UTC(),
	}

	msg := kafka.NewMessage().
		WithKey(reservation.FacilityID).
		WithValue(event).
		WithEventType(eventType).
		WithSource("reservation-service").
		Build()

	if err := s.producer.Publish(ctx, msg); err != nil {
		s.cfg.Log.Error("Failed to publish reservation event",
			"event_type", eventType,
			"reservation_id", reservation.ID,
			"error", err,
		)
	}
}
