package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	facilitieserrors "reservo/internal/facilities/errors"
	reservationserrors "reservo/internal/reservations/errors"
	"reservo/internal/reservations/repository"
	"reservo/internal/reservations/validator"
	userserrors "reservo/internal/users/errors"
	"reservo/pkg/config"
	mongotx "reservo/pkg/db/mongo"
	apperrors "reservo/pkg/errors"
	"reservo/pkg/kafka"
	"reservo/pkg/logger"
	"reservo/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	testFacilityID = "64a000000000000000000001"
	testUserID     = "64a000000000000000000002"
)

// ────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────

type mockReservationRepository struct {
	findOverlappingFunc func(ctx context.Context, facilityID string, startTime, endTime time.Time) ([]*model.Reservation, error)
	createFunc          func(ctx context.Context, reservation *model.Reservation) error
	findByIDFunc        func(ctx context.Context, id string) (*model.Reservation, error)
	updateStatusFunc    func(ctx context.Context, id string, status string) (*model.Reservation, error)
	deleteFunc          func(ctx context.Context, id string) error
	findAllFunc         func(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error)
	findByStatusFunc    func(ctx context.Context, status string, after time.Time, limit int, offset int64) ([]*model.Reservation, error)
	countFunc           func(ctx context.Context) (int64, error)

	findOverlappingCalls int
	createCalls          int
}

func (m *mockReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	m.createCalls++
	if m.createFunc != nil {
		return m.createFunc(ctx, reservation)
	}
	reservation.ID = "64a0000000000000000000ff"
	return nil
}

func (m *mockReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, reservationserrors.ErrNotFound
}

func (m *mockReservationRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) FindOverlapping(ctx context.Context, facilityID string, startTime, endTime time.Time) ([]*model.Reservation, error) {
	m.findOverlappingCalls++
	if m.findOverlappingFunc != nil {
		return m.findOverlappingFunc(ctx, facilityID, startTime, endTime)
	}
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) FindByFacility(ctx context.Context, facilityID string, limit int, offset int64) ([]*model.Reservation, error) {
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error) {
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) FindByStatus(ctx context.Context, status string, after time.Time, limit int, offset int64) ([]*model.Reservation, error) {
	if m.findByStatusFunc != nil {
		return m.findByStatusFunc(ctx, status, after, limit, offset)
	}
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) UpdateStatus(ctx context.Context, id string, status string) (*model.Reservation, error) {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status)
	}
	return nil, reservationserrors.ErrNotFound
}

func (m *mockReservationRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockReservationRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockReservationRepository) CountByFacility(ctx context.Context, facilityID string) (int64, error) {
	return 0, nil
}

func (m *mockReservationRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

func (m *mockReservationRepository) CountByStatus(ctx context.Context, status string, after time.Time) (int64, error) {
	return 0, nil
}

func (m *mockReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockSlotLockRepository struct {
	createFunc  func(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error)
	createCalls int
	deleteCalls int
	deletedIDs  []string
}

func (m *mockSlotLockRepository) Create(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
	m.createCalls++
	if m.createFunc != nil {
		return m.createFunc(ctx, lock)
	}
	return lock, nil
}

func (m *mockSlotLockRepository) Delete(ctx context.Context, lockID string) error {
	m.deleteCalls++
	m.deletedIDs = append(m.deletedIDs, lockID)
	return nil
}

type mockFacilityGetter func(ctx context.Context, id string) (*model.Facility, error)

func (f mockFacilityGetter) FindByID(ctx context.Context, id string) (*model.Facility, error) {
	return f(ctx, id)
}

type mockUserGetter func(ctx context.Context, id string) (*model.User, error)

func (f mockUserGetter) FindByID(ctx context.Context, id string) (*model.User, error) {
	return f(ctx, id)
}

type mockPublisher struct {
	published []kafka.Message
}

func (m *mockPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	m.published = append(m.published, msg)
	return nil
}

// ────────────────────────────────────────────────
// Fixtures
// ────────────────────────────────────────────────

func newTestConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:     "error",
			Format:    logger.JSON,
			AddSource: false,
			Service:   "test",
		}),
		SlotLockTTL: 10 * time.Second,
		ReadTimeout: 5 * time.Second,
	}
}

func facilityExists(ctx context.Context, id string) (*model.Facility, error) {
	return &model.Facility{ID: id, Name: "Main Hall"}, nil
}

func userExists(ctx context.Context, id string) (*model.User, error) {
	return &model.User{ID: id, Username: "alice"}, nil
}

func newBookingService(repo *mockReservationRepository, locks repository.SlotLockRepository, facilities mockFacilityGetter, users mockUserGetter, publisher EventPublisher) ReservationService {
	cfg := newTestConfig()
	return NewReservationService(repo, locks, facilities, users, validator.NewReservationValidator(cfg.Log), publisher, cfg)
}

func validCreateRequest() *model.ReservationCreate {
	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	return &model.ReservationCreate{
		FacilityID: testFacilityID,
		StartTime:  start,
		EndTime:    start.Add(2 * time.Hour),
		Purpose:    "team meeting",
	}
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != code {
		t.Fatalf("expected error code %s, got %s (%v)", code, appErr.Code, err)
	}
}

func duplicateKeyError() error {
	return mongo.WriteException{
		WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}},
	}
}

// ────────────────────────────────────────────────
// CheckAvailability
// ────────────────────────────────────────────────

func TestCheckAvailability_NoOverlap(t *testing.T) {
	repo := &mockReservationRepository{
		findOverlappingFunc: func(ctx context.Context, facilityID string, startTime, endTime time.Time) ([]*model.Reservation, error) {
			return []*model.Reservation{}, nil
		},
	}
	svc := newBookingService(repo, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	start := time.Now().Add(time.Hour)
	available, err := svc.CheckAvailability(context.Background(), testFacilityID, start, start.Add(time.Hour), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !available {
		t.Error("expected slot to be available")
	}
}

func TestCheckAvailability_OverlapBlocks(t *testing.T) {
	repo := &mockReservationRepository{
		findOverlappingFunc: func(ctx context.Context, facilityID string, startTime, endTime time.Time) ([]*model.Reservation, error) {
			return []*model.Reservation{{ID: "existing", Status: model.StatusApproved}}, nil
		},
	}
	svc := newBookingService(repo, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	start := time.Now().Add(time.Hour)
	available, err := svc.CheckAvailability(context.Background(), testFacilityID, start, start.Add(time.Hour), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if available {
		t.Error("expected slot to be unavailable")
	}
}

func TestCheckAvailability_ExcludesOwnReservation(t *testing.T) {
	repo := &mockReservationRepository{
		findOverlappingFunc: func(ctx context.Context, facilityID string, startTime, endTime time.Time) ([]*model.Reservation, error) {
			return []*model.Reservation{{ID: "res-1", Status: model.StatusApproved}}, nil
		},
	}
	svc := newBookingService(repo, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	start := time.Now().Add(time.Hour)
	available, err := svc.CheckAvailability(context.Background(), testFacilityID, start, start.Add(time.Hour), "res-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !available {
		t.Error("expected slot to be available when the only overlap is the excluded reservation")
	}

	available, err = svc.CheckAvailability(context.Background(), testFacilityID, start, start.Add(time.Hour), "res-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if available {
		t.Error("expected slot to stay unavailable when the overlap is a different reservation")
	}
}

func TestCheckAvailability_EmptyFacilityID(t *testing.T) {
	svc := newBookingService(&mockReservationRepository{}, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	start := time.Now().Add(time.Hour)
	_, err := svc.CheckAvailability(context.Background(), "", start, start.Add(time.Hour), "")
	assertAppErrorCode(t, err, apperrors.CodeInvalidInput)
}

func TestCheckAvailability_AllowsInvertedRange(t *testing.T) {
	// The availability query answers exactly what was asked. Range ordering
	// is enforced at creation time, not here.
	var gotStart, gotEnd time.Time
	repo := &mockReservationRepository{
		findOverlappingFunc: func(ctx context.Context, facilityID string, startTime, endTime time.Time) ([]*model.Reservation, error) {
			gotStart, gotEnd = startTime, endTime
			return []*model.Reservation{}, nil
		},
	}
	svc := newBookingService(repo, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	end := time.Now().Add(time.Hour)
	start := end.Add(time.Hour)

	available, err := svc.CheckAvailability(context.Background(), testFacilityID, start, end, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !available {
		t.Error("expected inverted range to report available with no matches")
	}
	if !gotStart.Equal(start) || !gotEnd.Equal(end) {
		t.Error("expected the query to pass the range through unmodified")
	}
}

// ────────────────────────────────────────────────
// Create
// ────────────────────────────────────────────────

func TestCreate_Success(t *testing.T) {
	repo := &mockReservationRepository{}
	locks := &mockSlotLockRepository{}
	publisher := &mockPublisher{}
	svc := newBookingService(repo, locks, facilityExists, userExists, publisher)

	reservation, err := svc.Create(context.Background(), testUserID, validCreateRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reservation.Status != model.StatusPending {
		t.Errorf("expected new reservation to be %s, got %s", model.StatusPending, reservation.Status)
	}
	if reservation.UserID != testUserID {
		t.Errorf("expected user id %s, got %s", testUserID, reservation.UserID)
	}
	if repo.createCalls != 1 {
		t.Errorf("expected exactly one insert, got %d", repo.createCalls)
	}
	if locks.createCalls != 1 || locks.deleteCalls != 1 {
		t.Errorf("expected lock acquired and released once, got acquire=%d release=%d", locks.createCalls, locks.deleteCalls)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected one published event, got %d", len(publisher.published))
	}
	if key := publisher.published[0].Key; key != testFacilityID {
		t.Errorf("expected event keyed by facility id, got %s", key)
	}
}

func TestCreate_FacilityNotFoundWinsOverBadTimes(t *testing.T) {
	// The facility check runs before temporal validation, so a missing
	// facility must be reported even when the time range is also bad.
	facilities := mockFacilityGetter(func(ctx context.Context, id string) (*model.Facility, error) {
		return nil, facilitieserrors.ErrNotFound
	})
	svc := newBookingService(&mockReservationRepository{}, &mockSlotLockRepository{}, facilities, userExists, nil)

	req := validCreateRequest()
	req.StartTime, req.EndTime = req.EndTime, req.StartTime

	_, err := svc.Create(context.Background(), testUserID, req)
	assertAppErrorCode(t, err, apperrors.CodeNotFound)
}

func TestCreate_UserNotFound(t *testing.T) {
	users := mockUserGetter(func(ctx context.Context, id string) (*model.User, error) {
		return nil, userserrors.ErrNotFound
	})
	svc := newBookingService(&mockReservationRepository{}, &mockSlotLockRepository{}, facilityExists, users, nil)

	_, err := svc.Create(context.Background(), testUserID, validCreateRequest())
	assertAppErrorCode(t, err, apperrors.CodeNotFound)
}

func TestCreate_EndEqualsStart(t *testing.T) {
	svc := newBookingService(&mockReservationRepository{}, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	req := validCreateRequest()
	req.EndTime = req.StartTime

	_, err := svc.Create(context.Background(), testUserID, req)
	assertAppErrorCode(t, err, apperrors.CodeInvalidInput)
}

func TestCreate_EndBeforeStart(t *testing.T) {
	svc := newBookingService(&mockReservationRepository{}, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	req := validCreateRequest()
	req.EndTime = req.StartTime.Add(-time.Hour)

	_, err := svc.Create(context.Background(), testUserID, req)
	assertAppErrorCode(t, err, apperrors.CodeInvalidInput)
}

func TestCreate_StartInPast(t *testing.T) {
	svc := newBookingService(&mockReservationRepository{}, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	req := validCreateRequest()
	req.StartTime = time.Now().Add(-time.Hour)
	req.EndTime = time.Now().Add(time.Hour)

	_, err := svc.Create(context.Background(), testUserID, req)
	assertAppErrorCode(t, err, apperrors.CodeInvalidInput)
}

func TestCreate_ConflictWhenSlotTaken(t *testing.T) {
	repo := &mockReservationRepository{
		findOverlappingFunc: func(ctx context.Context, facilityID string, startTime, endTime time.Time) ([]*model.Reservation, error) {
			return []*model.Reservation{{ID: "existing", Status: model.StatusApproved}}, nil
		},
	}
	locks := &mockSlotLockRepository{}
	svc := newBookingService(repo, locks, facilityExists, userExists, nil)

	_, err := svc.Create(context.Background(), testUserID, validCreateRequest())
	assertAppErrorCode(t, err, apperrors.CodeConflict)

	if repo.createCalls != 0 {
		t.Errorf("expected no insert after conflict, got %d", repo.createCalls)
	}
	if locks.deleteCalls != 1 {
		t.Errorf("expected lock released after conflict, got %d releases", locks.deleteCalls)
	}
}

func TestCreate_LockContention(t *testing.T) {
	locks := &mockSlotLockRepository{
		createFunc: func(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
			return nil, duplicateKeyError()
		},
	}
	repo := &mockReservationRepository{}
	svc := newBookingService(repo, locks, facilityExists, userExists, nil)

	_, err := svc.Create(context.Background(), testUserID, validCreateRequest())
	assertAppErrorCode(t, err, apperrors.CodeConflict)

	if repo.findOverlappingCalls != 0 {
		t.Error("expected no availability check when the lock is contended")
	}
	if repo.createCalls != 0 {
		t.Error("expected no insert when the lock is contended")
	}
}

func TestCreate_PendingDoesNotBlock(t *testing.T) {
	// The overlap query only returns APPROVED reservations; a PENDING
	// reservation on the same slot must not block a new request.
	repo := &mockReservationRepository{
		findOverlappingFunc: func(ctx context.Context, facilityID string, startTime, endTime time.Time) ([]*model.Reservation, error) {
			return []*model.Reservation{}, nil
		},
	}
	svc := newBookingService(repo, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	if _, err := svc.Create(context.Background(), testUserID, validCreateRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreate_MissingFacilityID(t *testing.T) {
	svc := newBookingService(&mockReservationRepository{}, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	req := validCreateRequest()
	req.FacilityID = ""

	_, err := svc.Create(context.Background(), testUserID, req)
	assertAppErrorCode(t, err, apperrors.CodeValidation)
}

// ────────────────────────────────────────────────
// UpdateStatus
// ────────────────────────────────────────────────

func TestUpdateStatus_SetsStatusWithoutAvailabilityRecheck(t *testing.T) {
	existing := &model.Reservation{
		ID:         "res-1",
		FacilityID: testFacilityID,
		UserID:     testUserID,
		Status:     model.StatusPending,
	}
	repo := &mockReservationRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			return existing, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, status string) (*model.Reservation, error) {
			updated := *existing
			updated.Status = status
			return &updated, nil
		},
		findOverlappingFunc: func(ctx context.Context, facilityID string, startTime, endTime time.Time) ([]*model.Reservation, error) {
			t.Error("status change must not consult the overlap query")
			return nil, nil
		},
	}
	publisher := &mockPublisher{}
	svc := newBookingService(repo, &mockSlotLockRepository{}, facilityExists, userExists, publisher)

	updated, err := svc.UpdateStatus(context.Background(), "res-1", &model.ReservationStatusUpdate{Status: model.StatusApproved})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != model.StatusApproved {
		t.Errorf("expected status %s, got %s", model.StatusApproved, updated.Status)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected one status change event, got %d", len(publisher.published))
	}
}

func TestUpdateStatus_AnyTransitionAllowed(t *testing.T) {
	transitions := []struct {
		from string
		to   string
	}{
		{model.StatusApproved, model.StatusPending},
		{model.StatusRejected, model.StatusApproved},
		{model.StatusCancelled, model.StatusApproved},
		{model.StatusApproved, model.StatusApproved},
	}

	for _, tt := range transitions {
		t.Run(fmt.Sprintf("%s_to_%s", tt.from, tt.to), func(t *testing.T) {
			repo := &mockReservationRepository{
				findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
					return &model.Reservation{ID: id, FacilityID: testFacilityID, Status: tt.from}, nil
				},
				updateStatusFunc: func(ctx context.Context, id string, status string) (*model.Reservation, error) {
					return &model.Reservation{ID: id, FacilityID: testFacilityID, Status: status}, nil
				},
			}
			svc := newBookingService(repo, &mockSlotLockRepository{}, facilityExists, userExists, nil)

			updated, err := svc.UpdateStatus(context.Background(), "res-1", &model.ReservationStatusUpdate{Status: tt.to})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if updated.Status != tt.to {
				t.Errorf("expected status %s, got %s", tt.to, updated.Status)
			}
		})
	}
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	svc := newBookingService(&mockReservationRepository{}, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	_, err := svc.UpdateStatus(context.Background(), "res-1", &model.ReservationStatusUpdate{Status: "approved"})
	assertAppErrorCode(t, err, apperrors.CodeValidation)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	svc := newBookingService(&mockReservationRepository{}, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	_, err := svc.UpdateStatus(context.Background(), "res-1", &model.ReservationStatusUpdate{Status: model.StatusApproved})
	assertAppErrorCode(t, err, apperrors.CodeNotFound)
}

// ────────────────────────────────────────────────
// Delete
// ────────────────────────────────────────────────

func TestDelete_Success(t *testing.T) {
	deleted := false
	repo := &mockReservationRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			return &model.Reservation{ID: id, FacilityID: testFacilityID, Status: model.StatusApproved}, nil
		},
		deleteFunc: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}
	publisher := &mockPublisher{}
	svc := newBookingService(repo, &mockSlotLockRepository{}, facilityExists, userExists, publisher)

	if err := svc.Delete(context.Background(), "res-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Error("expected delete to reach the repository")
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected one deletion event, got %d", len(publisher.published))
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc := newBookingService(&mockReservationRepository{}, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	err := svc.Delete(context.Background(), "res-1")
	assertAppErrorCode(t, err, apperrors.CodeNotFound)
}

func TestDelete_EmptyID(t *testing.T) {
	svc := newBookingService(&mockReservationRepository{}, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	err := svc.Delete(context.Background(), "")
	assertAppErrorCode(t, err, apperrors.CodeInvalidInput)
}

// ────────────────────────────────────────────────
// Listing
// ────────────────────────────────────────────────

func TestGetAll_ConcurrentCountAndFind(t *testing.T) {
	repo := &mockReservationRepository{
		countFunc: func(ctx context.Context) (int64, error) {
			time.Sleep(10 * time.Millisecond)
			return 42, nil
		},
		findAllFunc: func(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error) {
			time.Sleep(10 * time.Millisecond)
			return []*model.Reservation{{ID: "1"}, {ID: "2"}}, nil
		},
	}
	svc := newBookingService(repo, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	reservations, total, err := svc.GetAll(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 42 {
		t.Errorf("expected total 42, got %d", total)
	}
	if len(reservations) != 2 {
		t.Errorf("expected 2 reservations, got %d", len(reservations))
	}
}

func TestGetByStatus_RejectsUnknownStatus(t *testing.T) {
	svc := newBookingService(&mockReservationRepository{}, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	_, _, err := svc.GetByStatus(context.Background(), "DONE", 10, 0)
	assertAppErrorCode(t, err, apperrors.CodeInvalidInput)
}

// Randomized admission check: the engine must never accept an interval that
// overlaps (inclusively) an already-approved one, and must never reject an
// interval that overlaps nothing. Successful creates are promoted to APPROVED
// before the next round, mimicking an admin approving every request.
func TestCreate_RandomIntervalsNeverOverlapApproved(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	base := time.Now().Add(24 * time.Hour).Truncate(time.Hour)

	var approved []*model.Reservation
	overlaps := func(start, end time.Time) *model.Reservation {
		for _, r := range approved {
			if !r.StartTime.After(end) && !r.EndTime.Before(start) {
				return r
			}
		}
		return nil
	}

	nextID := 0
	repo := &mockReservationRepository{
		findOverlappingFunc: func(ctx context.Context, facilityID string, startTime, endTime time.Time) ([]*model.Reservation, error) {
			if r := overlaps(startTime, endTime); r != nil {
				return []*model.Reservation{r}, nil
			}
			return nil, nil
		},
		createFunc: func(ctx context.Context, reservation *model.Reservation) error {
			nextID++
			reservation.ID = fmt.Sprintf("64a0000000000000000000%02x", nextID)
			return nil
		},
	}
	svc := newBookingService(repo, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	for i := 0; i < 200; i++ {
		start := base.Add(time.Duration(rng.Intn(96)) * 30 * time.Minute)
		end := start.Add(time.Duration(1+rng.Intn(8)) * 30 * time.Minute)

		conflicting := overlaps(start, end)

		created, err := svc.Create(context.Background(), testUserID, &model.ReservationCreate{
			FacilityID: testFacilityID,
			StartTime:  start,
			EndTime:    end,
		})

		if conflicting != nil {
			if err == nil {
				t.Fatalf("round %d: admitted [%s, %s] overlapping approved [%s, %s]",
					i, start, end, conflicting.StartTime, conflicting.EndTime)
			}
			assertAppErrorCode(t, err, apperrors.CodeConflict)
			continue
		}

		if err != nil {
			t.Fatalf("round %d: rejected non-overlapping [%s, %s]: %v", i, start, end, err)
		}
		created.Status = model.StatusApproved
		approved = append(approved, created)
	}

	if len(approved) == 0 {
		t.Fatal("expected at least one admitted reservation")
	}
	for i, a := range approved {
		for _, b := range approved[i+1:] {
			if !a.StartTime.After(b.EndTime) && !a.EndTime.Before(b.StartTime) {
				t.Fatalf("approved reservations overlap: [%s, %s] and [%s, %s]",
					a.StartTime, a.EndTime, b.StartTime, b.EndTime)
			}
		}
	}
}

// approvedWindowRepo reports overlap against a single APPROVED reservation
// using the documented inclusive predicate.
func approvedWindowRepo(approved *model.Reservation) *mockReservationRepository {
	return &mockReservationRepository{
		findOverlappingFunc: func(ctx context.Context, facilityID string, startTime, endTime time.Time) ([]*model.Reservation, error) {
			if !approved.StartTime.After(endTime) && !approved.EndTime.Before(startTime) {
				return []*model.Reservation{approved}, nil
			}
			return nil, nil
		},
	}
}

// Facility F holds an APPROVED reservation for [10:00, 11:00]. The overlap
// comparisons are inclusive, so a request that merely touches either boundary
// conflicts; only strictly disjoint intervals are available.
func TestCheckAvailability_TouchingBoundaryConflicts(t *testing.T) {
	at10 := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	approved := &model.Reservation{
		ID:         "64a0000000000000000000aa",
		FacilityID: testFacilityID,
		StartTime:  at10,
		EndTime:    at10.Add(time.Hour),
		Status:     model.StatusApproved,
	}
	svc := newBookingService(approvedWindowRepo(approved), &mockSlotLockRepository{}, facilityExists, userExists, nil)

	tests := []struct {
		name          string
		start, end    time.Time
		wantAvailable bool
	}{
		{"starts exactly at existing end", at10.Add(time.Hour), at10.Add(2 * time.Hour), false},
		{"ends exactly at existing start", at10.Add(-time.Hour), at10, false},
		{"contained within existing", at10.Add(15 * time.Minute), at10.Add(45 * time.Minute), false},
		{"strictly after existing", at10.Add(time.Hour + time.Second), at10.Add(2 * time.Hour), true},
		{"strictly before existing", at10.Add(-time.Hour), at10.Add(-time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			available, err := svc.CheckAvailability(context.Background(), testFacilityID, tt.start, tt.end, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if available != tt.wantAvailable {
				t.Errorf("expected available=%v for [%s, %s]", tt.wantAvailable, tt.start, tt.end)
			}
		})
	}
}

func TestCheckAvailability_IdempotentRead(t *testing.T) {
	at10 := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	approved := &model.Reservation{
		ID:         "64a0000000000000000000aa",
		FacilityID: testFacilityID,
		StartTime:  at10,
		EndTime:    at10.Add(time.Hour),
		Status:     model.StatusApproved,
	}
	repo := approvedWindowRepo(approved)
	svc := newBookingService(repo, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	first, err := svc.CheckAvailability(context.Background(), testFacilityID, at10, at10.Add(time.Hour), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.CheckAvailability(context.Background(), testFacilityID, at10, at10.Add(time.Hour), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != second {
		t.Errorf("identical queries with no intervening writes disagreed: %v then %v", first, second)
	}
	if repo.createCalls != 0 {
		t.Errorf("availability check must not write, saw %d creates", repo.createCalls)
	}
	if repo.findOverlappingCalls != 2 {
		t.Errorf("expected 2 overlap queries, got %d", repo.findOverlappingCalls)
	}
}

// casLockRepository is an in-memory compare-and-set lock: first caller per id
// wins, later callers get a duplicate-key error until the holder releases.
// It signals on contended the first time an acquisition is refused.
type casLockRepository struct {
	mu        sync.Mutex
	held      map[string]bool
	contended chan struct{}
	once      sync.Once
}

func (c *casLockRepository) Create(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held[lock.ID] {
		c.once.Do(func() { close(c.contended) })
		return nil, duplicateKeyError()
	}
	c.held[lock.ID] = true
	return lock, nil
}

func (c *casLockRepository) Delete(ctx context.Context, lockID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.held, lockID)
	return nil
}

// Two genuinely concurrent creates for the same facility and interval:
// exactly one commits, the other observes Conflict. The winner's insert is
// held open until the loser has hit lock contention, so the requests are
// forced to overlap in time rather than run back to back.
func TestCreate_ConcurrentIdenticalIntervals(t *testing.T) {
	locks := &casLockRepository{held: map[string]bool{}, contended: make(chan struct{})}

	var storeMu sync.Mutex
	var stored []*model.Reservation
	repo := &mockReservationRepository{
		createFunc: func(ctx context.Context, reservation *model.Reservation) error {
			<-locks.contended
			storeMu.Lock()
			defer storeMu.Unlock()
			reservation.ID = fmt.Sprintf("64a0000000000000000000%02x", len(stored)+1)
			stored = append(stored, reservation)
			return nil
		},
	}
	svc := newBookingService(repo, locks, facilityExists, userExists, nil)

	template := validCreateRequest()
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			req := *template
			_, err := svc.Create(context.Background(), testUserID, &req)
			results <- err
		}()
	}

	var successes, conflicts int
	for i := 0; i < 2; i++ {
		err := <-results
		switch {
		case err == nil:
			successes++
		case apperrors.AsAppError(err).Code == apperrors.CodeConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if successes != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one success and one conflict, got %d successes, %d conflicts", successes, conflicts)
	}
	if len(stored) != 1 {
		t.Fatalf("expected a single persisted reservation, got %d", len(stored))
	}
}

func TestGetByStatus_AppliesUpcomingCutoff(t *testing.T) {
	var gotAfter time.Time
	repo := &mockReservationRepository{
		findByStatusFunc: func(ctx context.Context, status string, after time.Time, limit int, offset int64) ([]*model.Reservation, error) {
			gotAfter = after
			return []*model.Reservation{{ID: "1", Status: status}}, nil
		},
	}
	svc := newBookingService(repo, &mockSlotLockRepository{}, facilityExists, userExists, nil)

	before := time.Now().UTC()
	reservations, _, err := svc.GetByStatus(context.Background(), model.StatusPending, 10, 0)
	after := time.Now().UTC()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reservations) != 1 {
		t.Fatalf("expected 1 reservation, got %d", len(reservations))
	}
	if gotAfter.Before(before) || gotAfter.After(after) {
		t.Errorf("expected cutoff at the time of the call, got %s", gotAfter)
	}
}
