package service

import (
	"context"
	"errors"
	"sync"

	facilitieserrors "reservo/internal/facilities/errors"
	"reservo/internal/facilities/repository"
	"reservo/internal/facilities/validator"
	"reservo/pkg/config"
	apperrors "reservo/pkg/errors"
	"reservo/pkg/model"
	"reservo/pkg/sanitizer"
)

type FacilityService interface {
	Create(ctx context.Context, facility *model.Facility) error
	GetByID(ctx context.Context, id string) (*model.Facility, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Facility, int64, error)
	Search(ctx context.Context, name, location string, minCapacity int, limit int, offset int64) ([]*model.Facility, int64, error)
	Update(ctx context.Context, id string, updates *model.FacilityUpdate) (*model.Facility, error)
	Delete(ctx context.Context, id string) error
}

type facilityService struct {
	repo      repository.FacilityRepository
	validator *validator.FacilityValidator
	cfg       *config.Config
}

func NewFacilityService(
	repo repository.FacilityRepository,
	validator *validator.FacilityValidator,
	cfg *config.Config,
) FacilityService {
	return &facilityService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *facilityService) Create(ctx context.Context, facility *model.Facility) error {
	s.sanitize(facility)

	if err := s.validator.Validate(facility); err != nil {
		s.cfg.Log.Warn("Facility validation failed", "error", err)
		return apperrors.Validation("Facility validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, facility); err != nil {
		if errors.Is(err, facilitieserrors.ErrDuplicateName) {
			return apperrors.Conflict("A facility with this name already exists")
		}
		s.cfg.Log.Error("Failed to create facility", "name", facility.Name, "error", err)
		return apperrors.Internal("Failed to create facility", err)
	}

	s.cfg.Log.Info("Facility created successfully", "id", facility.ID, "name", facility.Name)
	return nil
}

func (s *facilityService) GetByID(ctx context.Context, id string) (*model.Facility, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Facility ID cannot be empty")
	}

	facility, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	return facility, nil
}

func (s *facilityService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Facility, int64, error) {
	return s.listConcurrently(ctx,
		func(ctx context.Context) (int64, error) { return s.repo.Count(ctx) },
		func(ctx context.Context) ([]*model.Facility, error) { return s.repo.FindAll(ctx, limit, offset) },
	)
}

func (s *facilityService) Search(ctx context.Context, name, location string, minCapacity int, limit int, offset int64) ([]*model.Facility, int64, error) {
	name = sanitizer.NormalizeName(name)
	location = sanitizer.NormalizeLocation(location)

	return s.listConcurrently(ctx,
		func(ctx context.Context) (int64, error) {
			return s.repo.CountBySearch(ctx, name, location, minCapacity)
		},
		func(ctx context.Context) ([]*model.Facility, error) {
			return s.repo.Search(ctx, name, location, minCapacity, limit, offset)
		},
	)
}

func (s *facilityService) Update(ctx context.Context, id string, updates *model.FacilityUpdate) (*model.Facility, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Facility ID cannot be empty")
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Facility update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	merged := s.mergeUpdates(existing, updates)
	s.sanitize(merged)

	if err := s.validator.Validate(merged); err != nil {
		return nil, apperrors.Validation("Facility validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Update(ctx, id, merged); err != nil {
		if errors.Is(err, facilitieserrors.ErrDuplicateName) {
			return nil, apperrors.Conflict("A facility with this name already exists")
		}
		if errors.Is(err, facilitieserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Facility", id)
		}
		s.cfg.Log.Error("Failed to update facility", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update facility", err)
	}

	s.cfg.Log.Info("Facility updated successfully", "id", id)
	return merged, nil
}

func (s *facilityService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Facility ID cannot be empty")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapLookupError(err, id)
	}

	s.cfg.Log.Info("Facility deleted successfully", "id", id)
	return nil
}

// --- Helpers ---

func (s *facilityService) sanitize(f *model.Facility) {
	f.Name = sanitizer.NormalizeName(f.Name)
	f.Description = sanitizer.NormalizeDescription(f.Description)
	f.Location = sanitizer.NormalizeLocation(f.Location)
}

func (s *facilityService) mergeUpdates(existing *model.Facility, updates *model.FacilityUpdate) *model.Facility {
	merged := *existing

	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Description != nil {
		merged.Description = *updates.Description
	}
	if updates.Capacity != nil {
		merged.Capacity = *updates.Capacity
	}
	if updates.Location != nil {
		merged.Location = *updates.Location
	}
	if updates.ImageURL != nil {
		merged.ImageURL = *updates.ImageURL
	}

	return &merged
}

func (s *facilityService) mapLookupError(err error, id string) error {
	if errors.Is(err, facilitieserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Facility", id)
	}
	if errors.Is(err, facilitieserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid facility ID format")
	}
	return apperrors.Internal("Failed to retrieve facility", err)
}

func (s *facilityService) listConcurrently(
	ctx context.Context,
	count func(ctx context.Context) (int64, error),
	find func(ctx context.Context) ([]*model.Facility, error),
) ([]*model.Facility, int64, error) {
	var total int64
	var facilities []*model.Facility
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count facilities", "error", errCount)
			errCount = apperrors.Internal("Failed to count facilities", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		facilities, errFind = find(ctx)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list facilities", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve facilities", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return facilities, total, nil
}
