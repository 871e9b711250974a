package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	facilitieserrors "reservo/internal/facilities/errors"
	"reservo/pkg/config"
	"reservo/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Facilities"
)

type mongoFacilityRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type FacilityRepository interface {
	Create(ctx context.Context, facility *model.Facility) error
	FindByID(ctx context.Context, id string) (*model.Facility, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Facility, error)
	Search(ctx context.Context, name, location string, minCapacity int, limit int, offset int64) ([]*model.Facility, error)
	Update(ctx context.Context, id string, facility *model.Facility) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	CountBySearch(ctx context.Context, name, location string, minCapacity int) (int64, error)
}

func NewMongoFacilityRepository(cfg *config.Config) FacilityRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoFacilityRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoFacilityRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoFacilityRepository) Create(ctx context.Context, facility *model.Facility) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	facility.CreatedAt = now
	facility.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, facility)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return facilitieserrors.ErrDuplicateName
		}
		return fmt.Errorf("failed to create facility: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		facility.ID = oid.Hex()
	}
	return nil
}

func (r *mongoFacilityRepository) FindByID(ctx context.Context, id string) (*model.Facility, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", facilitieserrors.ErrInvalidID, id)
	}

	var facility model.Facility
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&facility)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, facilitieserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find facility: %w", err)
	}

	return &facility, nil
}

func (r *mongoFacilityRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Facility, error) {
	return r.findByFilter(ctx, bson.M{}, limit, offset)
}

func (r *mongoFacilityRepository) Search(ctx context.Context, name, location string, minCapacity int, limit int, offset int64) ([]*model.Facility, error) {
	return r.findByFilter(ctx, buildSearchFilter(name, location, minCapacity), limit, offset)
}

func (r *mongoFacilityRepository) findByFilter(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Facility, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find facilities: %w", err)
	}
	defer cursor.Close(ctx)

	var facilities []*model.Facility
	if err = cursor.All(ctx, &facilities); err != nil {
		return nil, fmt.Errorf("failed to decode facilities: %w", err)
	}

	return facilities, nil
}

func (r *mongoFacilityRepository) Update(ctx context.Context, id string, facility *model.Facility) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", facilitieserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}
	update := bson.M{
		"$set": bson.M{
			"name":        facility.Name,
			"description": facility.Description,
			"capacity":    facility.Capacity,
			"location":    facility.Location,
			"image_url":   facility.ImageURL,
			"updated_at":  time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return facilitieserrors.ErrDuplicateName
		}
		return fmt.Errorf("failed to update facility: %w", err)
	}

	if result.MatchedCount == 0 {
		return facilitieserrors.ErrNotFound
	}

	return nil
}

func (r *mongoFacilityRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", facilitieserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete facility: %w", err)
	}

	if result.DeletedCount == 0 {
		return facilitieserrors.ErrNotFound
	}

	return nil
}

func (r *mongoFacilityRepository) Count(ctx context.Context) (int64, error) {
	return r.countByFilter(ctx, bson.M{})
}

func (r *mongoFacilityRepository) CountBySearch(ctx context.Context, name, location string, minCapacity int) (int64, error) {
	return r.countByFilter(ctx, buildSearchFilter(name, location, minCapacity))
}

func (r *mongoFacilityRepository) countByFilter(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count facilities: %w", err)
	}

	return count, nil
}

func buildSearchFilter(name, location string, minCapacity int) bson.M {
	filter := bson.M{}

	if name != "" {
		filter["name"] = bson.M{"$regex": primitive.Regex{Pattern: name, Options: "i"}}
	}
	if location != "" {
		filter["location"] = bson.M{"$regex": primitive.Regex{Pattern: location, Options: "i"}}
	}
	if minCapacity > 0 {
		filter["capacity"] = bson.M{"$gte": minCapacity}
	}

	return filter
}
