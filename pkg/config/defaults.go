package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "reservo"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultJWTTokenTTL = 24 * time.Hour
	DefaultBcryptCost  = 12

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultSlotLockTTL = 10 * time.Second

	// Development-only key. Production deployments must set CONFIRMATION_KEY.
	DefaultConfirmationKey = "cmVzZXJ2by1kZXYtY29uZmlybWF0aW9uLWtleS0zMmI="

	DefaultReservationEventsTopic = "reservation-events"
	DefaultReservationEventsDLQ   = "reservation-events-dlq"
	DefaultNotifierGroupID        = "reservo-notifier"

	DefaultPaginationLimit = 100
)
