package main

import (
	authhandler "reservo/internal/auth/handler"
	authservice "reservo/internal/auth/service"
	facilityhandler "reservo/internal/facilities/handler"
	facilityrepository "reservo/internal/facilities/repository"
	facilityservice "reservo/internal/facilities/service"
	facilityvalidator "reservo/internal/facilities/validator"
	reservationhandler "reservo/internal/reservations/handler"
	reservationrepository "reservo/internal/reservations/repository"
	reservationservice "reservo/internal/reservations/service"
	reservationvalidator "reservo/internal/reservations/validator"
	userhandler "reservo/internal/users/handler"
	userrepository "reservo/internal/users/repository"
	userservice "reservo/internal/users/service"
	uservalidator "reservo/internal/users/validator"
	"reservo/pkg/app"
	"reservo/pkg/config"
	"reservo/pkg/contracts"
	"reservo/pkg/kafka"
	kafka_config "reservo/pkg/kafka/config"
	kafkamiddleware "reservo/pkg/kafka/middleware"
)

const ServiceName = "reservo"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	producer := initProducer(cfg)
	if producer != nil {
		defer func() {
			if err := producer.Close(); err != nil {
				cfg.Log.Error("Failed to close Kafka producer", "error", err)
			}
		}()
	}

	tokens := authservice.NewTokenService(cfg)
	handlers := initHandlers(cfg, tokens, producer)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(tokens, handlers...)
	serverApp.Run()
}

func initHandlers(cfg *config.Config, tokens *authservice.TokenService, producer *kafka.Producer) []contracts.Handler {
	userValidator := uservalidator.NewUserValidator(cfg.Log)
	userRepo := userrepository.NewMongoUserRepository(cfg)
	userService := userservice.NewUserService(userRepo, userValidator, cfg)

	authService := authservice.NewAuthService(userRepo, tokens, userValidator, cfg)

	facilityValidator := facilityvalidator.NewFacilityValidator(cfg.Log)
	facilityRepo := facilityrepository.NewMongoFacilityRepository(cfg)
	facilityService := facilityservice.NewFacilityService(facilityRepo, facilityValidator, cfg)

	reservationValidator := reservationvalidator.NewReservationValidator(cfg.Log)
	reservationRepo := reservationrepository.NewMongoReservationRepository(cfg)
	lockRepo := reservationrepository.NewSlotLockRepository(cfg)

	var publisher reservationservice.EventPublisher
	if producer != nil {
		publisher = producer
	}

	reservationService := reservationservice.NewReservationService(
		reservationRepo,
		lockRepo,
		facilityRepo,
		userRepo,
		reservationValidator,
		publisher,
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	return []contracts.Handler{
		authhandler.NewAuthHandler(authService, cfg.Log),
		userhandler.NewUserHandler(userService, cfg.Log),
		facilityhandler.NewFacilityHandler(facilityService, cfg.Log),
		reservationhandler.NewReservationHandler(reservationService, cfg.Log),
	}
}

// initProducer builds the reservation event producer. The server still runs
// without Kafka: event publishing is best-effort and disabled when the
// producer cannot be created.
func initProducer(cfg *config.Config) *kafka.Producer {
	kafkaCfg := kafka_config.Load()
	if err := kafkaCfg.Validate(); err != nil {
		cfg.Log.Warn("Kafka configuration invalid, event publishing disabled", "error", err)
		return nil
	}

	producer, err := kafka.NewProducer(kafkaCfg, cfg.ReservationEventsTopic, cfg.ReservationEventsDLQ)
	if err != nil {
		cfg.Log.Warn("Failed to create Kafka producer, event publishing disabled", "error", err)
		return nil
	}

	producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(kafkamiddleware.MetricsProducerMiddleware())

	cfg.Log.Info("Kafka producer initialized", "topic", cfg.ReservationEventsTopic)
	return producer
}
