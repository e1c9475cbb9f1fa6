package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	capi "github.com/hashicorp/consul/api"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"google.golang.org/grpc"

	"github.com/quangdng/task-tracker-api/services/auth-service/internal/config"
	"github.com/quangdng/task-tracker-api/services/auth-service/internal/handler"
	"github.com/quangdng/task-tracker-api/services/auth-service/internal/registry"
	"github.com/quangdng/task-tracker-api/services/auth-service/internal/repository"
	"github.com/quangdng/task-tracker-api/services/auth-service/internal/usecase"
	"github.com/quangdng/task-tracker-api/shared/auth"
	"github.com/quangdng/task-tracker-api/shared/mailer"
	"github.com/quangdng/task-tracker-api/shared/provider"
	"github.com/quangdng/task-tracker-api/shared/utilities"
	"github.com/quangdng/task-tracker-api/shared/validation"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "auth-service").Logger()

	cfg := config.NewAuthServiceConfig(&logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect from mongodb")
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping mongodb")
	}

	db := client.Database(cfg.MongoDatabase)
	userRepo := repository.NewUserMongoRepository(ctx, &logger, db)

	var resetRegistry registry.ResetTokenRegistry
	switch cfg.ResetStore {
	case "mongo":
		resetRegistry = registry.NewMongoRegistry(ctx, &logger, db, cfg.Token.ResetTokenTTL)
	default:
		memoryRegistry := registry.NewMemoryRegistry(cfg.Token.ResetTokenTTL, cfg.Token.ResetSweepInterval)
		defer memoryRegistry.Close()
		resetRegistry = memoryRegistry
	}

	jwtAuth := auth.NewJWTAuthenticator(cfg.Token.SessionSecret, cfg.Token.Audience, cfg.Token.Issuer)
	codec := auth.NewSessionCodec(jwtAuth)
	googleVerifier := provider.NewGoogleOAuthProvider(cfg.GoogleClientID)
	smtpMailer := mailer.NewMailer(&logger)

	authUsecase := usecase.NewAuthUsecase(userRepo, codec, googleVerifier)
	resetUsecase := usecase.NewPasswordResetUsecase(userRepo, resetRegistry, smtpMailer)

	authHandler := handler.NewAuthHTTPHandler(authUsecase, resetUsecase, validation.New(), &logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort),
		Handler:           authHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	utilities.RegisterHealthServer(grpcServer)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.GRPCPort))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to listen on grpc port")
	}

	go func() {
		logger.Info().Int("port", cfg.GRPCPort).Msg("grpc health server listening")
		if err := grpcServer.Serve(grpcListener); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	go func() {
		logger.Info().Int("port", cfg.HTTPPort).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	if cfg.ConsulAddress != "" {
		consulConfig := capi.DefaultConfig()
		consulConfig.Address = cfg.ConsulAddress

		consulClient, err := capi.NewClient(consulConfig)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create consul client")
		}

		serviceID := cfg.AppName + "-" + uuid.NewString()
		if err := utilities.RegisterConsulService(consulClient, serviceID, cfg.AppName, cfg.HTTPHost, cfg.GRPCPort); err != nil {
			logger.Fatal().Err(err).Msg("failed to register with consul")
		}
		defer func() {
			if err := utilities.DeregisterConsulService(consulClient, serviceID); err != nil {
				logger.Error().Err(err).Msg("failed to deregister from consul")
			}
		}()

		logger.Info().Str("service_id", serviceID).Msg("registered with consul")
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shut down http server")
	}
	grpcServer.GracefulStop()
}
