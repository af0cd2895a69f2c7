package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/qcom/otpauth/internal/config"
	"github.com/qcom/otpauth/internal/handlers"
	"github.com/qcom/otpauth/internal/middleware"
	"github.com/qcom/otpauth/internal/repository"
	"github.com/qcom/otpauth/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("level", cfg.Log.Level).Warn("Unknown log level, using info")
	}

	ctx := context.Background()

	db, err := repository.NewPostgresDB(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer db.Close()

	if err := repository.Migrate(db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	otpStore, closeStore, err := initOTPStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize OTP store")
	}
	defer closeStore()

	users, err := initUserDirectory(ctx, cfg, db, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize user directory")
	}

	keys, err := service.NewTokenKeys(&cfg.JWT)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize token keys")
	}

	var generator service.CodeGenerator = service.RandomCodeGenerator{Length: cfg.OTP.Length}
	if cfg.OTP.FixedCode != "" {
		logger.Warn("OTP_FIXED_CODE is set, every login uses the same code")
		generator = service.FixedCodeGenerator{Code: cfg.OTP.FixedCode}
	}

	otpService := service.NewOTPService(otpStore, generator, service.NewLogSender(logger), &cfg.OTP, logger)
	authService := service.NewAuthService(
		otpService,
		service.NewTokenIssuer(keys, &cfg.JWT, logger),
		service.NewTokenVerifier(keys, &cfg.JWT),
		users,
		logger,
	)
	productService := service.NewProductService(repository.NewProductRepository(db, logger), logger)

	router := handlers.NewRouter(
		handlers.NewAuthHandlers(authService, cfg.Cookie.Secure, logger),
		handlers.NewProductHandlers(productService, logger),
		middleware.NewAuthMiddleware(authService, logger),
		cfg.CORS.AllowedOrigins,
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func initOTPStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (service.OTPStore, func(), error) {
	if cfg.OTP.Store == "memory" {
		logger.Warn("Using in-memory OTP store, codes are lost on restart")
		return repository.NewMemoryOTPStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Endpoint,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.WithField("endpoint", cfg.Redis.Endpoint).Info("Redis client initialized")
	return repository.NewRedisOTPStore(client, logger), func() { client.Close() }, nil
}

func initUserDirectory(ctx context.Context, cfg *config.Config, db *sql.DB, logger *logrus.Logger) (service.UserDirectory, error) {
	if cfg.UserDirectory == "postgres" {
		logger.Info("Using Postgres user directory")
		return repository.NewPostgresUserRepository(db, logger), nil
	}

	client, err := initDynamoDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return repository.NewUserRepository(client, cfg.DynamoDB.TableName, logger), nil
}

func initDynamoDB(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*dynamodb.Client, error) {
	var awsCfg aws.Config
	var err error

	if cfg.DynamoDB.Endpoint != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.DynamoDB.Region),
			awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:           cfg.DynamoDB.Endpoint,
						SigningRegion: cfg.DynamoDB.Region,
					}, nil
				})),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.DynamoDB.Region))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg)
	logger.Info("DynamoDB client initialized")
	return client, nil
}
