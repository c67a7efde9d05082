package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"

	"jobmarket/internal/adapter/api"
	"jobmarket/internal/adapter/api/handler"
	apimiddleware "jobmarket/internal/adapter/api/middleware"
	"jobmarket/internal/adapter/api/router"
	"jobmarket/internal/adapter/repository"
	"jobmarket/internal/infrastructure/backend"
	"jobmarket/internal/infrastructure/ratelimit"
	"jobmarket/internal/infrastructure/websocket"
	"jobmarket/internal/usecase"
	"jobmarket/pkg/config"
	apperrors "jobmarket/pkg/errors"
	"jobmarket/pkg/logger"
	"jobmarket/pkg/response"
)

func main() {
	var envFile string
	var port string

	flagSet := pflag.NewFlagSet("jobmarket", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", "", "env file loaded before .env")
	flagSet.StringVar(&port, "port", "", "listen port (overrides SERVER_PORT)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintf(os.Stderr, "Usage: jobmarket [flags]\n\n%s", flagSet.FlagUsages())
		return
	}

	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		logger.Default().Fatalf("Failed to load configuration: %v", err)
	}
	if port != "" {
		cfg.ServerPort = port
	}
	logger.Init(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	credentialRepo := repository.NewFileCredentialRepository(cfg.CredentialPath)

	client, err := backend.NewClient(backend.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.RequestTimeout,
	})
	if err != nil {
		logger.Default().Fatalf("Failed to create backend client: %v", err)
	}

	authUseCase := usecase.NewAuthUseCase(client, credentialRepo)
	sessionGuard := usecase.NewSessionGuard(client, authUseCase)
	userUseCase := usecase.NewUserUseCase(sessionGuard, authUseCase)
	conversationUseCase := usecase.NewConversationUseCase(sessionGuard)
	chatUseCase := usecase.NewChatUseCase(sessionGuard, userUseCase, conversationUseCase)
	notificationUseCase := usecase.NewNotificationUseCase(sessionGuard, authUseCase, usecase.NotificationOptions{
		PollInterval:     cfg.PollInterval,
		RollbackMarkRead: cfg.RollbackMarkRead,
	})
	listingUseCase := usecase.NewListingUseCase(sessionGuard, notificationUseCase, chatUseCase)

	startSession(ctx, cfg, authUseCase, userUseCase)

	hub := websocket.NewHub()
	hub.Start(ctx)

	// Start the notification pollers
	go func() {
		if err := notificationUseCase.Run(ctx); err != nil {
			logger.Error("Notification feed stopped: %v", err)
		}
	}()

	limiter := ratelimit.NewRateLimiter(nil)
	limiter.StartCleanupRoutine(ctx)

	handler.Setup(authUseCase, userUseCase, notificationUseCase, listingUseCase, chatUseCase, hub)

	e := echo.New()
	e.HideBanner = true
	e.Logger = logger.Default()

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = response.ErrorHandler

	sessionMiddleware := apimiddleware.NewSessionMiddleware(authUseCase, userUseCase)
	router.Setup(e, sessionMiddleware, limiter)

	go func() {
		logger.Info("Starting server on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Default().Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	chatUseCase.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed: %v", err)
	}
}

// startSession restores the stored credential or, failing that, logs in
// with the configured account. A missing session is not fatal: the API
// accepts a login later.
func startSession(ctx context.Context, cfg *config.Config, authUseCase *usecase.AuthUseCase, userUseCase *usecase.UserUseCase) {
	restored, err := authUseCase.Restore(ctx)
	if err != nil {
		logger.Warn("Could not restore session: %v", err)
	}

	if !restored && cfg.LoginEmail != "" {
		if err := authUseCase.Login(ctx, cfg.LoginEmail, cfg.LoginPassword); err != nil {
			logger.Warn("Login as %s failed: %v", cfg.LoginEmail, err)
			return
		}
	}

	if !authUseCase.Authenticated() {
		logger.Info("No session, waiting for POST /v1/session/login")
		return
	}

	profile, err := userUseCase.LoadProfile(ctx)
	switch {
	case apperrors.Is(err, apperrors.CodeSessionExpired):
		logger.Warn("Stored session has expired, log in again")
	case err != nil:
		logger.Warn("Could not load profile: %v", err)
	default:
		logger.Info("Signed in as %s", profile.Username)
	}
}
