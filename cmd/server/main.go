package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/writer/backend/internal/handlers"
	"github.com/anonto42/writer/backend/internal/middleware"
	"github.com/anonto42/writer/backend/internal/repositories"
	"github.com/anonto42/writer/backend/internal/router"
	"github.com/anonto42/writer/backend/internal/services"
	"github.com/anonto42/writer/backend/pkg/config"
	"github.com/anonto42/writer/backend/pkg/firebase"
	"github.com/anonto42/writer/backend/pkg/logger"
	"github.com/anonto42/writer/backend/pkg/mailer"
	"github.com/anonto42/writer/backend/pkg/metrics"
	"github.com/anonto42/writer/backend/pkg/oauth"
	"github.com/anonto42/writer/backend/pkg/storage"
	"github.com/anonto42/writer/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log := logger.New(cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := config.InitDB(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.CloseDB()

	if err := repositories.AutoMigrate(db.Postgres); err != nil {
		log.WithError(err).Fatal("Failed to auto migrate models")
	}
	log.Info("PostgreSQL auto-migrations completed for all models.")

	sqlDB, err := db.Postgres.DB()
	if err != nil {
		log.WithError(err).Fatal("Failed to get SQL DB from GORM")
	}

	ctx := context.Background()

	// Firebase is optional: it backs ID-token login and, with a bucket, image storage.
	var (
		images   storage.ImageStore
		verifier handlers.IDTokenVerifier
		google   handlers.OAuthProvider
	)
	uploadDir := cfg.UploadDir
	if cfg.FirebaseCredentialsPath != "" {
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseStorageBucket)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize Firebase")
		}
		verifier = app.AuthClient
		if app.Bucket != nil {
			images = storage.NewBucketStore(app.Bucket, app.BucketName)
			uploadDir = ""
			log.WithField("bucket", app.BucketName).Info("Uploads go to Firebase Storage")
		}
	}
	if images == nil {
		images = storage.NewLocalStore(uploadDir, cfg.PublicBaseURL)
		log.WithField("dir", uploadDir).Info("Uploads go to the local directory")
	}
	if cfg.OAuthEnabled() {
		google = oauth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	}

	m := metrics.New()
	store := repositories.NewStore(db.Postgres)
	mail := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
	if !mail.Enabled() {
		log.Warn("SMTP_HOST not set, verification emails will not be sent")
	}

	identity := services.NewIdentityService(store, services.NewTokenIssuer(cfg.JWTSecret), mail, images, m, log, cfg.PublicBaseURL)
	deps := &router.Deps{
		Identity:   identity,
		Feed:       services.NewFeedService(store),
		Graph:      services.NewGraphService(store, m),
		Engagement: services.NewEngagementService(store, m),
		Posts:      services.NewPostService(store, images),
		Messaging: services.NewMessagingService(store, images, m, services.MessagingConfig{
			AllowSharedOnly: cfg.AllowSharedOnlyMessages,
			TopChatLimit:    cfg.TopChatLimit,
		}),
		Notifications: services.NewNotificationService(store),
		Sessions:      middleware.NewSessions(cfg.SessionSecret, cfg.IsProduction(), log),
		Google:        google,
		Firebase:      verifier,
		Metrics:       m,
		DB:            sqlDB,
		UploadDir:     uploadDir,
		SecureCookie:  cfg.IsProduction(),
		Log:           log,
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = handlers.NewHTTPErrorHandler(log)

	router.SetupMiddleware(e, deps)
	router.SetupRoutes(e, deps)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.MetricsPort).Info("Metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server stopped")
		}
	}()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	go func() {
		log.WithField("port", cfg.Port).Info("Server listening")
		if err := e.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Metrics server shutdown failed")
	}
}
