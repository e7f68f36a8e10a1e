// cmd/api/main.go
// Main entry point for the application
// This file bootstraps all components and starts the server

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/formhive/formhive-backend/internal/auth"
	"github.com/formhive/formhive-backend/internal/common/database"
	"github.com/formhive/formhive-backend/internal/config"
	"github.com/formhive/formhive-backend/internal/dispatch"
	"github.com/formhive/formhive-backend/internal/events"
	"github.com/formhive/formhive-backend/internal/forms"
	"github.com/formhive/formhive-backend/internal/notification"
	"github.com/formhive/formhive-backend/internal/security"
	"github.com/formhive/formhive-backend/internal/submission"
)

// renderTokenTTL bounds how long a fetched form stays submittable
const renderTokenTTL = 2 * time.Hour

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("========================================")
	log.Println("🚀 Starting Formhive API")
	log.Println("========================================")

	// 1. Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found (%v), using environment variables", err)
	}

	// 2. Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Configuration validation failed: ", err)
	}
	log.Println("✅ Configuration loaded")

	// 3. Connect to PostgreSQL
	db, err := database.NewPostgresDBFromURL(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("❌ Failed to connect to PostgreSQL: ", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("❌ Failed to ping PostgreSQL: ", err)
	}
	log.Println("✅ Connected to PostgreSQL")

	// 4. Connect to Redis. Required: the rate limiter, the form cache and
	// the integration queue all live there.
	redisClient, err := database.NewRedisClientFromURL(cfg.RedisURL)
	if err != nil {
		log.Fatal("❌ Failed to connect to Redis: ", err)
	}
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("❌ Failed to ping Redis: ", err)
	}
	log.Println("✅ Connected to Redis")

	// 5. Run database migrations
	if err := runMigrations(db); err != nil {
		log.Fatal("❌ Failed to run migrations: ", err)
	}
	log.Println("✅ Database migrations completed")

	sqlxDB := sqlx.NewDb(db, "postgres")

	// 6. Security building blocks
	secrets := security.NewSecrets(cfg.AppSecret)
	tokens := security.NewTokenService(cfg.AppSecret, renderTokenTTL)
	honeypot := submission.NewHoneypot(cfg.AppSecret)
	captcha := security.NewCaptchaService()
	limiter := security.NewRateLimiter(security.NewRedisCounter(redisClient))
	ips := security.NewIPHandler(cfg.TrustProxy)
	endpoints := security.NewEndpointValidator()

	// 7. Forms module
	formsRepo := forms.NewPostgresRepository(sqlxDB)
	formsService := forms.NewService(formsRepo, redisClient, secrets)
	formsHandler := forms.NewHandler(formsService, tokens, honeypot)
	log.Println("✅ Forms module initialized")

	// 8. Upload storage
	var uploadService submission.UploadService
	if cfg.UseS3 {
		uploadService, err = submission.NewS3UploadService(cfg.S3Bucket, cfg.AWSRegion)
		if err != nil {
			log.Printf("⚠️  Failed to init S3, using local storage: %v", err)
			uploadService = submission.NewLocalUploadService(cfg.LocalUploadDir, cfg.BaseURL+"/uploads")
		} else {
			log.Println("   ✅ Using S3 for uploads")
		}
	} else {
		uploadService = submission.NewLocalUploadService(cfg.LocalUploadDir, cfg.BaseURL+"/uploads")
		log.Println("   ✅ Using local storage for uploads")
	}

	// 9. Notification email
	var emailSender notification.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		emailSender, err = notification.NewSendGridEmailSender(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailFromName)
		if err != nil {
			log.Fatal("❌ Failed to init SendGrid: ", err)
		}
		log.Println("   ✅ Using SendGrid for emails")
	case "smtp":
		emailSender, err = notification.NewSMTPEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFrom, cfg.EmailFromName)
		if err != nil {
			log.Fatal("❌ Failed to init SMTP: ", err)
		}
		log.Println("   ✅ Using SMTP for emails")
	default:
		emailSender = notification.NewMockEmailSender()
		log.Println("   ⚠️  Using mock email sender (development mode)")
	}
	notificationService := notification.NewService(emailSender)

	// 10. Integration dispatchers and queue
	hooks := submission.NewHooks()

	registry := dispatch.NewRegistry()

	webhookDispatcher := dispatch.NewWebhookDispatcher(endpoints, secrets)
	registry.Register(dispatch.IntegrationWebhook, webhookDispatcher)

	registry.Register(dispatch.IntegrationGoogleSheets, dispatch.NewSheetsDispatcher(secrets))

	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		smsDispatcher, err := dispatch.NewSMSDispatcher(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
		if err != nil {
			log.Printf("⚠️  Twilio init failed, sms integration disabled: %v", err)
		} else {
			registry.Register(dispatch.IntegrationSMS, smsDispatcher)
			log.Println("   ✅ Twilio sms integration enabled")
		}
	}

	queue := dispatch.NewQueue(dispatch.NewRedisStore(redisClient))
	log.Println("✅ Integrations initialized")

	// 11. Live events hub for admin dashboards
	eventsHub := events.NewHub()
	go eventsHub.Run()
	eventsHandler := events.NewHandler(eventsHub, cfg.AdminToken)

	hooks.AfterSubmission = append(hooks.AfterSubmission, func(form *forms.Form, result *submission.Result) {
		eventsHub.Publish(events.SubmissionEvent{
			FormID:      form.ID,
			FormTitle:   form.Title,
			UUID:        result.UUID,
			SubmittedAt: time.Now(),
		})
	})
	webhookDispatcher.OnFailure = func(form *forms.Form, url string, err error) {
		hooks.FireWebhookFailure(form, url, err)
	}
	log.Println("✅ Events hub started")

	// 12. Submission pipeline
	submissionRepo := submission.NewPostgresRepository(sqlxDB)
	submissionService := submission.NewService(
		formsService,
		submissionRepo,
		tokens,
		honeypot,
		captcha,
		limiter,
		secrets,
		ips,
		uploadService,
		notificationService,
		registry,
		queue,
		hooks,
		submission.Options{
			MinSubmissionTime: cfg.MinSubmissionTime,
			MaxRequests:       cfg.MaxRequests,
			PerSeconds:        cfg.PerSeconds,
			MaxImageDimension: cfg.MaxImageDimension,
			QueueBatchSize:    cfg.QueueBatchSize,
		},
	)
	submissionHandler := submission.NewHandler(submissionService, ips)
	log.Println("✅ Submission pipeline initialized")

	// 13. Routes
	router := mux.NewRouter()

	if !cfg.UseS3 {
		router.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/",
				http.FileServer(http.Dir(cfg.LocalUploadDir))))
	}

	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	adminMiddleware := auth.NewMiddleware(cfg.AdminToken)

	// Submission routes first: /forms/{id}/submissions must win over the
	// /forms/{id} render route.
	submission.RegisterRoutes(router, submissionHandler, adminMiddleware)
	forms.RegisterRoutes(router, formsHandler, adminMiddleware)
	events.RegisterRoutes(router, eventsHandler)

	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)
	log.Println("✅ Routes registered")

	// 14. Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Println("========================================")
		log.Printf("🚀 Server listening on http://localhost%s", srv.Addr)
		log.Printf("🌍 Environment: %s", cfg.Environment)
		log.Println("========================================")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Failed to start server: ", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("⚠️  Shutdown signal received...")

	eventsHub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("❌ Server forced to shutdown: ", err)
	}

	log.Println("✅ Server exited cleanly")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","time":"%s"}`, time.Now().Format(time.RFC3339))
}

// loggingMiddleware logs all requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.RequestURI, time.Since(start))
	})
}

// corsMiddleware handles CORS. The public endpoints are meant to be called
// from arbitrary sites, so the policy is wide open.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// runMigrations creates the schema if it does not exist
func runMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS forms (
			id BIGSERIAL PRIMARY KEY,
			title VARCHAR(200) NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			config JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS submissions (
			id BIGSERIAL PRIMARY KEY,
			form_id BIGINT NOT NULL REFERENCES forms(id) ON DELETE CASCADE,
			uuid VARCHAR(36) NOT NULL UNIQUE,
			data JSONB NOT NULL DEFAULT '{}',
			ip_address VARCHAR(64) NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_form_id ON submissions(form_id)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_created_at ON submissions(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
