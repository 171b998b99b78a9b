package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/doctorry/platform/internal/accounts"
	"github.com/doctorry/platform/internal/adapters/his"
	appointmentapi "github.com/doctorry/platform/internal/appointment/api"
	appointmentinfra "github.com/doctorry/platform/internal/appointment/infrastructure"
	"github.com/doctorry/platform/internal/audit"
	"github.com/doctorry/platform/internal/chatbot"
	"github.com/doctorry/platform/internal/doctor"
	"github.com/doctorry/platform/internal/notification"
	"github.com/doctorry/platform/internal/patient"
	"github.com/doctorry/platform/internal/shared/auth"
	"github.com/doctorry/platform/internal/shared/config"
	"github.com/doctorry/platform/internal/shared/database"
	"github.com/doctorry/platform/internal/shared/events"
	"github.com/doctorry/platform/internal/shared/metrics"
	secmiddleware "github.com/doctorry/platform/internal/shared/middleware"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    events.EventBus
}

func main() {
	ctx := context.Background()

	// Local overrides; missing file is fine
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg, Bus: events.NoopBus{}}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	app.DB = db
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	// Event bus (optional - the platform degrades to direct calls without it)
	if cfg.EventStore.Enabled {
		bus, err := events.NewBus(ctx, cfg.EventStore)
		if err != nil {
			fmt.Printf("Warning: EventStoreDB not available: %v\n", err)
			fmt.Println("Running without event streaming...")
		} else {
			app.Bus = bus
			defer bus.Close()
			fmt.Println("EventStoreDB event bus initialized")
		}
	}

	// Repositories
	doctorRepo := doctor.NewRepository(db.Pool)
	patientRepo := patient.NewRepository(db.Pool)
	appointmentRepo := appointmentinfra.NewPostgresRepository(db.Pool)

	// Notification pipeline
	var notifService *notification.Service
	var subscriptionStore *notification.SubscriptionStore
	if cfg.Notifications.Enabled {
		subscriptionStore = notification.NewSubscriptionStore(db.Pool)
		notifService = notification.NewService(
			notification.NewLogPushProvider(),
			notification.NewMockSMSProvider(),
			notification.NewMockEmailProvider(),
			subscriptionStore,
			notification.ServiceConfig{
				Workers:       cfg.Notifications.Workers,
				BufferSize:    cfg.Notifications.BufferSize,
				RetryAttempts: notification.DefaultServiceConfig().RetryAttempts,
				RetryDelay:    notification.DefaultServiceConfig().RetryDelay,
			},
		)
		if err := notifService.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start notification service: %v\n", err)
			os.Exit(1)
		}
		defer notifService.Stop()

		notifSubscriber := notification.NewSubscriber(app.Bus, notifService)
		if err := notifSubscriber.Start(ctx); err != nil {
			fmt.Printf("Warning: notification subscriber failed to start: %v\n", err)
		}

		reminder := notification.NewReminder(appointmentRepo, notifService, cfg.Notifications.ReminderCron)
		if err := reminder.Start(); err != nil {
			fmt.Printf("Warning: reminder job failed to start: %v\n", err)
		} else {
			defer reminder.Stop()
		}
	}

	// Audit log
	auditRepo := audit.NewRepository(db.Pool)
	if err := auditRepo.Initialize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "audit initialization failed: %v\n", err)
		os.Exit(1)
	}
	auditSubscriber := audit.NewSubscriber(auditRepo, app.Bus)
	if err := auditSubscriber.Start(ctx); err != nil {
		fmt.Printf("Warning: audit subscriber failed to start: %v\n", err)
	}

	// Partner hospital roster import
	if cfg.HISSync.Enabled {
		adapter := his.New(his.Config{
			Host:         cfg.HISSync.Host,
			Port:         cfg.HISSync.Port,
			User:         cfg.HISSync.User,
			Password:     cfg.HISSync.Password,
			Database:     cfg.HISSync.Database,
			SSLMode:      cfg.HISSync.SSLMode,
			PollInterval: cfg.HISSync.PollInterval,
			DoctorTable:  cfg.HISSync.DoctorTable,
			SourceCode:   cfg.HISSync.SourceCode,
		}, doctorRepo)
		if err := adapter.Start(ctx); err != nil {
			fmt.Printf("Warning: roster import adapter failed to start: %v\n", err)
		} else {
			fmt.Printf("Roster import enabled (source: %s)\n", cfg.HISSync.SourceCode)
			defer adapter.Stop(context.Background())
		}
	}

	rateLimiter := secmiddleware.NewIPRateLimiter(100, 200)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.CORS(secmiddleware.DefaultCORSConfig()))
	r.Use(secmiddleware.MaxBodySize(1 << 20))
	r.Use(rateLimiter.Middleware)
	r.Use(metrics.Middleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", infoHandler)

	// Registration and login (unauthenticated)
	accountsHandler := accounts.NewHandler(cfg.Auth, patientRepo, doctorRepo, app.Bus)
	r.Mount("/api/auth", accountsHandler.Routes())

	// Authenticated API
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth))

		appointmentHandler := appointmentapi.NewHandler(appointmentRepo, doctorRepo, patientRepo, app.Bus)
		r.Mount("/appointments", appointmentHandler.Routes())

		doctorHandler := doctor.NewHandler(doctorRepo, app.Bus)
		r.Mount("/doctors", doctorHandler.Routes())

		patientHandler := patient.NewHandler(patientRepo)
		r.Mount("/patients", patientHandler.Routes())

		if subscriptionStore != nil {
			notifHandler := notification.NewHandler(subscriptionStore)
			r.Mount("/notifications", notifHandler.Routes())
		}

		auditHandler := audit.NewHandler(auditRepo)
		r.Mount("/audit", auditHandler.Routes())

		if cfg.Chatbot.Enabled {
			chatbotHandler := chatbot.NewHandler(chatbot.NewClient(cfg.Chatbot))
			r.Mount("/chatbot", chatbotHandler.Routes())
			fmt.Printf("Chatbot enabled (model: %s)\n", cfg.Chatbot.Model)
		}
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("Doctorry Telemedicine Platform")
	fmt.Println("============================================")
	fmt.Printf("Environment:  %s\n", cfg.Server.Env)
	fmt.Printf("Server:       http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:          http://localhost:%d/api\n", cfg.Server.Port)
	fmt.Printf("Health:       http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Doctorry Telemedicine Platform",
		"version": "0.1.0",
		"docs":    "/api",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if err := app.DB.Health(r.Context()); err != nil {
			checks["database"] = "not ready: " + err.Error()
		} else {
			checks["database"] = "ready"
		}

		if _, ok := app.Bus.(events.NoopBus); ok {
			checks["eventstore"] = "not configured"
		} else if err := app.Bus.Health(); err != nil {
			checks["eventstore"] = "not ready: " + err.Error()
		} else {
			checks["eventstore"] = "ready"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
