package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/nvoronin/ledger-service/internal/config"
	"github.com/nvoronin/ledger-service/internal/handler"
	"github.com/nvoronin/ledger-service/internal/middleware"
	"github.com/nvoronin/ledger-service/internal/models"
	"github.com/nvoronin/ledger-service/internal/outbox"
	"github.com/nvoronin/ledger-service/internal/repository/postgres"
	"github.com/nvoronin/ledger-service/internal/service"
	"github.com/nvoronin/ledger-service/internal/utils/email"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	_ = godotenv.Load()
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	if err := postgres.Migrate(db); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize layers
	store := postgres.New(db)
	svc := service.NewService(store, logger, cfg)

	var notifier service.Notifier
	if cfg.SMTPHost != "" {
		notifier = email.NewSender(cfg, store, logger)
	}
	engine := service.NewEngine(store, logger, cfg.TransactionsTopic, notifier)

	if err := svc.EnsureSystemUser(ctx); err != nil {
		logger.Fatalf("Failed to ensure system user: %v", err)
	}

	janitor := service.NewJanitor(store, logger, cfg.IdempotencyTTL)
	if err := janitor.Start(); err != nil {
		logger.Fatalf("Failed to start janitor: %v", err)
	}
	defer janitor.Stop()

	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		writer := &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  3,
		}
		defer writer.Close()
		processor := outbox.NewProcessor(store, writer, cfg.OutboxPollInterval, logger)
		go processor.Run(ctx)
	} else {
		logger.Warn("KAFKA_BROKERS not set, outbox publishing disabled")
	}

	h := handler.NewHandler(svc, engine, logger)

	// Setup router
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "Ledger Service is up and running")
	}).Methods("GET")
	// Public routes
	r.HandleFunc("/api/auth/register", h.Register).Methods("POST")
	r.HandleFunc("/api/auth/login", h.Login).Methods("POST")
	// Protected routes
	authRouter := r.PathPrefix("/api").Subrouter()
	authRouter.Use(middleware.Authenticate(cfg, logger))
	authRouter.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	authRouter.HandleFunc("/accounts/{accountId}", h.GetAccount).Methods("GET")
	authRouter.HandleFunc("/transactions", h.CreateTransaction).Methods("POST")
	// System-only routes
	systemRouter := authRouter.PathPrefix("/transactions/system").Subrouter()
	systemRouter.Use(middleware.RequireRole(models.RoleSystem))
	systemRouter.HandleFunc("/initial-funds", h.CreateInitialFunds).Methods("POST")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
}
