package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"database/sql"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/ledger-engine/internal/config"
	"github.com/Dan9191/ledger-engine/internal/handler"
	"github.com/Dan9191/ledger-engine/internal/integrations/bcb"
	"github.com/Dan9191/ledger-engine/internal/middleware"
	"github.com/Dan9191/ledger-engine/internal/repository"
	"github.com/Dan9191/ledger-engine/internal/service"
	"github.com/Dan9191/ledger-engine/internal/utils/email"
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

	// Load configuration (.env first if present)
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

	// Initialize layers
	repo := repository.NewRepository(db)
	alerts := email.NewSender(cfg, logger)
	svc := service.NewService(repo, logger, cfg, alerts)
	h := handler.NewHandler(svc)

	// Refresh the pricing base rate from the reference feed; keep the
	// configured default when the feed is unreachable.
	bcbClient := bcb.NewBCBClient(cfg, logger)
	if rate, err := bcbClient.GetMonthlyRate(); err != nil {
		logger.Warnf("Reference rate unavailable, keeping base rate %s%%: %v", cfg.BaseRate, err)
	} else {
		svc.SetBaseRate(decimal.NewFromFloat(rate))
	}

	// Nightly ledger audit
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.AuditSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := svc.RunLedgerAudit(ctx); err != nil {
			logger.Errorf("Ledger audit failed: %v", err)
		}
	}); err != nil {
		logger.Fatalf("Failed to schedule ledger audit: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	// Public routes (auth itself lives in the external identity service)
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/accounts/me", h.GetAccount).Methods("GET")
	authRouter.HandleFunc("/dashboard", h.GetDashboard).Methods("GET")
	authRouter.HandleFunc("/transactions/statement", h.GetStatement).Methods("GET")
	authRouter.HandleFunc("/transactions/deposit", h.Deposit).Methods("POST")
	authRouter.HandleFunc("/transactions/withdraw", h.Withdraw).Methods("POST")
	authRouter.HandleFunc("/transactions/transfer", h.Transfer).Methods("POST")
	authRouter.HandleFunc("/loans/quote", h.QuoteLoan).Methods("POST")
	authRouter.HandleFunc("/loans/request", h.RequestLoan).Methods("POST")
	authRouter.HandleFunc("/loans/list", h.ListLoans).Methods("GET")
	authRouter.HandleFunc("/cards/me", h.GetCard).Methods("GET")
	authRouter.HandleFunc("/cards/request", h.RequestCard).Methods("POST")
	authRouter.HandleFunc("/cards/block", h.ToggleCard).Methods("POST")
	authRouter.HandleFunc("/cards/cvv", h.RevealCVV).Methods("GET")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
