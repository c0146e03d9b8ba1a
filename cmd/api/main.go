package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/assoclab/membership-billing/internal/config"
	"github.com/assoclab/membership-billing/internal/handler"
	"github.com/assoclab/membership-billing/internal/integrations/ledger"
	"github.com/assoclab/membership-billing/internal/middleware"
	"github.com/assoclab/membership-billing/internal/repository"
	"github.com/assoclab/membership-billing/internal/service"
	"github.com/assoclab/membership-billing/internal/utils/email"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
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
	ledgerClient := ledger.NewClient(cfg, logger)
	sender := email.NewSender(cfg, logger)
	svc := service.NewService(repo, ledgerClient, sender, logger, cfg)
	h := handler.NewHandler(svc)

	// Schedule the daily overdue sweep
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, func() {
		count, err := svc.RunOverdueSweep(time.Now())
		if err != nil {
			logger.Errorf("Overdue sweep failed: %v", err)
			return
		}
		logger.Infof("Scheduled overdue sweep marked %d installments", count)
	}); err != nil {
		logger.Fatalf("Failed to schedule overdue sweep: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/plans", h.CreatePlan).Methods("POST")
	authRouter.HandleFunc("/plans/request", h.RequestPlan).Methods("POST")
	authRouter.HandleFunc("/plans/preview", h.PreviewPlan).Methods("POST")
	authRouter.HandleFunc("/plans/{id}", h.GetPlanSummary).Methods("GET")
	authRouter.HandleFunc("/plans/{id}/submit", h.Submit).Methods("POST")
	authRouter.HandleFunc("/plans/{id}/request-approval", h.RequestApproval).Methods("POST")
	authRouter.HandleFunc("/plans/{id}/approve", h.Approve).Methods("POST")
	authRouter.HandleFunc("/plans/{id}/reject", h.Reject).Methods("POST")
	authRouter.HandleFunc("/plans/{id}/cancel", h.Cancel).Methods("POST")
	authRouter.HandleFunc("/plans/{id}/payments", h.ApplyPayment).Methods("POST")
	authRouter.HandleFunc("/members/{id}/plans", h.ListMemberPlans).Methods("GET")
	authRouter.HandleFunc("/sweeps/overdue", h.RunOverdueSweep).Methods("POST")

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
