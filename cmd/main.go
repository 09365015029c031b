package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"loanservice/internal/breaker"
	"loanservice/internal/clients"
	"loanservice/internal/config"
	"loanservice/internal/handlers"
	"loanservice/internal/logger"
	"loanservice/internal/models"
	"loanservice/internal/repositories"
	"loanservice/internal/services"
)

func main() {
	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal("failed to load configuration", "error", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect database", "error", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("failed to get generic DB", "error", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.Loan{}); err != nil {
		log.Fatal("failed to migrate loan schema", "error", err)
	}

	// One failure isolator per remote capability. Independent instances so a
	// slow Book dependency never blocks User calls.
	breakerSettings := breaker.Settings{
		Timeout:                  cfg.BreakerTimeout,
		ErrorThresholdPercentage: cfg.BreakerErrorThreshold,
		ResetTimeout:             cfg.BreakerResetTimeout,
	}
	userFetchBreaker := breaker.New("user-service.fetch-user", breakerSettings, log)
	bookFetchBreaker := breaker.New("book-service.fetch-book", breakerSettings, log)
	bookAdjustBreaker := breaker.New("book-service.adjust-availability", breakerSettings, log)

	userClient := clients.NewUserClient(cfg.UserServiceURL, userFetchBreaker, log)
	bookClient := clients.NewBookClient(cfg.BookServiceURL, bookFetchBreaker, bookAdjustBreaker, log)

	loanRepo := repositories.NewLoanRepository(db)
	loanService := services.NewLoanService(log, loanRepo, userClient, bookClient)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	handlers.RegisterRoutes(router, loanService, log)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	log.Info("starting loan service", "addr", cfg.ServerAddr,
		"user_service", cfg.UserServiceURL, "book_service", cfg.BookServiceURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server error", "error", err)
	}
}
