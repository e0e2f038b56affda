package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gameplay/internal/auth"
	"gameplay/internal/config"
	"gameplay/internal/db"
	"gameplay/internal/driver"
	"gameplay/internal/executor"
	"gameplay/internal/httpapi"
	"gameplay/internal/middleware"
	"gameplay/internal/notifier"
	"gameplay/internal/rules"
	"gameplay/internal/rules/connect4"
	"gameplay/internal/services"
	"gameplay/internal/store"

	"github.com/rs/cors"
)

func main() {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting gameplay server in %s mode", cfg.Environment)

	mongodb, err := db.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mongodb.Close(ctx)
	}()

	log.Printf("Connected to MongoDB database: %s", cfg.MongoDB.Database)

	st := store.New(mongodb)
	registry := rules.NewRegistry(connect4.New())

	hub := notifier.NewHub()
	crossInstance := notifier.NewCrossInstance(mongodb.Notifications(), hub)
	crossInstance.Start()
	defer crossInstance.Stop()

	ex := executor.New(st, registry, crossInstance)
	completionService := services.NewCompletionService(mongodb, st)
	ex.SetCompleter(completionService)
	ex.SetAuditDB(mongodb)

	drv := driver.New(st, ex, registry)
	drv.SetAuditDB(mongodb)

	holder, err := os.Hostname()
	if err != nil || holder == "" {
		holder = "unknown-host"
	}
	recoveryCtx, cancelRecovery := context.WithCancel(context.Background())
	defer cancelRecovery()
	drv.RecoverInProgressMatches(recoveryCtx, mongodb, holder)
	drv.StartPeriodicRecovery(recoveryCtx, mongodb, holder, cfg.RecoveryInterval())

	verifier := auth.NewVerifier(cfg.Auth.BearerSecret)
	authMiddleware := middleware.NewAuthMiddleware(verifier, mongodb)
	limiter := middleware.NewRateLimiter()
	defer limiter.Stop()

	handler := httpapi.NewHandler(st, ex, drv, registry, hub, verifier, mongodb)
	router := httpapi.NewRouter(handler, authMiddleware, limiter)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.Frontend.URL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      middleware.SecurityHeaders()(corsHandler.Handler(router)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
