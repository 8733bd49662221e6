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

	"github.com/timeclock-api/internal/application/overtime"
	"github.com/timeclock-api/internal/config"
	"github.com/timeclock-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/timeclock-api/internal/infrastructure/jwt"
	"github.com/timeclock-api/internal/infrastructure/smtp"
	"github.com/timeclock-api/internal/infrastructure/sns"
	"github.com/timeclock-api/internal/notify"
	"github.com/timeclock-api/internal/pkg/clock"
	"github.com/timeclock-api/internal/pkg/keymutex"
	transporthttp "github.com/timeclock-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("invalid TIMEZONE %q: %v", cfg.Timezone, err)
	}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	counterRepo := dynamo.NewCounterRepo(dynamoClient, cfg.DynamoTables.Counters, cfg.StorageTimeout)
	sessionRepo := dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions, counterRepo, cfg.StorageTimeout)

	// JWT provider (optional — graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	// Alert sink: SNS topics by default, SMTP as the fallback channel.
	var sink notify.Sink
	switch cfg.NotifyBackend {
	case "email":
		sink = smtp.NewNotifier(smtp.NewMailer(cfg), cfg.NotifyAuditEmail)
	default:
		snsSink, err := sns.NewNotifier(cfg)
		if err != nil {
			log.Fatalf("SNS notifier not available: %v", err)
		}
		sink = snsSink
	}

	clk := clock.NewWall(loc)
	locks := keymutex.New()

	deps := &transporthttp.Deps{
		Store:       sessionRepo,
		Sink:        sink,
		Clock:       clk,
		Locks:       locks,
		JWTProvider: jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, loc, deps)

	monitor := overtime.NewMonitor(overtime.MonitorDeps{
		Store:          sessionRepo,
		Clock:          clk,
		Sink:           sink,
		Locks:          locks,
		ThresholdHours: cfg.OvertimeThresholdHours,
		Interval:       cfg.OvertimeScanInterval,
	})
	monitor.Start(context.Background())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	monitor.Close()
	log.Println("Server stopped")
}
