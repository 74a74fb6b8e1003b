// Command mockbackend serves a seeded fake shop backend for local console development.
//
// Log in with the seeded operator (alice / Secret123). Point the console at it
// with BACKEND_BASE_URL=http://localhost:8081/api/v1/.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"milkadmin/internal/backend/backendtest"
	"milkadmin/internal/platform/httpserver"
	"milkadmin/internal/platform/logger"
)

const (
	defaultPort      = "8081"
	defaultLatencyMs = 0
)

func main() {
	log := logger.New(getEnv("LOG_LEVEL", "info"))
	port := getEnv("PORT", defaultPort)
	latency := time.Duration(getEnvInt("LATENCY_MS", defaultLatencyMs)) * time.Millisecond
	accessTTL, err := time.ParseDuration(getEnv("ACCESS_TTL", "15m"))
	if err != nil {
		log.Error("invalid ACCESS_TTL", "error", err)
		os.Exit(1)
	}

	fake := backendtest.New(
		backendtest.WithLogger(log),
		backendtest.WithLatency(latency),
		backendtest.WithAccessTTL(accessTTL),
		backendtest.WithSigningKey(os.Getenv("SIGNING_KEY")),
	)

	srv := httpserver.New(":"+port, fake.Handler(), 0)
	go func() {
		log.Info("mock shop backend starting",
			"addr", srv.Addr,
			"base_path", backendtest.BasePath,
			"latency", latency,
			"operator", backendtest.Username,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	log.Info("mock shop backend stopped")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}
