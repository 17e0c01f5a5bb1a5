// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"property-receptionist/internal/common/camunda"
	"property-receptionist/internal/common/config"
	"property-receptionist/internal/common/database"
	apphttp "property-receptionist/internal/common/http"
	"property-receptionist/internal/common/logger"
	"property-receptionist/internal/common/observability"
	"property-receptionist/internal/extraction"
	"property-receptionist/internal/provisioning"

	pr "property-receptionist/internal/workers/receptionist/provision-receptionist"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	if err := cfg.Validate(); err != nil {
		zapLog.Fatal("invalid configuration", zap.Error(err))
	}
	log.Info("Starting worker manager...", map[string]interface{}{
		"environment": cfg.App.Environment,
		"version":     cfg.App.Version,
	})

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	// --- Agent registry (optional) ---
	var registry *database.AgentRegistry
	if cfg.Redis.Enabled {
		var rc *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Redis)
			if err != nil {
				return err
			}
			return rc.Ping(context.Background())
		}, 5, time.Second, log, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rc.Close()
		registry = database.NewAgentRegistry(rc.Client, cfg.Redis.AgentTTL)
		log.Info("agent registry enabled", map[string]interface{}{"address": cfg.Redis.Address})
	}

	// --- Zeebe client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	log.Info("Zeebe client connected successfully", nil)

	// --- Receptionist worker ---
	deps := pr.Dependencies{
		Transport: extraction.NewHTTPTransport(
			apphttp.NewClient(cfg.Extraction.ConnectTimeout, cfg.Extraction.APIToken,
				apphttp.WithResponseHeaderTimeout(cfg.Extraction.ConnectTimeout)),
			cfg.Extraction.URL,
		),
		Provisioner: provisioning.NewGate(
			apphttp.NewClient(cfg.Provisioning.ConnectTimeout, cfg.Provisioning.APIToken),
			cfg.Provisioning.URL,
			log,
			provisioning.WithTimeout(cfg.Provisioning.Timeout),
		),
		Observability: obs,
	}
	var agents agentLookup
	if registry != nil {
		deps.Recorder = registry
		agents = registry
	}

	handler := pr.NewHandler(pr.LoadConfig(cfg), deps, log)
	w := camunda.NewWorker(zeebe.GetClient(), pr.TaskType, camunda.WorkerOptions{
		MaxJobsActive: cfg.Camunda.MaxJobsActive,
		Timeout:       cfg.Camunda.Timeout,
	}, handler, log)
	w.Start()

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           newServeMux(zeebe, agents),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Health/Metrics server listening", map[string]interface{}{"address": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health/Metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutdown signal received, stopping workers...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	w.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping metrics server", map[string]interface{}{"error": err.Error()})
	}
	if err := zeebe.Close(); err != nil {
		log.Error("Error closing Zeebe client", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Worker manager stopped gracefully", nil)
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

type agentLookup interface {
	Lookup(ctx context.Context, sessionID string) (*database.AgentRecord, error)
}

func newServeMux(broker healthChecker, agents agentLookup) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if broker != nil {
			if err := broker.HealthCheck(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	// The call widget host looks up the agent provisioned for a session.
	mux.HandleFunc("/agents/", func(w http.ResponseWriter, r *http.Request) {
		if agents == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "agent registry disabled"})
			return
		}
		sessionID := strings.TrimPrefix(r.URL.Path, "/agents/")
		if sessionID == "" || strings.Contains(sessionID, "/") {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session id required"})
			return
		}
		rec, err := agents.Lookup(r.Context(), sessionID)
		switch {
		case errors.Is(err, database.ErrAgentNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "agent not found"})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusOK, rec)
		}
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
