// Service mqttbridge subscribes to the study's MQTT broker and stores each
// message as a row in the broker history table.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rantahar/aware-filter/internal/config"
	"github.com/rantahar/aware-filter/internal/db"
	"github.com/rantahar/aware-filter/internal/mqttbridge"
	"github.com/rantahar/aware-filter/internal/storage/sqlstore"
)

func main() {
	cfg := config.LoadMQTTBridge()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	connCtx, connCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connCancel()

	pool, err := db.Connect(connCtx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := sqlstore.New(pool, sqlstore.DialectFor(db.DriverFor(cfg.DatabaseURL)))
	bridge := mqttbridge.New(store, cfg.BrokerURL, cfg.Topic, cfg.ClientID, byte(cfg.QoS))

	// Run the bridge via an owner goroutine; it reconnects on its own and
	// stops when the context is cancelled.
	bridgeCtx, bridgeCancel := context.WithCancel(context.Background())
	defer bridgeCancel()
	bridgeDone := make(chan struct{})
	go func() {
		defer close(bridgeDone)
		if err := bridge.Run(bridgeCtx); err != nil {
			slog.Error("bridge stopped", "error", err)
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "mqttbridge"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Healthy(r.Context(), pool); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "service": "mqttbridge"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "service": "mqttbridge"})
	})

	serve(cfg.Base, r, bridgeCancel, bridgeDone)
}

func serve(cfg config.Base, handler http.Handler, stopBridge func(), bridgeDone <-chan struct{}) {
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mqttbridge listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		slog.Error("server error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	// Disconnect from the broker and wait for in-flight handlers.
	stopBridge()
	<-bridgeDone
	slog.Info("bridge disconnected")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
