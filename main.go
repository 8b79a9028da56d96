package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Xyzrr/virtual-office-server/internal/config"
	"github.com/Xyzrr/virtual-office-server/internal/logging"
	"github.com/Xyzrr/virtual-office-server/internal/media"
	"github.com/Xyzrr/virtual-office-server/internal/net/ws"
	"github.com/Xyzrr/virtual-office-server/internal/room"
)

func main() {
	cfg := config.FromEnv()
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()

	logger := logging.New(logging.Options{FilePath: cfg.LogFile, Debug: cfg.Debug})
	defer logger.Sync()

	var publisher media.Publisher
	if cfg.MediaBaseURL != "" {
		publisher = media.NewClient(cfg.MediaBaseURL)
		logger.Infow("publishing media rules", "url", cfg.MediaBaseURL)
	} else {
		publisher = media.NopPublisher{}
		logger.Info("no media router configured, rule publishing disabled")
	}

	manager := room.NewManager(room.ManagerConfig{
		GracePeriod:        cfg.GracePeriod,
		ProximityPeriod:    cfg.ProximityPeriod,
		ProximityThreshold: cfg.ProximityThreshold,
		GridCells:          cfg.GridCells,
		CellSize:           cfg.CellSize,
		MediaTimeout:       cfg.MediaTimeout,
		Publisher:          publisher,
		Logger:             logger,
	})

	handler := ws.NewHandler(manager, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.Handle)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		payload := struct {
			Status     string             `json:"status"`
			ServerTime int64              `json:"serverTime"`
			Rooms      []room.Diagnostics `json:"rooms"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Rooms:      manager.Diagnostics(),
		}
		data, err := json.Marshal(payload)
		if err != nil {
			http.Error(w, "failed to encode", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		logger.Infow("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	manager.Shutdown()
}
