package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dunskii/consult-relay/config"
	"github.com/dunskii/consult-relay/internal/admission"
	"github.com/dunskii/consult-relay/internal/handlers"
	"github.com/dunskii/consult-relay/internal/recordings"
	"github.com/dunskii/consult-relay/internal/rooms"
	"github.com/dunskii/consult-relay/internal/signals"
	"github.com/dunskii/consult-relay/internal/store"
)

const sweepInterval = time.Minute

func main() {
	cfg := config.Load()

	log := newLogger(cfg.Environment)

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	log.Info("store opened", "path", st.Path())

	hub := signals.NewHub()

	var signalStore signals.Store
	if cfg.Redis.Enabled {
		redisStore, redisErr := signals.NewRedisStore(cfg.Redis, cfg.SignalTTL, hub)
		if redisErr != nil {
			log.Error("failed to connect to Redis", "error", redisErr)
			os.Exit(1)
		}
		defer redisStore.Close()
		signalStore = redisStore
		log.Info("signal store: redis", "host", cfg.Redis.Host)
	} else {
		signalStore = signals.NewMemoryStore(hub)
		log.Info("signal store: memory")
	}

	roomMgr := rooms.NewManager(st, signalStore, rooms.NewRegistry(), log, rooms.ManagerConfig{
		ScheduleGrace:      cfg.ScheduleGrace,
		IdleWindow:         cfg.IdleWindow,
		WaitingRoomDefault: cfg.WaitingRoomDefault,
	})

	gate := admission.NewGate(roomMgr, signalStore, log)
	roomMgr.AddEndHook(gate.DropRoom)

	recorder, err := recordings.NewCoordinator(st, cfg.DataDir, log, recordings.Config{
		Retention:       cfg.RetentionWindow,
		LateUploadGrace: cfg.LateUploadGrace,
		QuotaBytes:      cfg.StorageQuotaBytes,
	})
	if err != nil {
		log.Error("failed to set up recordings", "error", err)
		os.Exit(1)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	api := &handlers.API{
		Rooms:             roomMgr,
		Gate:              gate,
		Signals:           signalStore,
		Recordings:        recorder,
		Hub:               hub,
		Log:               log,
		MaxSignalBytes:    cfg.MaxSignalBytes,
		MaxRecordingBytes: cfg.MaxRecordingBytes,
	}
	router := handlers.NewRouter(api, handlers.RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runSweeps(ctx, roomMgr, recorder, signalStore, cfg.SignalTTL, log)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("starting signaling relay", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}

// runSweeps drives the background passes: idle-room ending, recording
// expiry, and abandoned-signal cleanup. They run between foreground
// requests and touch only per-key state.
func runSweeps(ctx context.Context, roomMgr *rooms.Manager, recorder *recordings.Coordinator, signalStore signals.Store, signalTTL time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			roomMgr.SweepIdle(ctx)
			recorder.SweepExpired(ctx)
			if err := signalStore.Sweep(ctx, signalTTL); err != nil {
				log.Error("signal sweep failed", "error", err)
			}
		}
	}
}

func newLogger(environment string) *slog.Logger {
	var handler slog.Handler
	if environment == "production" {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.New(handler)
}
