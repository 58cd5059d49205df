package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clipsmith/clipsmith-agent/internal/api"
	"github.com/clipsmith/clipsmith-agent/internal/clips"
	"github.com/clipsmith/clipsmith-agent/internal/config"
	"github.com/clipsmith/clipsmith-agent/internal/db"
	"github.com/clipsmith/clipsmith-agent/internal/events"
	"github.com/clipsmith/clipsmith-agent/internal/ffmpeg"
	"github.com/clipsmith/clipsmith-agent/internal/logging"
	"github.com/clipsmith/clipsmith-agent/internal/playback"
	"github.com/clipsmith/clipsmith-agent/internal/storage"
	"github.com/clipsmith/clipsmith-agent/internal/store"
	"github.com/clipsmith/clipsmith-agent/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clipsmith agent", "version", config.Version, "data_dir", cfg.DataDir())

	paths := storage.NewPaths(cfg.DataDir())
	if err := paths.EnsureAll(); err != nil {
		return fmt.Errorf("failed to prepare storage directories: %w", err)
	}

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := store.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                 CLIPSMITH AGENT v%-7s                  ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	runner, err := ffmpeg.NewRunner(cfg.FFmpegPath(), logger)
	if err != nil {
		return fmt.Errorf("ffmpeg unavailable: %w", err)
	}

	probe := ffmpeg.NewProbe(runner, logger)
	selector := ffmpeg.NewSelector(runner, logger)

	hub := events.NewHub(logger)
	sink := fanoutSink{hub, events.LogSink{Logger: logger}}

	orchestrator := clips.NewOrchestrator(clips.OrchestratorDeps{
		Paths:       paths,
		Probe:       probe,
		Selector:    selector,
		Renderer:    clips.NewRenderer(runner, logger),
		Preparer:    clips.NewPreparer(runner, probe, selector, logger),
		Thumbnailer: ffmpeg.NewThumbnailer(runner, logger),
		Composer:    clips.NewComposer(cfg.FontsDir(), logger),
		FontsDir:    cfg.FontsDir(),
		Sink:        sink,
		Recorder:    store.NewBuildRecorder(repo, logger),
		Logger:      logger,
	})

	apiServer := api.NewServer(api.ServerConfig{
		Port:         cfg.Port(),
		Orchestrator: orchestrator,
		Repository:   repo,
		Hub:          hub,
		Paths:        paths,
		Playback:     playback.NewFileServer(logger),
		Logger:       logger,
		StartTime:    startTime,
		DeviceID:     deviceID,
		Version:      config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Orchestrator: orchestrator,
			Logger:       logger,
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()

		// The tray has no event feed of its own; poll the registry.
		go func() {
			ticker := time.NewTicker(2 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					tray.RefreshBuilds()
				case <-quitCh:
					return
				}
			}
		}()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// fanoutSink delivers every notification to each sink in order.
type fanoutSink []clips.ProgressSink

func (f fanoutSink) EmitProgress(p clips.BuildProgress) {
	for _, s := range f {
		s.EmitProgress(p)
	}
}

func (f fanoutSink) EmitResult(r clips.BuildResult) {
	for _, s := range f {
		s.EmitResult(r)
	}
}

func ensureDeviceID(repo store.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo store.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
