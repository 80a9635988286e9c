package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deeptune/internal/capture"
	"deeptune/internal/config"
	"deeptune/internal/inbox"
	"deeptune/internal/logger"
	"deeptune/internal/predict"
	"deeptune/internal/screen"
	"deeptune/internal/shutdown"
	"deeptune/internal/web"
	"deeptune/pkg/utils"
)

func main() {
	var (
		port       int
		configPath string
		serverURL  string
		staticDir  string
		watchDir   string
		verbose    bool
	)

	flag.IntVar(&port, "port", 0, "HTTP server port (default from config, 8080)")
	flag.StringVar(&configPath, "config", "", "Config file path")
	flag.StringVar(&serverURL, "server", "", "Prediction server URL")
	flag.StringVar(&staticDir, "static", "web/static", "Directory with the web page")
	flag.StringVar(&watchDir, "watch", "", "Also predict photos and .wav clips dropped into this directory")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if port != 0 {
		cfg.WebPort = port
	}
	if serverURL != "" {
		cfg.ServerURL = strings.TrimRight(serverURL, "/")
	}
	cfg.Verbose = cfg.Verbose || verbose
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Setup logger with file logging
	l := logger.New(cfg.Verbose)
	logDir := config.GetDefaultLogPath()
	if err := os.MkdirAll(logDir, 0755); err == nil {
		logPath := filepath.Join(logDir, fmt.Sprintf("deeptune-web-%d.log", time.Now().Unix()))
		if err := l.SetFileLog(logPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to setup file logging: %v\n", err)
		}
	}
	defer l.Close()

	sh := shutdown.New()
	sh.Listen()
	defer sh.Shutdown()

	tmpDir, err := utils.CreateTempDir()
	if err != nil {
		l.Error("%v", err)
		os.Exit(1)
	}
	sh.AddCleanup(func() {
		if err := utils.Cleanup(tmpDir); err != nil {
			l.Warn("Error during cleanup: %v", err)
		}
	})

	recorder := capture.NewCommandRecorder(cfg.RecordCommand, cfg.RecordSampleRate, l)
	recorder.Dir = tmpDir

	scr := screen.New(screen.Options{
		Predictor: predict.NewClient(cfg.ServerURL, cfg.HTTPTimeout()),
		Recorder:  recorder,
		Permissions: capture.SystemPermissions{
			RecordCommand: recorder.Command,
			PicturesDir:   cfg.PicturesDir,
		},
		RecordDuration: cfg.RecordDuration(),
		Logger:         l,
	})
	_ = scr.CheckPermissions(sh.Context())

	server := web.NewServer(sh.Context(), scr, l)
	server.SetStaticDir(staticDir)
	server.SetUploadDir(tmpDir)

	if watchDir != "" {
		dir := config.ExpandHome(watchDir)
		go func() {
			if err := inbox.New(dir, scr, l).Run(sh.Context()); err != nil {
				l.Error("Inbox stopped: %v", err)
			}
		}()
	}

	// HTTP server
	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.WebPort),
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in background
	go func() {
		l.Info("Starting web screen on port %d (prediction server %s)", cfg.WebPort, cfg.ServerURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Server error: %v", err)
			sh.Shutdown()
		}
	}()

	// Graceful shutdown
	<-sh.Context().Done()

	l.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		l.Error("Server shutdown error: %v", err)
	}
	server.Wait()

	l.Info("Server stopped")
}
