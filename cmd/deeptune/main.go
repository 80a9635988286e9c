package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deeptune/internal/capture"
	"deeptune/internal/config"
	"deeptune/internal/inbox"
	"deeptune/internal/logger"
	"deeptune/internal/predict"
	"deeptune/internal/progress"
	"deeptune/internal/screen"
	"deeptune/internal/shutdown"
	"deeptune/pkg/utils"
)

func main() {
	cfg, inv, configPath, err := parseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}

	sh := shutdown.New()
	sh.Listen()
	defer sh.Shutdown()

	log := logger.New(cfg.Verbose)
	defer log.Close()

	if !cfg.Verbose {
		logDir := config.GetDefaultLogPath()
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Failed to create log directory: %v\n", err)
		} else {
			logFile := filepath.Join(logDir, fmt.Sprintf("deeptune_%s.log", time.Now().Format("2006-01-02_15-04-05")))
			if err := log.SetFileLog(logFile); err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] Failed to setup file logging: %v\n", err)
			} else {
				log.Debug("Logging to file: %s", logFile)
			}
		}
	}

	if configPath != "" {
		log.Debug("Loaded configuration from: %s", configPath)
	}

	if err := cfg.Validate(); err != nil {
		log.Error("Configuration error: %v", err)
		os.Exit(1)
	}

	if err := run(sh, cfg, inv, log); err != nil {
		log.Error("%v", err)
		sh.Shutdown()
		os.Exit(1)
	}
}

func run(sh *shutdown.Handler, cfg config.Config, inv invocation, log *logger.Logger) error {
	ctx := sh.Context()

	tmpDir, err := utils.CreateTempDir()
	if err != nil {
		return err
	}
	log.Debug("Temporary folder: %s", tmpDir)
	sh.AddCleanup(func() {
		if err := utils.Cleanup(tmpDir); err != nil {
			log.Warn("Error during cleanup: %v", err)
		}
	})

	recorder := capture.NewCommandRecorder(cfg.RecordCommand, cfg.RecordSampleRate, log)
	recorder.Dir = tmpDir

	var bar *progress.Bar
	hooks := screen.Hooks{
		OnRecordStart: func(d time.Duration) {
			if cfg.Verbose {
				log.Info("Listening for %v...", d)
				return
			}
			bar = progress.ForDuration("Listening", d)
			log.SetProgressBar(true)
		},
		OnRecordTick: func() {
			if bar != nil {
				bar.Increment()
			}
		},
		OnRecordStop: func() {
			if bar != nil {
				bar.Finish()
				bar = nil
				log.SetProgressBar(false)
			}
		},
	}

	scr := screen.New(screen.Options{
		Predictor: predict.NewClient(cfg.ServerURL, cfg.HTTPTimeout()),
		Picker:    capture.NewPromptPicker(os.Stdin, os.Stdout, cfg.PicturesDir),
		Recorder:  recorder,
		Permissions: capture.SystemPermissions{
			RecordCommand: recorder.Command,
			PicturesDir:   cfg.PicturesDir,
		},
		RecordDuration: cfg.RecordDuration(),
		Logger:         log,
		Hooks:          hooks,
	})
	log.Debug("Prediction server: %s", cfg.ServerURL)

	// Denied capabilities only warn; the flows that need them fail later.
	// The warning is already logged, so the alert is not kept on screen.
	if err := scr.CheckPermissions(ctx); err != nil {
		scr.DismissAlert()
	}

	switch inv.Command {
	case "text":
		text := strings.Join(inv.Args, " ")
		if text == "" {
			text, err = promptLine(os.Stdin, os.Stdout, "Describe the scene: ")
			if err != nil {
				return err
			}
		}
		err = scr.PredictFromText(ctx, text)

	case "image", "photo":
		if len(inv.Args) > 0 {
			err = scr.PredictFromImageWith(ctx, capture.FixedPicker(inv.Args[0]))
		} else {
			err = scr.PredictFromImage(ctx)
		}

	case "listen", "record":
		err = scr.PredictFromAudio(ctx)

	case "audio":
		if len(inv.Args) == 0 {
			return fmt.Errorf("audio requires a WAV file argument")
		}
		err = scr.PredictFromAudioFile(ctx, inv.Args[0])

	case "watch":
		dir := cfg.PicturesDir
		if len(inv.Args) > 0 {
			dir = config.ExpandHome(inv.Args[0])
		}
		if err := utils.EnsureDir(dir); err != nil {
			return err
		}
		return inbox.New(dir, printingTarget{scr, inv.ShowLyrics}, log).Run(ctx)

	default:
		return fmt.Errorf("unknown command: %s", inv.Command)
	}

	if errors.Is(err, context.Canceled) {
		log.Info("Cancelled")
		return nil
	}
	show(scr, inv.ShowLyrics)
	if err != nil {
		// Already shown as an alert.
		sh.Shutdown()
		os.Exit(1)
	}
	return nil
}

// show prints the screen, opening the lyrics first when asked to.
func show(scr *screen.Screen, lyrics bool) {
	if lyrics {
		scr.OpenLyrics()
	}
	printState(os.Stdout, scr.State())
	scr.DismissAlert()
	scr.CloseLyrics()
}

// printingTarget prints the screen after every file the inbox sends.
type printingTarget struct {
	scr    *screen.Screen
	lyrics bool
}

func (p printingTarget) PredictFromAudioFile(ctx context.Context, path string) error {
	err := p.scr.PredictFromAudioFile(ctx, path)
	p.report(path, err)
	return err
}

func (p printingTarget) PredictFromImageWith(ctx context.Context, picker screen.ImagePicker) error {
	err := p.scr.PredictFromImageWith(ctx, picker)
	p.report("", err)
	return err
}

func (p printingTarget) report(path string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if path != "" {
		fmt.Printf("%s:\n", filepath.Base(path))
	}
	show(p.scr, p.lyrics)
	fmt.Println()
}

func promptLine(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
