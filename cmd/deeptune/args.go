package main

import (
	"fmt"
	"os"
	"strings"

	"deeptune/internal/config"
)

// invocation is the subcommand and its positional arguments.
type invocation struct {
	Command    string
	Args       []string
	ShowLyrics bool
}

// parseArgs parses command-line arguments and loads configuration.
// Priority: CLI flags > environment > config file > defaults
func parseArgs() (config.Config, invocation, string, error) {
	args := os.Args[1:]

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			printUsage()
			os.Exit(0)
		}
		if arg == "--init-config" {
			return config.Config{}, invocation{}, "", initConfigFile()
		}
	}

	var configPath string
	for i := 0; i < len(args); i++ {
		if args[i] == "--config" || args[i] == "-c" {
			if i+1 >= len(args) {
				return config.Config{}, invocation{}, "", fmt.Errorf("--config requires a path argument")
			}
			configPath = args[i+1]
			break
		}
	}

	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		return config.Config{}, invocation{}, "", fmt.Errorf("failed to load config: %w", err)
	}
	if configPath == "" {
		configPath = config.FindConfigFile()
	}

	var inv invocation
	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--verbose", "-v":
			cfg.Verbose = true

		case "--lyrics", "-l":
			inv.ShowLyrics = true

		case "--server", "-s":
			if i+1 >= len(args) {
				return config.Config{}, invocation{}, "", fmt.Errorf("--server requires a URL argument")
			}
			i++
			cfg.ServerURL = strings.TrimRight(args[i], "/")

		case "--seconds", "-t":
			if i+1 >= len(args) {
				return config.Config{}, invocation{}, "", fmt.Errorf("--seconds requires a number argument")
			}
			i++
			var secs int
			if _, err := fmt.Sscanf(args[i], "%d", &secs); err != nil {
				return config.Config{}, invocation{}, "", fmt.Errorf("invalid recording length: %s", args[i])
			}
			cfg.RecordSeconds = secs

		case "--config", "-c":
			i++

		default:
			if len(arg) > 1 && arg[0] == '-' {
				return config.Config{}, invocation{}, "", fmt.Errorf("unknown flag: %s", arg)
			}
			if inv.Command == "" {
				inv.Command = arg
			} else {
				inv.Args = append(inv.Args, arg)
			}
		}
	}

	if inv.Command == "" {
		return config.Config{}, invocation{}, "", fmt.Errorf("missing command, see --help")
	}

	return cfg, inv, configPath, nil
}

// initConfigFile creates a new config file with default values
func initConfigFile() error {
	path := config.GetDefaultConfigPath()

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config file already exists at: %s\n", path)
		fmt.Println("Delete it first if you want to recreate it.")
		os.Exit(0)
	}

	cfg := config.DefaultConfig()

	if err := config.SaveConfigFile(cfg, path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Printf("Created default config file at: %s\n", path)
	fmt.Println("\nYou can now edit this file to customize your settings.")
	fmt.Println("Available options:")
	fmt.Println("  server_url: address of the prediction server")
	fmt.Println("  record_seconds: 1-60 (length of a microphone clip)")
	fmt.Println("  record_command: program that writes raw S16LE mono PCM to stdout")
	fmt.Println("  pictures_dir: where relative photo paths are looked up")
	fmt.Println("  verbose: true/false (enable detailed logging)")

	os.Exit(0)
	return nil
}

// printUsage displays the help message
func printUsage() {
	fmt.Println("deeptune - Find a song from a description, a photo or what you hear")
	fmt.Println()
	fmt.Println("Usage: deeptune [options] <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  text [description]         Predict from a scene description (asks when omitted)")
	fmt.Println("  image [path]               Predict from a photo (asks when omitted)")
	fmt.Println("  listen                     Record from the microphone and recognize the song")
	fmt.Println("  audio <file.wav>           Recognize a recorded WAV clip")
	fmt.Println("  watch [dir]                Predict every photo or .wav dropped into dir")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -v, --verbose              Show detailed output")
	fmt.Println("  -l, --lyrics               Print lyrics when the song has them")
	fmt.Println("  -s, --server <url>         Prediction server (default: http://localhost:5001)")
	fmt.Println("  -t, --seconds <n>          Recording length in seconds (default: 10)")
	fmt.Println("  -c, --config <path>        Path to config file")
	fmt.Println("  -h, --help                 Show this help message")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  --init-config              Create a default config file")
	fmt.Println()
	fmt.Println("Config file locations (checked in order):")
	fmt.Println("  ./deeptune.yaml")
	fmt.Println("  ~/.config/deeptune/config.yaml")
	fmt.Println("  ~/.deeptune.yaml")
	fmt.Println()
	fmt.Println("Environment (also read from ./.env):")
	fmt.Println("  DEEPTUNE_SERVER_URL, DEEPTUNE_RECORD_SECONDS, DEEPTUNE_RECORD_COMMAND, DEEPTUNE_PICTURES_DIR")
	fmt.Println()
	fmt.Println("Logging:")
	fmt.Println("  Normal mode: countdown shown while recording, detailed logs saved to:")
	fmt.Println("    ~/.local/share/deeptune/logs/")
	fmt.Println("  Verbose mode: All output to stdout, no countdown, no file logging")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  deeptune text \"a rainy city street at night\"")
	fmt.Println("  deeptune image ~/Pictures/beach.jpg")
	fmt.Println("  deeptune --lyrics listen")
	fmt.Println("  deeptune -s http://192.168.0.10:5001 watch ~/Downloads")
}
