package main

import (
	"flag"
	"fmt"
	"os"

	"deeptune/internal/backend"
	"deeptune/internal/config"
	"deeptune/internal/logger"
	"deeptune/internal/lyrics"
	"deeptune/internal/provider"
	"deeptune/internal/provider/deezer"
	"deeptune/internal/provider/itunes"
	"deeptune/internal/provider/musicbrainz"
	"deeptune/internal/provider/spotify"
	"deeptune/internal/shutdown"
)

func main() {
	var (
		port       int
		configPath string
		catalogue  string
		enrich     bool
		verbose    bool
	)

	flag.IntVar(&port, "port", 0, "HTTP server port (default from config, 5001)")
	flag.StringVar(&configPath, "config", "", "Config file path")
	flag.StringVar(&catalogue, "catalogue", "", "YAML catalogue of songs to predict from")
	flag.BoolVar(&enrich, "enrich", false, "Look up real covers and lyrics online")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if port != 0 {
		cfg.StubPort = port
	}
	if catalogue != "" {
		cfg.StubCatalogue = config.ExpandHome(catalogue)
	}
	cfg.StubEnrich = cfg.StubEnrich || enrich
	cfg.Verbose = cfg.Verbose || verbose
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	l := logger.New(cfg.Verbose)
	defer l.Close()

	opts := backend.Options{Logger: l}
	if cfg.StubCatalogue != "" {
		opts.Catalogue, err = backend.LoadCatalogue(cfg.StubCatalogue)
		if err != nil {
			l.Error("%v", err)
			os.Exit(1)
		}
		l.Info("Loaded %d songs from %s", len(opts.Catalogue), cfg.StubCatalogue)
	}
	if cfg.StubEnrich {
		var finders []provider.CoverFinder
		if cfg.SpotifyClientID != "" {
			finders = append(finders, spotify.New(cfg.SpotifyClientID, cfg.SpotifyClientSecret))
		}
		finders = append(finders, deezer.New(), itunes.New(), musicbrainz.New())
		covers := provider.NewChain(finders, l)
		opts.Covers = covers
		opts.Lyrics = lyrics.NewClient()
		l.Info("Enriching predictions with covers from %s and lyrics from LRCLib", covers.Name())
	}

	sh := shutdown.New()
	sh.Listen()
	defer sh.Shutdown()

	if err := backend.New(opts).Start(sh.Context(), fmt.Sprintf(":%d", cfg.StubPort)); err != nil {
		l.Error("Server error: %v", err)
		os.Exit(1)
	}
}
