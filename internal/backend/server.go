// Package backend is a stand-in for the prediction server. It speaks the same
// wire protocol but picks songs from a fixed catalogue instead of running a
// model, optionally enriching them with real covers and lyrics.
package backend

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oklog/ulid/v2"

	"deeptune/internal/logger"
	"deeptune/internal/predict"
	"deeptune/internal/provider"
)

const maxUploadBytes = 32 << 20

// Options configures a Server. Covers and Lyrics are optional.
type Options struct {
	Catalogue Catalogue
	Covers    provider.CoverFinder
	Lyrics    provider.LyricsFinder
	UploadDir string
	Logger    *logger.Logger
}

// Server serves /predict/text, /predict_image and /predict_audio.
type Server struct {
	catalogue Catalogue
	covers    provider.CoverFinder
	lyrics    provider.LyricsFinder
	uploadDir string
	logger    *logger.Logger
	e         *echo.Echo
}

func New(opts Options) *Server {
	s := &Server{
		catalogue: opts.Catalogue,
		covers:    opts.Covers,
		lyrics:    opts.Lyrics,
		uploadDir: opts.UploadDir,
		logger:    opts.Logger,
	}
	if len(s.catalogue) == 0 {
		s.catalogue = DefaultCatalogue
	}
	if s.logger == nil {
		s.logger = logger.Discard()
	}
	s.e = s.initRoutes()
	return s
}

func (s *Server) initRoutes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return ulid.Make().String() },
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("%s %s %d %v [%s]", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))
	e.Use(middleware.BodyLimit("32M"))

	e.GET("/live", live)
	e.POST("/predict/text", s.predictText)
	e.POST("/predict_image", s.predictImage)
	e.POST("/predict_audio", s.predictAudio)
	e.POST("/predict/audio", s.predictAudio)

	for _, r := range e.Routes() {
		s.logger.Debug("route %s %s", r.Method, r.Path)
	}
	return e
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.e.Server.ReadHeaderTimeout = 5 * time.Second
	s.e.Server.ReadTimeout = 30 * time.Second
	s.e.Server.WriteTimeout = 60 * time.Second

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Prediction stub listening on %s", addr)
		errc <- s.e.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("Prediction stub stopped")
	return nil
}

func live(c echo.Context) error {
	return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
}

// enrich turns a catalogue entry into a response, replacing names, cover and
// lyrics with whatever the providers know. Provider failures are only logged.
func (s *Server) enrich(ctx context.Context, e Entry, withLyrics bool) predict.Result {
	res := predict.Result{Title: e.Title, Artist: e.Artist, CoverURL: e.CoverURL}
	if withLyrics {
		res.Lyrics = e.Lyrics
	}

	if s.covers != nil {
		song, found, err := s.covers.FindCover(ctx, e.Artist, e.Title)
		switch {
		case err != nil:
			s.logger.Warn("%s lookup failed for %s - %s: %v", s.covers.Name(), e.Artist, e.Title, err)
		case found:
			if song.Title != "" {
				res.Title = song.Title
			}
			if song.Artist != "" {
				res.Artist = song.Artist
			}
			if song.CoverURL != "" {
				res.CoverURL = song.CoverURL
			}
		}
	}

	if withLyrics && s.lyrics != nil {
		text, err := s.lyrics.Lookup(ctx, res.Artist, res.Title)
		switch {
		case err != nil:
			s.logger.Warn("Lyrics lookup failed for %s: %v", res, err)
		case text != "":
			res.Lyrics = text
		}
	}
	return res
}
