package web

import (
	"context"
	"net/http"
	"sync"

	"deeptune/internal/logger"
	"deeptune/internal/screen"
)

// Server exposes a Screen over HTTP. Predictions run in the background and
// their progress reaches browsers through /ws.
type Server struct {
	ctx       context.Context
	screen    *screen.Screen
	logger    *logger.Logger
	staticDir string
	uploadDir string

	wg sync.WaitGroup
}

// NewServer creates a server; ctx bounds every background prediction.
func NewServer(ctx context.Context, scr *screen.Screen, log *logger.Logger) *Server {
	return &Server{
		ctx:       ctx,
		screen:    scr,
		logger:    log,
		staticDir: "web/static",
	}
}

// SetStaticDir changes where the page is served from.
func (s *Server) SetStaticDir(dir string) { s.staticDir = dir }

// SetUploadDir changes where uploaded files are staged; os.TempDir() when empty.
func (s *Server) SetUploadDir(dir string) { s.uploadDir = dir }

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))

	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/predict/text", s.handlePredictText)
	mux.HandleFunc("/api/predict/image", s.handlePredictImage)
	mux.HandleFunc("/api/predict/audio", s.handlePredictAudio)
	mux.HandleFunc("/api/predict/audio-file", s.handlePredictAudioFile)
	mux.HandleFunc("/api/lyrics/", s.handleLyrics)
	mux.HandleFunc("/api/alert/dismiss", s.handleDismissAlert)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return s.loggingMiddleware(mux)
}

// Wait blocks until background predictions have finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// background runs fn detached from the request but bound to the server context.
// background runs fn after the loading flag is raised, so handlers can answer
// with a state that already shows the request.
func (s *Server) background(name string, fn func(ctx context.Context) error) {
	release := s.screen.Hold()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer release()
		if err := fn(s.ctx); err != nil {
			s.logger.Debug("%s finished with: %v", name, err)
		}
	}()
}
