package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"deeptune/internal/capture"
)

const maxUploadBytes = 32 << 20

type TextRequest struct {
	Text string `json:"text"`
}

func (s *Server) writeState(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(s.screen.State())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeState(w, http.StatusOK)
}

func (s *Server) handlePredictText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req TextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Blank input fails without a request, so answer with the alert right away.
	if strings.TrimSpace(req.Text) == "" {
		s.screen.PredictFromText(r.Context(), req.Text)
		s.writeState(w, http.StatusUnprocessableEntity)
		return
	}

	s.background("text prediction", func(ctx context.Context) error {
		return s.screen.PredictFromText(ctx, req.Text)
	})
	s.writeState(w, http.StatusAccepted)
}

func (s *Server) handlePredictImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path, err := s.stageUpload(r)
	if errors.Is(err, http.ErrMissingFile) {
		// Nothing chosen: same as cancelling the picker.
		s.writeState(w, http.StatusOK)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.background("image prediction", func(ctx context.Context) error {
		defer os.Remove(path)
		return s.screen.PredictFromImageWith(ctx, capture.FixedPicker(path))
	})
	s.writeState(w, http.StatusAccepted)
}

func (s *Server) handlePredictAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.background("audio prediction", s.screen.PredictFromAudio)
	s.writeState(w, http.StatusAccepted)
}

func (s *Server) handlePredictAudioFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path, err := s.stageUpload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.background("audio file prediction", func(ctx context.Context) error {
		defer os.Remove(path)
		return s.screen.PredictFromAudioFile(ctx, path)
	})
	s.writeState(w, http.StatusAccepted)
}

func (s *Server) handleLyrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch strings.TrimPrefix(r.URL.Path, "/api/lyrics/") {
	case "open":
		if !s.screen.OpenLyrics() {
			http.Error(w, "No lyrics for the current song", http.StatusConflict)
			return
		}
	case "close":
		s.screen.CloseLyrics()
	default:
		http.Error(w, "Invalid request", http.StatusNotFound)
		return
	}
	s.writeState(w, http.StatusOK)
}

func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.screen.DismissAlert()
	s.writeState(w, http.StatusOK)
}

// stageUpload copies the "file" part to disk, keeping its extension.
func (s *Server) stageUpload(r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", http.ErrMissingFile
		}
		return "", fmt.Errorf("invalid upload: %w", err)
	}
	defer f.Close()

	tmp, err := os.CreateTemp(s.uploadDir, "deeptune-upload-*"+strings.ToLower(filepath.Ext(hdr.Filename)))
	if err != nil {
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	if _, err := io.Copy(tmp, f); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	return tmp.Name(), nil
}
