// Package predict is the wire client for the song prediction server.
//
// The server exposes three endpoints that all answer with the same JSON shape:
//
//	POST /predict/text    {"text": "..."}
//	POST /predict_image   multipart, field "file" (JPEG)
//	POST /predict_audio   multipart, field "file" (WAV)
package predict

import (
	"fmt"
	"strings"
)

// NoMatchTitle is what the server puts in the title when audio recognition fails.
// It still answers 200 in that case.
const NoMatchTitle = "인식 실패"

// Result is a song prediction as returned by the server.
type Result struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	CoverURL string `json:"cover_url"`
	Lyrics   string `json:"lyrics"`
}

// HasLyrics reports whether the lyrics view should be offered.
func (r Result) HasLyrics() bool {
	return strings.TrimSpace(r.Lyrics) != ""
}

// Recognized is false for the server's "recognition failed" placeholder.
func (r Result) Recognized() bool {
	return !(r.Title == NoMatchTitle && r.Artist == "")
}

func (r Result) String() string {
	if r.Artist == "" {
		return r.Title
	}
	return fmt.Sprintf("%s - %s", r.Artist, r.Title)
}

// Upload is a file sent as the "file" part of a multipart request.
type Upload struct {
	Path        string // read from disk when Data is nil
	Name        string // defaults to the last element of Path
	ContentType string
	Data        []byte
}

// ServerError is returned for any non-2xx answer. The body is not inspected.
type ServerError struct {
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d", e.Status)
}

// NetworkError wraps transport failures and undecodable responses.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
