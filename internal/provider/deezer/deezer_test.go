package deezer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestFindCover(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "deeptune/1.0" {
			t.Errorf("unexpected User-Agent: %s", r.Header.Get("User-Agent"))
		}
		if got := r.URL.Query().Get("q"); got != `track:"Santeria" artist:"Marracash"` {
			t.Errorf("q = %q", got)
		}
		json.NewEncoder(w).Encode(searchResponse{
			Data: []trackItem{
				{
					ID:         1,
					Title:      "Santeria (Live)",
					TitleShort: "Santeria",
					Artist:     artist{ID: 100, Name: "Marracash"},
					Album: albumInfo{
						ID:       200,
						Title:    "Santeria",
						CoverBig: "https://example.com/cover-big.jpg",
						CoverXL:  "https://example.com/cover-xl.jpg",
					},
				},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New()
	c.apiURL = srv.URL

	song, found, err := c.FindCover(context.Background(), "Marracash", "Santeria")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected a match")
	}
	if song.Title != "Santeria" {
		t.Errorf("Title = %q, want %q", song.Title, "Santeria")
	}
	if song.Artist != "Marracash" {
		t.Errorf("Artist = %q, want %q", song.Artist, "Marracash")
	}
	if song.CoverURL != "https://example.com/cover-xl.jpg" {
		t.Errorf("CoverURL = %q, want cover-xl", song.CoverURL)
	}
}

func TestFindCoverFallsBackToFreeText(t *testing.T) {
	var mu sync.Mutex
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.Query().Get("q"))
		n := len(queries)
		mu.Unlock()
		if n == 1 {
			json.NewEncoder(w).Encode(searchResponse{Data: []trackItem{}})
			return
		}
		json.NewEncoder(w).Encode(searchResponse{Data: []trackItem{{
			Title:  "Money",
			Artist: artist{Name: "Marracash"},
			Album:  albumInfo{CoverBig: "https://example.com/big.jpg"},
		}}})
	}))
	defer srv.Close()

	c := New()
	c.apiURL = srv.URL

	song, found, err := c.FindCover(context.Background(), "Marracash", "Money")
	if err != nil || !found {
		t.Fatalf("FindCover() = %v, %v", found, err)
	}
	if len(queries) != 2 || queries[1] != "Money Marracash" {
		t.Errorf("queries = %q", queries)
	}
	if song.Title != "Money" || song.CoverURL != "https://example.com/big.jpg" {
		t.Errorf("song = %+v", song)
	}
}

func TestFindCoverNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{Data: []trackItem{}})
	}))
	defer srv.Close()

	c := New()
	c.apiURL = srv.URL

	_, found, err := c.FindCover(context.Background(), "", "nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected no match")
	}
}

func TestFindCoverAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{
			Error: &apiError{Type: "Exception", Message: "Quota exceeded", Code: 4},
		})
	}))
	defer srv.Close()

	c := New()
	c.apiURL = srv.URL

	if _, _, err := c.FindCover(context.Background(), "a", "test"); err == nil {
		t.Fatal("expected error for API error response")
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name          string
		artist, title string
		want          string
	}{
		{name: "both", artist: "Marracash", title: "Santeria", want: `track:"Santeria" artist:"Marracash"`},
		{name: "title only", title: "Santeria", want: `track:"Santeria"`},
		{name: "quotes stripped", artist: `The "Band"`, title: "Hi", want: `track:"Hi" artist:"The Band"`},
		{name: "empty", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(tt.artist, tt.title); got != tt.want {
				t.Errorf("buildQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}
