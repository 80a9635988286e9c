// Package provider defines the song lookups the stub backend uses to enrich
// its predictions. Sub-packages implement them for specific services.
package provider

import "context"

// Song is a canonical song name with its album cover.
type Song struct {
	Title    string
	Artist   string
	CoverURL string
}

// CoverFinder resolves an artist and title to a canonical song with cover art.
type CoverFinder interface {
	Name() string
	FindCover(ctx context.Context, artist, title string) (Song, bool, error)
}

// LyricsFinder returns lyrics for a song, or "" when none are known.
type LyricsFinder interface {
	Lookup(ctx context.Context, artist, title string) (string, error)
}
