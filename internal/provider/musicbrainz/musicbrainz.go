package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"deeptune/internal/provider"
)

var _ provider.CoverFinder = (*Client)(nil)

// Client is a MusicBrainz Web API client. Covers come from the Cover Art
// Archive, keyed by the chosen release.
type Client struct {
	httpClient  *http.Client
	apiURL      string
	coverURL    string
	mu          sync.Mutex
	lastRequest time.Time
}

// New creates a new MusicBrainz client.
func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     "https://musicbrainz.org/ws/2",
		coverURL:   "https://coverartarchive.org",
	}
}

func (c *Client) Name() string { return "musicbrainz" }

// FindCover searches recordings and returns the first one that appears on a
// release, with that release's front cover.
func (c *Client) FindCover(ctx context.Context, artist, title string) (provider.Song, bool, error) {
	q := buildQuery(artist, title)
	if q == "" {
		return provider.Song{}, false, nil
	}

	if err := c.rateLimit(ctx); err != nil {
		return provider.Song{}, false, err
	}

	reqURL := fmt.Sprintf("%s/recording?query=%s&fmt=json&limit=5", c.apiURL, url.QueryEscape(q))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return provider.Song{}, false, fmt.Errorf("failed to create musicbrainz request: %w", err)
	}
	req.Header.Set("User-Agent", "deeptune/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return provider.Song{}, false, fmt.Errorf("musicbrainz search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return provider.Song{}, false, fmt.Errorf("musicbrainz search returned %d: %s", resp.StatusCode, body)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return provider.Song{}, false, fmt.Errorf("failed to decode musicbrainz response: %w", err)
	}

	for _, rec := range searchResp.Recordings {
		if len(rec.Releases) == 0 {
			continue
		}
		rel := pickBestRelease(rec.Releases)
		return provider.Song{
			Title:    rec.Title,
			Artist:   joinArtistCredits(rec.ArtistCredit),
			CoverURL: fmt.Sprintf("%s/release/%s/front-500", c.coverURL, rel.ID),
		}, true, nil
	}
	return provider.Song{}, false, nil
}

// rateLimit enforces MusicBrainz's 1 request/second limit.
func (c *Client) rateLimit(ctx context.Context) error {
	c.mu.Lock()
	wait := time.Second - time.Since(c.lastRequest)
	c.lastRequest = time.Now().Add(max(wait, 0))
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// doWithRetry executes the request, retrying once on 429/503.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		resp.Body.Close()
		retryAfter := 2
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if parsed, err := strconv.Atoi(ra); err == nil {
				retryAfter = parsed
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(retryAfter) * time.Second):
		}

		c.mu.Lock()
		c.lastRequest = time.Now()
		c.mu.Unlock()
		return c.httpClient.Do(req.Clone(ctx))
	}

	return resp, nil
}

func buildQuery(artist, title string) string {
	var parts []string
	if title = strings.TrimSpace(title); title != "" {
		parts = append(parts, fmt.Sprintf("recording:%q", title))
	}
	if artist = strings.TrimSpace(artist); artist != "" {
		parts = append(parts, fmt.Sprintf("artist:%q", artist))
	}
	return strings.Join(parts, " AND ")
}

func joinArtistCredits(credits []artistCredit) string {
	var parts []string
	for _, ac := range credits {
		parts = append(parts, ac.Artist.Name)
	}
	return strings.Join(parts, ", ")
}

// pickBestRelease prefers official album releases without secondary types
// (compilations, live), then the earliest date.
func pickBestRelease(releases []release) release {
	best := releases[0]
	bestScore := releaseScore(best)

	for _, rel := range releases[1:] {
		s := releaseScore(rel)
		if s > bestScore || (s == bestScore && rel.Date != "" && (best.Date == "" || rel.Date < best.Date)) {
			best = rel
			bestScore = s
		}
	}
	return best
}

func releaseScore(rel release) int {
	score := 0
	if rel.Status == "Official" {
		score += 4
	}
	if rel.ReleaseGroup.PrimaryType == "Album" {
		score += 2
	}
	if len(rel.ReleaseGroup.SecondaryTypes) == 0 {
		score++
	}
	return score
}

// MusicBrainz API response types

type searchResponse struct {
	Recordings []recording `json:"recordings"`
}

type recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	Releases     []release      `json:"releases"`
}

type artistCredit struct {
	Artist artistInfo `json:"artist"`
}

type artistInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type release struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Status       string       `json:"status"`
	Date         string       `json:"date"`
	ReleaseGroup releaseGroup `json:"release-group"`
}

type releaseGroup struct {
	PrimaryType    string   `json:"primary-type"`
	SecondaryTypes []string `json:"secondary-types"`
}
