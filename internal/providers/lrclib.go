package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"karolbroda.com/lyrisync/internal/lyrics"
)

const DefaultLrclibURL = "https://lrclib.net/api/get"

type lrclibResponse struct {
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	SyncedLyrics *string `json:"syncedLyrics"`
}

type Lrclib struct {
	baseURL string
	client  *http.Client
}

func NewLrclib(baseURL string, client *http.Client) *Lrclib {
	if baseURL == "" {
		baseURL = DefaultLrclibURL
	}
	return &Lrclib{baseURL: baseURL, client: client}
}

func (l *Lrclib) Name() string {
	return NameLrclib
}

func (l *Lrclib) requestURL(req Request) (string, error) {
	parsed, err := url.Parse(l.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid lrclib url %q: %w", l.baseURL, err)
	}

	query := parsed.Query()
	query.Set("artist_name", req.Artist)
	query.Set("track_name", req.Title)
	if req.Album != "" {
		query.Set("album_name", req.Album)
	}
	if req.Duration > 0 {
		query.Set("duration", strconv.FormatInt(int64(math.Round(req.Duration)), 10))
	}
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

func (l *Lrclib) Fetch(ctx context.Context, req Request) (Result, error) {
	if req.Artist == "" || req.Title == "" {
		return Result{}, nil
	}

	requestURL, err := l.requestURL(req)
	if err != nil {
		return Result{}, apiError(NameLrclib, "%w", err)
	}

	resp, err := get(ctx, l.client, NameLrclib, requestURL, nil)
	if err != nil {
		return Result{}, err
	}

	if resp.status == http.StatusNotFound {
		return Result{}, nil
	}
	if resp.status < 200 || resp.status > 299 {
		return Result{}, apiError(NameLrclib, "unexpected status %d: %s", resp.status, snippet(resp.body))
	}

	var payload lrclibResponse
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return Result{}, decodeError(NameLrclib, fmt.Errorf("failed to decode lrclib json: %w", err))
	}

	if payload.SyncedLyrics == nil || *payload.SyncedLyrics == "" {
		return Result{}, nil
	}

	synced := *payload.SyncedLyrics
	return Result{
		Lines:  lyrics.ParseLRC(synced),
		Raw:    synced,
		Source: lyrics.SourceLrclib,
	}, nil
}
