// Package providers fetches synced lyrics from remote sources.
package providers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/track"
)

const (
	NameLrclib     = "lrclib"
	NameMusixmatch = "musixmatch"
)

var DefaultOrder = []string{NameLrclib, NameMusixmatch}

type Request struct {
	Artist     string
	Title      string
	Album      string
	Duration   float64
	ExternalID string
}

func RequestFor(info track.Info) Request {
	return Request{
		Artist:     info.Artist,
		Title:      info.Title,
		Album:      info.Album,
		Duration:   info.DurationSecs,
		ExternalID: info.ExternalID,
	}
}

// Result is empty when the provider has no lyrics for the track. Raw is
// the payload worth persisting, if any.
type Result struct {
	Lines  []lyrics.Line
	Raw    string
	Source lyrics.Source
}

func (r Result) Empty() bool {
	return len(r.Lines) == 0
}

type Provider interface {
	Name() string
	Fetch(ctx context.Context, req Request) (Result, error)
}

type Options struct {
	LrclibURL       string
	MusixmatchURL   string
	MusixmatchToken string
	Client          *http.Client
}

// Build instantiates providers in the configured order. unknown names are
// skipped with a warning; musixmatch without a token is skipped silently.
func Build(names []string, opts Options) []Provider {
	var out []Provider

	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case NameLrclib:
			out = append(out, NewLrclib(opts.LrclibURL, opts.Client))
		case NameMusixmatch:
			if opts.MusixmatchToken == "" {
				slog.Debug("musixmatch disabled, no usertoken configured")
				continue
			}
			out = append(out, NewMusixmatch(opts.MusixmatchURL, opts.MusixmatchToken, opts.Client))
		default:
			slog.Warn("unknown lyrics provider", "name", name)
		}
	}

	return out
}

// Chain tries providers in order. transport errors and empty results move
// on to the next provider; any other error ends the chain and is returned.
// an exhausted chain yields an empty result and no error.
func Chain(ctx context.Context, list []Provider, req Request) (Result, string, error) {
	for _, p := range list {
		if ctx.Err() != nil {
			return Result{}, "", ctx.Err()
		}

		res, err := p.Fetch(ctx, req)
		if err != nil {
			if IsTransient(err) {
				slog.Debug("provider unavailable, trying next", "provider", p.Name(), "error", err)
				continue
			}
			return Result{}, p.Name(), err
		}

		if res.Empty() {
			slog.Debug("provider has no lyrics", "provider", p.Name(), "artist", req.Artist, "title", req.Title)
			continue
		}

		return res, p.Name(), nil
	}

	return Result{}, "", nil
}
