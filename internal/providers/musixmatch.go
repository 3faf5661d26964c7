package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/similarity"
)

const (
	DefaultMusixmatchURL = "https://apic-desktop.musixmatch.com/ws/1.1/"
	musixmatchAppID      = "web-desktop-app-v1.0"
	searchPageSize       = "10"
)

type mxmHeader struct {
	StatusCode int `json:"status_code"`
}

type mxmEnvelope struct {
	Message struct {
		Header mxmHeader       `json:"header"`
		Body   json.RawMessage `json:"body"`
	} `json:"message"`
}

type macroBody struct {
	MacroCalls map[string]mxmEnvelope `json:"macro_calls"`
}

type richsyncCallBody struct {
	Richsync struct {
		Body string `json:"richsync_body"`
	} `json:"richsync"`
}

type subtitlesCallBody struct {
	SubtitleList []struct {
		Subtitle struct {
			Body string `json:"subtitle_body"`
		} `json:"subtitle"`
	} `json:"subtitle_list"`
}

type searchBody struct {
	TrackList []struct {
		Track similarity.Candidate `json:"track"`
	} `json:"track_list"`
}

// decodeBody reports false for the bodies musixmatch sends when there is
// nothing to return. any other body must fit v.
func decodeBody(raw json.RawMessage, v any) (bool, error) {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "[]", "{}", "null", `""`:
		return false, nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return false, decodeError(NameMusixmatch, fmt.Errorf("unexpected body shape: %w", err))
	}
	return true, nil
}

type Musixmatch struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewMusixmatch(baseURL string, token string, client *http.Client) *Musixmatch {
	if baseURL == "" {
		baseURL = DefaultMusixmatchURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Musixmatch{baseURL: baseURL, token: token, client: client}
}

func (m *Musixmatch) Name() string {
	return NameMusixmatch
}

// Fetch looks the track up by external id first, then by scored search,
// then by the remote matcher on artist and title.
func (m *Musixmatch) Fetch(ctx context.Context, req Request) (Result, error) {
	if m.token == "" {
		return Result{}, nil
	}

	if req.ExternalID != "" {
		params := url.Values{}
		params.Set("track_spotify_id", req.ExternalID)
		m.setDuration(params, req)

		res, err := m.macro(ctx, params)
		if err != nil || !res.Empty() {
			return res, err
		}
		slog.Debug("musixmatch has nothing for external id", "id", req.ExternalID)
	}

	if req.Artist == "" || req.Title == "" {
		return Result{}, nil
	}

	res, found, err := m.searchAndFetch(ctx, req)
	if err != nil || found {
		return res, err
	}

	params := url.Values{}
	params.Set("q_artist", req.Artist)
	params.Set("q_track", req.Title)
	m.setDuration(params, req)
	return m.macro(ctx, params)
}

func (m *Musixmatch) setDuration(params url.Values, req Request) {
	if req.Duration > 0 {
		params.Set("q_duration", strconv.FormatInt(int64(math.Round(req.Duration)), 10))
	}
}

func (m *Musixmatch) endpoint(method string, params url.Values) string {
	params.Set("format", "json")
	params.Set("app_id", musixmatchAppID)
	params.Set("usertoken", m.token)
	return m.baseURL + method + "?" + params.Encode()
}

func (m *Musixmatch) call(ctx context.Context, method string, params url.Values) (*mxmEnvelope, error) {
	header := http.Header{}
	header.Set("Cookie", "x-mxm-token-guid="+m.token)

	resp, err := get(ctx, m.client, NameMusixmatch, m.endpoint(method, params), header)
	if err != nil {
		return nil, err
	}
	if resp.status < 200 || resp.status > 299 {
		return nil, apiError(NameMusixmatch, "%s returned status %d: %s", method, resp.status, snippet(resp.body))
	}

	var env mxmEnvelope
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return nil, decodeError(NameMusixmatch, fmt.Errorf("failed to decode %s: %w", method, err))
	}

	switch env.Message.Header.StatusCode {
	case http.StatusUnauthorized:
		return nil, apiError(NameMusixmatch, "%s rejected the usertoken", method)
	case http.StatusTooManyRequests:
		return nil, transportError(NameMusixmatch, fmt.Errorf("%s rate limited", method))
	}

	return &env, nil
}

func (m *Musixmatch) macro(ctx context.Context, params url.Values) (Result, error) {
	params.Set("namespace", "lyrics_richsynched")
	params.Set("subtitle_format", "mxm")
	params.Set("optional_calls", "track.richsync")

	env, err := m.call(ctx, "macro.subtitles.get", params)
	if err != nil {
		return Result{}, err
	}

	var body macroBody
	found, err := decodeBody(env.Message.Body, &body)
	if err != nil {
		return Result{}, err
	}
	if !found || body.MacroCalls == nil {
		return Result{}, nil
	}

	matcher, ok := body.MacroCalls["matcher.track.get"]
	if !ok || matcher.Message.Header.StatusCode != http.StatusOK {
		return Result{}, nil
	}

	if rich, ok := body.MacroCalls["track.richsync.get"]; ok && rich.Message.Header.StatusCode == http.StatusOK {
		var rb richsyncCallBody
		found, err := decodeBody(rich.Message.Body, &rb)
		if err != nil {
			return Result{}, err
		}
		if found && rb.Richsync.Body != "" {
			lines, err := lyrics.ParseRichsync(rb.Richsync.Body)
			if err == nil && len(lines) > 0 {
				return tagged(lines, lyrics.RichsyncStored(rb.Richsync.Body)), nil
			}
			slog.Debug("richsync body unusable, falling back to subtitles", "error", err)
		}
	}

	if subs, ok := body.MacroCalls["track.subtitles.get"]; ok && subs.Message.Header.StatusCode == http.StatusOK {
		var sb subtitlesCallBody
		found, err := decodeBody(subs.Message.Body, &sb)
		if err != nil {
			return Result{}, err
		}
		if found && len(sb.SubtitleList) > 0 {
			raw := sb.SubtitleList[0].Subtitle.Body
			if raw == "" {
				return Result{}, nil
			}
			lines, err := lyrics.ParseSubtitles(raw)
			if err != nil {
				return Result{}, decodeError(NameMusixmatch, err)
			}
			return tagged(lines, lyrics.FormatLRC(lines)), nil
		}
	}

	return Result{}, nil
}

// tagged marks a result as richsync when any line carries word timings or
// the raw payload is marker-prefixed, and as subtitles otherwise.
func tagged(lines []lyrics.Line, raw string) Result {
	source := lyrics.SourceSubtitles
	if lyrics.HasWordTimings(lines) || lyrics.IsRichsyncPayload(raw) {
		source = lyrics.SourceRichsync
	}
	return Result{Lines: lines, Raw: raw, Source: source}
}

func (m *Musixmatch) search(ctx context.Context, req Request) ([]similarity.Candidate, error) {
	params := url.Values{}
	params.Set("q_artist", req.Artist)
	params.Set("q_track", req.Title)
	if req.Album != "" {
		params.Set("q_album", req.Album)
	}
	m.setDuration(params, req)
	params.Set("page_size", searchPageSize)
	params.Set("f_has_lyrics", "1")

	env, err := m.call(ctx, "track.search", params)
	if err != nil {
		return nil, err
	}

	var body searchBody
	found, err := decodeBody(env.Message.Body, &body)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	candidates := make([]similarity.Candidate, 0, len(body.TrackList))
	for _, item := range body.TrackList {
		if item.Track != nil {
			candidates = append(candidates, item.Track)
		}
	}
	return candidates, nil
}

func (m *Musixmatch) searchAndFetch(ctx context.Context, req Request) (Result, bool, error) {
	candidates, err := m.search(ctx, req)
	if err != nil {
		if IsTransient(err) {
			return Result{}, false, err
		}
		slog.Debug("musixmatch search failed, using matcher", "error", err)
		return Result{}, false, nil
	}

	match, ok := similarity.BestMatch(candidates, similarity.Query{
		Title:    req.Title,
		Artist:   req.Artist,
		Album:    req.Album,
		Duration: req.Duration,
	})
	if !ok {
		slog.Debug("no confident musixmatch candidate", "candidates", len(candidates))
		return Result{}, false, nil
	}

	best := candidates[match.Index]
	slog.Debug("musixmatch candidate selected",
		"title", best.Title(),
		"artist", best.Artist(),
		"score", match.Score.Value,
	)

	if isInstrumental(best) {
		return Result{
			Lines:  []lyrics.Line{{TimeSeconds: 0, Text: lyrics.InstrumentalText}},
			Source: lyrics.SourceSubtitles,
		}, true, nil
	}

	id, ok := best.Int("commontrack_id")
	if !ok || id == 0 {
		return Result{}, false, nil
	}

	params := url.Values{}
	params.Set("commontrack_id", strconv.FormatInt(id, 10))
	m.setDuration(params, req)

	res, err := m.macro(ctx, params)
	if err != nil {
		return Result{}, false, err
	}
	return res, !res.Empty(), nil
}

func isInstrumental(c similarity.Candidate) bool {
	switch v := c["instrumental"].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	default:
		return false
	}
}
