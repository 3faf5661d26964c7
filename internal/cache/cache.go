// Package cache persists fetched lyrics in a JSON database so repeated
// plays of a track skip the network.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/track"
)

const (
	cacheDirName      = "lyrisync"
	databaseName      = "lyrics.json"
	durationTolerance = 0.05
)

var (
	ErrCacheMiss    = errors.New("cache miss")
	ErrCacheCorrupt = errors.New("cache corrupt")
)

type Format string

const (
	FormatLRC       Format = "lrc"
	FormatSubtitles Format = "subtitles"
	FormatRichsync  Format = "richsync"
)

func FormatFor(source lyrics.Source) Format {
	switch source {
	case lyrics.SourceSubtitles:
		return FormatSubtitles
	case lyrics.SourceRichsync:
		return FormatRichsync
	default:
		return FormatLRC
	}
}

func (f Format) Source() lyrics.Source {
	switch f {
	case FormatSubtitles:
		return lyrics.SourceSubtitles
	case FormatRichsync:
		return lyrics.SourceRichsync
	default:
		return lyrics.SourceLrclib
	}
}

type Entry struct {
	Artist    string  `json:"artist"`
	Title     string  `json:"title"`
	Album     string  `json:"album"`
	Duration  float64 `json:"duration,omitempty"`
	Format    Format  `json:"format"`
	RawLyrics string  `json:"raw_lyrics"`
	CreatedAt int64   `json:"created_at,omitempty"`
}

func (e *Entry) Key() string {
	return Key(e.Artist, e.Title, e.Album, e.Duration)
}

// Lines parses the stored payload according to its format.
func (e *Entry) Lines() ([]lyrics.Line, error) {
	lines, err := lyrics.ParseStored(e.RawLyrics, e.Format.Source())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	return lines, nil
}

type fileFormat struct {
	Entries map[string]*Entry `json:"entries"`
}

type Database struct {
	path    string
	mu      sync.RWMutex
	writeMu sync.Mutex
	entries map[string]*Entry
	now     func() time.Time
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func identity(artist, title, album string) string {
	return normalize(artist) + "|" + normalize(title) + "|" + normalize(album)
}

// Key is artist|title|album|seconds, case-folded and trimmed.
func Key(artist, title, album string, duration float64) string {
	return fmt.Sprintf("%s|%d", identity(artist, title, album), int64(math.Round(duration)))
}

// DefaultPath is used by the db subcommands when no database was configured.
func DefaultPath() (string, error) {
	xdgCache := os.Getenv("XDG_CACHE_HOME")
	if xdgCache != "" {
		return filepath.Join(xdgCache, cacheDirName, databaseName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".cache", cacheDirName, databaseName), nil
}

// Open loads the database at path. a missing file is an empty database.
func Open(path string) (*Database, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}

	db := &Database{
		path:    path,
		entries: make(map[string]*Entry),
		now:     time.Now,
	}

	if err := db.reload(); err != nil {
		return nil, err
	}

	return db, nil
}

func (d *Database) Path() string {
	return d.path
}

func (d *Database) reload() error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var file fileFormat
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
		}
	}

	entries := make(map[string]*Entry, len(file.Entries))
	for _, e := range file.Entries {
		if e == nil {
			continue
		}
		entries[e.Key()] = e
	}

	d.mu.Lock()
	d.entries = entries
	d.mu.Unlock()

	return nil
}

// Lookup finds an entry for the track. an exact key wins; otherwise any
// entry for the same artist, title and album whose duration lies within
// 5% of the track's is accepted.
func (d *Database) Lookup(info track.Info) (*Entry, error) {
	if info.Artist == "" || info.Title == "" {
		return nil, ErrCacheMiss
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if entry, ok := d.entries[Key(info.Artist, info.Title, info.Album, info.DurationSecs)]; ok {
		return entry, nil
	}

	prefix := identity(info.Artist, info.Title, info.Album) + "|"
	for key, entry := range d.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if durationMatches(info.DurationSecs, entry.Duration) {
			return entry, nil
		}
	}

	return nil, ErrCacheMiss
}

func durationMatches(query, stored float64) bool {
	if query <= 0 || stored <= 0 {
		return query <= 0 && stored <= 0
	}
	return math.Abs(query-stored) <= query*durationTolerance
}

// Store records a provider payload and persists the database.
func (d *Database) Store(info track.Info, source lyrics.Source, raw string) error {
	if info.Artist == "" || info.Title == "" || raw == "" {
		return errors.New("invalid cache entry")
	}

	entry := &Entry{
		Artist:    info.Artist,
		Title:     info.Title,
		Album:     info.Album,
		Duration:  info.DurationSecs,
		Format:    FormatFor(source),
		RawLyrics: raw,
		CreatedAt: d.now().Unix(),
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.mu.Lock()
	d.entries[entry.Key()] = entry
	snapshot := d.snapshotLocked()
	d.mu.Unlock()

	return d.writeToDisk(snapshot)
}

func (d *Database) Delete(key string) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.mu.Lock()
	if _, ok := d.entries[key]; !ok {
		d.mu.Unlock()
		return ErrCacheMiss
	}
	delete(d.entries, key)
	snapshot := d.snapshotLocked()
	d.mu.Unlock()

	return d.writeToDisk(snapshot)
}

func (d *Database) Get(key string) (*Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, ok := d.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return entry, nil
}

// List returns every entry ordered by artist then title.
func (d *Database) List() []*Entry {
	d.mu.RLock()
	result := lo.Values(d.entries)
	d.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if normalize(a.Artist) != normalize(b.Artist) {
			return normalize(a.Artist) < normalize(b.Artist)
		}
		return normalize(a.Title) < normalize(b.Title)
	})

	return result
}

func (d *Database) Stats() (count int, byFormat map[Format]int, sizeBytes int64, err error) {
	d.mu.RLock()
	byFormat = lo.CountValuesBy(lo.Values(d.entries), func(e *Entry) Format {
		return e.Format
	})
	count = len(d.entries)
	d.mu.RUnlock()

	info, err := os.Stat(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return count, byFormat, 0, nil
		}
		return count, byFormat, 0, err
	}

	return count, byFormat, info.Size(), nil
}

func (d *Database) snapshotLocked() fileFormat {
	copied := make(map[string]*Entry, len(d.entries))
	for k, v := range d.entries {
		copied[k] = v
	}
	return fileFormat{Entries: copied}
}

func (d *Database) writeToDisk(file fileFormat) error {
	if err := os.MkdirAll(filepath.Dir(d.path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	// write to temp file first, then rename for atomicity
	tmp, err := os.CreateTemp(filepath.Dir(d.path), filepath.Base(d.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, d.path)
}
