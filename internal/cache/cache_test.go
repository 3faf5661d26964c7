package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/track"
)

func testTrack() track.Info {
	return track.Info{Title: "Song", Artist: "Band", Album: "LP", DurationSecs: 200}
}

func TestKey(t *testing.T) {
	got := Key("  The Band ", "SONG", "Lp", 199.6)
	if got != "the band|song|lp|200" {
		t.Errorf("Key() = %q", got)
	}
}

func TestStoreAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lyrics.json")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Store(testTrack(), lyrics.SourceLrclib, "[00:01.00]one\n"); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}

	entry, err := reopened.Lookup(testTrack())
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if entry.Format != FormatLRC {
		t.Errorf("format = %q, want lrc", entry.Format)
	}

	lines, err := entry.Lines()
	if err != nil || len(lines) != 1 || lines[0].Text != "one" {
		t.Fatalf("Lines() = (%+v, %v)", lines, err)
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestLookupDurationTolerance(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "lyrics.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Store(testTrack(), lyrics.SourceLrclib, "[00:01.00]one\n"); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	tests := []struct {
		name     string
		duration float64
		wantHit  bool
	}{
		{"exact", 200, true},
		{"within five percent", 209, true},
		{"outside five percent", 215, false},
		{"unknown duration", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := testTrack()
			info.DurationSecs = tt.duration
			_, err := db.Lookup(info)
			if tt.wantHit && err != nil {
				t.Fatalf("Lookup() error = %v, want hit", err)
			}
			if !tt.wantHit && !errors.Is(err, ErrCacheMiss) {
				t.Fatalf("Lookup() error = %v, want miss", err)
			}
		})
	}

	other := testTrack()
	other.Title = "song "
	other.Artist = "BAND"
	if _, err := db.Lookup(other); err != nil {
		t.Errorf("case and space folding: Lookup() error = %v", err)
	}
}

func TestRichsyncEntryKeepsWords(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "lyrics.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	raw := lyrics.RichsyncStored(`[{"ts":1,"x":"hi there","words":[{"start":1,"end":1.5,"text":"hi"},{"start":1.5,"end":2,"text":"there"}]}]`)
	if err := db.Store(testTrack(), lyrics.SourceRichsync, raw); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	entry, err := db.Lookup(testTrack())
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if entry.Format.Source() != lyrics.SourceRichsync {
		t.Errorf("source = %v, want richsync", entry.Format.Source())
	}
	lines, err := entry.Lines()
	if err != nil || len(lines) != 1 || len(lines[0].Words) != 2 {
		t.Fatalf("Lines() = (%+v, %v)", lines, err)
	}
}

func TestDeleteAndStats(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "lyrics.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	second := testTrack()
	second.Title = "Another"
	_ = db.Store(testTrack(), lyrics.SourceLrclib, "[00:01.00]one\n")
	_ = db.Store(second, lyrics.SourceSubtitles, "[00:02.00]two\n")

	count, byFormat, size, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if count != 2 || byFormat[FormatLRC] != 1 || byFormat[FormatSubtitles] != 1 || size == 0 {
		t.Fatalf("Stats() = %d %v %d", count, byFormat, size)
	}

	list := db.List()
	if len(list) != 2 || list[0].Title != "Another" {
		t.Fatalf("List() order = %v", list)
	}

	if err := db.Delete(list[0].Key()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := db.Delete(list[0].Key()); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("second Delete() error = %v, want miss", err)
	}
	if len(db.List()) != 1 {
		t.Fatalf("entry not deleted")
	}
}

func TestOpenCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lyrics.json")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, ErrCacheCorrupt) {
		t.Fatalf("Open() error = %v, want corrupt", err)
	}
}

func TestWatchReloadsExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lyrics.json")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	writer, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 16)
	go func() {
		_ = db.Watch(ctx, func() { reloaded <- struct{}{} })
	}()

	deadline := time.After(5 * time.Second)
	for {
		if err := writer.Store(testTrack(), lyrics.SourceLrclib, "[00:01.00]one\n"); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
		select {
		case <-reloaded:
			if _, err := db.Lookup(testTrack()); err != nil {
				t.Fatalf("Lookup() after reload error = %v", err)
			}
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatalf("database was not reloaded")
		}
	}
}
