// Package terminal covers what the view needs from the terminal beyond
// plain text: the kitty graphics protocol and restoring state on exit.
package terminal

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/nfnt/resize"
)

const (
	kittyChunk = 4096
	cellWidth  = 10
	cellHeight = 20
)

type Capabilities struct {
	KittyGraphics bool
	TermProgram   string
}

// DetectCapabilities reports what the terminal can do. kitty graphics are
// opt-in; useKitty comes from config.
func DetectCapabilities(useKitty bool) *Capabilities {
	caps := &Capabilities{
		KittyGraphics: useKitty,
		TermProgram:   os.Getenv("TERM_PROGRAM"),
	}
	if caps.KittyGraphics && caps.TermProgram == "" {
		caps.TermProgram = "kitty"
	}
	return caps
}

var resetSequences = []string{
	"\033[?25h",   // show cursor
	"\033[0m",     // attributes
	"\033[?1049l", // alt screen
	"\033[?1000l",
	"\033[?1002l",
	"\033[?1003l",
	"\033[?1006l",
}

// Reset restores the cursor, attributes, screen and mouse modes, for use
// after the program loop exits abnormally.
func Reset(w io.Writer) {
	_, _ = io.WriteString(w, strings.Join(resetSequences, ""))
	if f, ok := w.(*os.File); ok {
		_ = f.Sync()
	}
}

// EncodeImageForKitty fits img into cols x rows cells, keeping its aspect
// ratio, and returns the escape sequence transmitting it as png. it
// returns "" when the image cannot be encoded.
func EncodeImageForKitty(img image.Image, cols int, rows int) string {
	if img == nil || cols <= 0 || rows <= 0 {
		return ""
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return ""
	}

	width, height := fit(bounds.Dx(), bounds.Dy(), cols*cellWidth, rows*cellHeight)
	resized := resize.Resize(uint(width), uint(height), img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return ""
	}

	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	var out strings.Builder
	for start := 0; start < len(encoded); start += kittyChunk {
		end := min(start+kittyChunk, len(encoded))

		more := 1
		if end == len(encoded) {
			more = 0
		}

		if start == 0 {
			fmt.Fprintf(&out, "\x1b_Ga=T,f=100,c=%d,r=%d,m=%d;%s\x1b\\", cols, rows, more, encoded[start:end])
		} else {
			fmt.Fprintf(&out, "\x1b_Gm=%d;%s\x1b\\", more, encoded[start:end])
		}
	}

	return out.String()
}

// fit scales w x h to the largest size inside maxW x maxH with the same
// aspect ratio, never below 10px on either side.
func fit(w int, h int, maxW int, maxH int) (int, int) {
	aspect := float64(w) / float64(h)
	if aspect > float64(maxW)/float64(maxH) {
		maxH = int(float64(maxW) / aspect)
	} else {
		maxW = int(float64(maxH) * aspect)
	}
	return max(maxW, 10), max(maxH, 10)
}
