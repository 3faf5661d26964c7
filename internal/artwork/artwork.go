// Package artwork loads the album art named by mpris:artUrl and derives
// the color palette the terminal view is drawn with.
package artwork

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/charmbracelet/lipgloss"
	"github.com/nfnt/resize"

	"karolbroda.com/lyrisync/internal/colors"
)

const (
	gradientSteps = 20
	maxImageBytes = 16 << 20
)

var ErrNoArtwork = errors.New("no artwork url")

type Palette struct {
	Primary   string
	Secondary string
	Accent    string
	Dim       string
	Gradient  []string
}

func DefaultPalette() *Palette {
	return &Palette{
		Primary:   "#8BA4E8",
		Secondary: "#E8A4C8",
		Accent:    "#B8A8E8",
		Dim:       "#6272A4",
		Gradient:  colors.Gradient("#8BA4E8", "#E8A4C8", gradientSteps),
	}
}

// Fetch decodes the image behind artURL. players hand out both file:// and
// http(s) urls.
func Fetch(ctx context.Context, client *http.Client, artURL string) (image.Image, error) {
	if artURL == "" {
		return nil, ErrNoArtwork
	}

	if strings.HasPrefix(artURL, "file://") {
		return decodeFile(artURL)
	}

	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create artwork request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch artwork: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artwork fetch returned status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode artwork: %w", err)
	}
	return img, nil
}

func decodeFile(artURL string) (image.Image, error) {
	parsed, err := url.Parse(artURL)
	if err != nil {
		return nil, fmt.Errorf("invalid artwork url: %w", err)
	}

	f, err := os.Open(parsed.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artwork file: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode artwork file: %w", err)
	}
	return img, nil
}

type candidate struct {
	color      colors.RGB
	saturation float64
	brightness float64
}

func (c candidate) score() float64 {
	return c.saturation * (1 - math.Abs(c.brightness-0.6))
}

func newCandidate(item prominentcolor.ColorItem) candidate {
	rgb := colors.RGB{R: int(item.Color.R), G: int(item.Color.G), B: int(item.Color.B)}

	hi := float64(max(rgb.R, rgb.G, rgb.B)) / 255
	lo := float64(min(rgb.R, rgb.G, rgb.B)) / 255

	sat := 0.0
	if hi > 0 {
		sat = (hi - lo) / hi
	}
	return candidate{color: rgb, saturation: sat, brightness: hi}
}

// ExtractPalette picks three vivid colors from img with k-means and orders
// them by brightness. anything it cannot work with yields DefaultPalette.
func ExtractPalette(img image.Image) *Palette {
	if img == nil {
		return DefaultPalette()
	}

	items, err := prominentcolor.KmeansWithAll(5, img, prominentcolor.ArgumentDefault, prominentcolor.DefaultSize, nil)
	if err != nil || len(items) < 3 {
		return DefaultPalette()
	}

	pool := make([]candidate, len(items))
	for i, item := range items {
		pool[i] = newCandidate(item)
	}

	picked := make([]candidate, 0, 3)
	taken := func(c candidate) bool {
		for _, p := range picked {
			if p.color == c.color {
				return true
			}
		}
		return false
	}
	pick := func(minSat, minBright float64, best bool) {
		var chosen *candidate
		for i := range pool {
			c := pool[i]
			if taken(c) || c.saturation <= minSat || c.brightness <= minBright {
				continue
			}
			if chosen == nil || (best && c.score() > chosen.score()) {
				chosen = &pool[i]
			}
			if !best {
				break
			}
		}
		if chosen == nil {
			return
		}
		picked = append(picked, *chosen)
	}

	pick(0.2, 0.3, true)
	pick(0.15, 0.3, false)
	pick(0.1, 0.25, false)

	// muted covers fill the remaining slots with whatever is left
	for _, c := range pool {
		if len(picked) == 3 {
			break
		}
		if !taken(c) {
			picked = append(picked, c)
		}
	}

	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].brightness > picked[j].brightness
	})

	primary := boost(picked[0])
	accent := boost(picked[1])
	secondary := boost(picked[2])

	start, end := smoothestPair(primary, secondary, accent)

	return &Palette{
		Primary:   primary,
		Secondary: secondary,
		Accent:    accent,
		Dim:       "#6272A4",
		Gradient:  colors.Gradient(start, end, gradientSteps),
	}
}

// smoothestPair returns the ordered pair with the least rough gradient,
// preferring a brighter start when two pairs are nearly as smooth.
func smoothestPair(primary string, secondary string, accent string) (string, string) {
	pairs := [][2]string{
		{primary, secondary},
		{primary, accent},
		{secondary, primary},
		{secondary, accent},
		{accent, primary},
		{accent, secondary},
	}

	roughness := make([]float64, len(pairs))
	best := 0
	for i, p := range pairs {
		roughness[i] = colors.Roughness(p[0], p[1], gradientSteps)
		if roughness[i] < roughness[best] {
			best = i
		}
	}

	for i, p := range pairs {
		if i == best || roughness[i]-roughness[best] >= 5 {
			continue
		}
		if colors.Lightness(p[0]) > colors.Lightness(pairs[best][0]) {
			best = i
		}
	}

	return pairs[best][0], pairs[best][1]
}

// boost lifts dark colors and pulls very bright ones toward grey so both
// read on a dark terminal.
func boost(c candidate) string {
	rgb := c.color

	if c.brightness > 0 && c.brightness < 0.4 {
		rgb = rgb.Scale(math.Min(0.4/c.brightness, 2.5))
	}

	if c.brightness > 0.85 {
		avg := (rgb.R + rgb.G + rgb.B) / 3
		toward := func(v int) int {
			return avg + int(float64(v-avg)*0.7)
		}
		rgb = colors.RGB{R: toward(rgb.R), G: toward(rgb.G), B: toward(rgb.B)}
	}

	return rgb.Hex()
}

// RenderHalfBlockArt draws img with ▀ cells, two pixels per cell.
func RenderHalfBlockArt(img image.Image, cols int, rows int) []string {
	if img == nil || cols < 4 || rows < 2 {
		return nil
	}

	resized := resize.Resize(uint(cols), uint(rows*2), img, resize.Lanczos3)
	bounds := resized.Bounds()

	pixel := func(x, y int) (colors.RGB, bool) {
		if y >= bounds.Dy() {
			y = bounds.Dy() - 1
		}
		r, g, b, a := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
		return colors.RGB{R: int(r >> 8), G: int(g >> 8), B: int(b >> 8)}, a>>8 >= 128
	}

	out := make([]string, rows)
	for row := range out {
		var line strings.Builder
		for x := 0; x < bounds.Dx(); x++ {
			top, topVisible := pixel(x, row*2)
			bottom, bottomVisible := pixel(x, row*2+1)

			if !topVisible && !bottomVisible {
				line.WriteString(" ")
				continue
			}

			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(top.Hex())).
				Background(lipgloss.Color(bottom.Hex()))
			line.WriteString(style.Render("▀"))
		}
		out[row] = line.String()
	}

	return out
}
