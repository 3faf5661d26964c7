// Package colors does the color math behind the lyric gradients: hex
// parsing, perceptual blending in LCH space and gradient generation.
package colors

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type RGB struct {
	R, G, B int
}

// lch is CIE L*C*h° under the d65 illuminant.
type lch struct {
	L, C, H float64
}

var white = RGB{255, 255, 255}

// Parse reads #RRGGBB. malformed input is white.
func Parse(hex string) RGB {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return white
	}

	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return white
	}

	return RGB{int(value >> 16 & 0xFF), int(value >> 8 & 0xFF), int(value & 0xFF)}
}

func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", clampChannel(c.R), clampChannel(c.G), clampChannel(c.B))
}

func (c RGB) Scale(factor float64) RGB {
	return RGB{
		clampChannel(int(float64(c.R) * factor)),
		clampChannel(int(float64(c.G) * factor)),
		clampChannel(int(float64(c.B) * factor)),
	}
}

func clampChannel(v int) int {
	return max(0, min(255, v))
}

// Blend mixes two colors in LCH, t=0 being a and t=1 being b.
func Blend(a string, b string, t float64) string {
	from, to := toLCH(Parse(a)), toLCH(Parse(b))
	return fromLCH(interpolate(from, to, t)).Hex()
}

// Glow brightens a color, intensity 1 adding 60%.
func Glow(hex string, intensity float64) string {
	return Parse(hex).Scale(1 + intensity*0.6).Hex()
}

// Shade scales every channel by factor.
func Shade(hex string, factor float64) string {
	return Parse(hex).Scale(factor).Hex()
}

// Lightness is L* in [0, 100].
func Lightness(hex string) float64 {
	return toLCH(Parse(hex)).L
}

// Gradient returns steps colors from start to end. very different colors
// are eased in and out so the middle does not jump.
func Gradient(start string, end string, steps int) []string {
	steps = max(steps, 2)

	from, to := toLCH(Parse(start)), toLCH(Parse(end))
	eased := math.Abs(to.C-from.C) > 30 ||
		math.Abs(hueDelta(from.H, to.H)) > 60 ||
		math.Abs(to.L-from.L) > 30

	out := make([]string, steps)
	for i := range out {
		t := float64(i) / float64(steps-1)
		if eased {
			t = smoothStep(smoothStep(t))
		}
		out[i] = fromLCH(interpolate(from, to, t)).Hex()
	}
	return out
}

// Roughness is the largest redmean distance between neighbouring colors of
// the gradient; below ~35 the gradient reads as smooth.
func Roughness(start string, end string, steps int) float64 {
	gradient := Gradient(start, end, steps)

	worst := 0.0
	for i := 1; i < len(gradient); i++ {
		worst = math.Max(worst, redmean(Parse(gradient[i-1]), Parse(gradient[i])))
	}
	return worst
}

func redmean(a RGB, b RGB) float64 {
	mean := (a.R + b.R) / 2
	dr, dg, db := a.R-b.R, a.G-b.G, a.B-b.B
	return math.Sqrt(float64((2+mean/256)*dr*dr + 4*dg*dg + (2+(255-mean)/256)*db*db))
}

// GradientText colors each rune of text along gradient.
func GradientText(text string, gradient []string, bold bool) string {
	if text == "" || len(gradient) == 0 {
		return text
	}

	runes := []rune(text)
	var b strings.Builder
	for i, r := range runes {
		idx := 0
		if len(runes) > 1 {
			idx = i * (len(gradient) - 1) / (len(runes) - 1)
		}
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(gradient[idx])).Bold(bold)
		b.WriteString(style.Render(string(r)))
	}
	return b.String()
}

// FormatTime renders seconds as m:ss.
func FormatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func smoothStep(t float64) float64 {
	t = math.Max(0, math.Min(1, t))
	return t * t * (3 - 2*t)
}

func hueDelta(from float64, to float64) float64 {
	d := to - from
	switch {
	case d > 180:
		d -= 360
	case d < -180:
		d += 360
	}
	return d
}

func interpolate(from lch, to lch, t float64) lch {
	h := math.Mod(from.H+t*hueDelta(from.H, to.H)+360, 360)
	return lch{
		L: from.L + t*(to.L-from.L),
		C: from.C + t*(to.C-from.C),
		H: h,
	}
}

func toLinear(channel int) float64 {
	v := float64(channel) / 255
	if v > 0.04045 {
		return math.Pow((v+0.055)/1.055, 2.4)
	}
	return v / 12.92
}

func fromLinear(v float64) int {
	if v > 0.0031308 {
		v = 1.055*math.Pow(v, 1/2.4) - 0.055
	} else {
		v *= 12.92
	}
	return clampChannel(int(v*255 + 0.5))
}

const (
	whiteX = 0.95047
	whiteY = 1.00000
	whiteZ = 1.08883
	labEps = 0.008856
)

func toLCH(c RGB) lch {
	r, g, b := toLinear(c.R), toLinear(c.G), toLinear(c.B)

	x := (r*0.4124564 + g*0.3575761 + b*0.1804375) / whiteX
	y := (r*0.2126729 + g*0.7151522 + b*0.0721750) / whiteY
	z := (r*0.0193339 + g*0.1191920 + b*0.9503041) / whiteZ

	f := func(t float64) float64 {
		if t > labEps {
			return math.Cbrt(t)
		}
		return 7.787*t + 16.0/116.0
	}
	fx, fy, fz := f(x), f(y), f(z)

	labA := 500 * (fx - fy)
	labB := 200 * (fy - fz)

	h := math.Atan2(labB, labA) * 180 / math.Pi
	if h < 0 {
		h += 360
	}

	return lch{L: 116*fy - 16, C: math.Hypot(labA, labB), H: h}
}

func fromLCH(c lch) RGB {
	rad := c.H * math.Pi / 180
	fy := (c.L + 16) / 116
	fx := c.C*math.Cos(rad)/500 + fy
	fz := fy - c.C*math.Sin(rad)/200

	inv := func(t float64) float64 {
		if cube := t * t * t; cube > labEps {
			return cube
		}
		return (t - 16.0/116.0) / 7.787
	}
	x, y, z := inv(fx)*whiteX, inv(fy)*whiteY, inv(fz)*whiteZ

	return RGB{
		fromLinear(x*3.2404542 - y*1.5371385 - z*0.4985314),
		fromLinear(-x*0.9692660 + y*1.8760108 + z*0.0415560),
		fromLinear(x*0.0556434 - y*0.2040259 + z*1.0572252),
	}
}
