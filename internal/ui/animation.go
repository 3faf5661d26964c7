package ui

import (
	"math"
)

const transitionFrames = 8

// AnimState drives the slide, reveal and glow of a newly active line.
type AnimState struct {
	Progress float64
	Reveal   float64
	Glow     float64
	Shimmer  float64
}

func (a *AnimState) Reset() {
	*a = AnimState{}
}

// Start begins a transition toward a new line.
func (a *AnimState) Start() {
	a.Progress = 0
	a.Reveal = 0
	a.Glow = 1
}

// Step advances every animation by one frame.
func (a *AnimState) Step(frame int) {
	if a.Progress < 1 {
		a.Progress = math.Min(1, a.Progress+1.0/transitionFrames)
	}

	if a.Reveal < 1 {
		a.Reveal = math.Min(1, a.Reveal+0.08)
	}

	if a.Glow > 0 {
		a.Glow *= 0.85
		if a.Glow < 0.01 {
			a.Glow = 0
		}
	}

	a.Shimmer = float64(frame) * 0.05
}

// Done reports whether nothing is left to animate.
func (a *AnimState) Done() bool {
	return a.Progress >= 1 && a.Reveal >= 1 && a.Glow == 0
}

func (a *AnimState) SlideOffset() float64 {
	return easeOutCubic(a.Progress)
}

func easeOutCubic(t float64) float64 {
	t = clamp(t, 0, 1)
	return 1 - math.Pow(1-t, 3)
}

func easeOutQuart(t float64) float64 {
	t = clamp(t, 0, 1)
	return 1 - math.Pow(1-t, 4)
}

func lerp(a float64, b float64, t float64) float64 {
	return a + (b-a)*t
}

func clamp(v float64, lo float64, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
