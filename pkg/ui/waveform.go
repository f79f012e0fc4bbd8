package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var barGlyphs = []rune("▁▂▃▄▅▆▇█")

// VoiceColor maps a level in [0,1] to green, through yellow, to red.
func VoiceColor(level float64) lipgloss.Color {
	level = math.Min(1, math.Max(0, level))
	return lipgloss.Color(hslHex(120-120*level, 0.95, 0.55))
}

// Waveform renders one glyph per bar, colored by the overall level.
func Waveform(bars []float64, level float64) string {
	var b strings.Builder
	for _, v := range bars {
		v = math.Min(1, math.Max(0, v))
		b.WriteRune(barGlyphs[int(math.Round(v*float64(len(barGlyphs)-1)))])
	}
	return lipgloss.NewStyle().Foreground(VoiceColor(level)).Render(b.String())
}

// hslHex converts hue in degrees and saturation/lightness in [0,1].
func hslHex(h, s, l float64) string {
	c := (1 - math.Abs(2*l-1)) * s
	hp := math.Mod(h, 360) / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))

	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	m := l - c/2
	to := func(v float64) int { return int(math.Round((v + m) * 255)) }
	return fmt.Sprintf("#%02X%02X%02X", to(r), to(g), to(b))
}
