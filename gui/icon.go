//go:build gui

package gui

import (
	"bytes"
	"image"
	"image/png"
	"math"

	"fyne.io/fyne/v2"
)

// appIcon renders the window and tray icon at startup: a round dark badge
// carrying a few waveform bars in the trace palette. Generated rather than
// shipped so the icon always matches the widget colors.
func appIcon() fyne.Resource {
	const size = 22
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	center := float64(size) / 2
	barHeights := []int{4, 8, 6, 9, 5}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := float64(x) - center + 0.5
			dy := float64(y) - center + 0.5
			if math.Sqrt(dx*dx+dy*dy) >= center {
				continue // transparent outside the badge
			}
			img.SetRGBA(x, y, waveBackground)
		}
	}
	for i, h := range barHeights {
		x := 4 + i*3
		c := traceColors[i%len(traceColors)]
		for dy := -h / 2; dy <= h/2; dy++ {
			for dx := 0; dx < 2; dx++ {
				img.SetRGBA(x+dx, size/2+dy, c)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return fyne.NewStaticResource("melodeus.png", buf.Bytes())
}
