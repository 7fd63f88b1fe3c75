//go:build gui

package gui

import (
	"image"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"melodeus/monitor"
)

// Trace palette, one color per device band.
var traceColors = []color.RGBA{
	{0, 220, 130, 255},
	{0, 190, 255, 255},
	{255, 110, 220, 255},
	{255, 210, 0, 255},
}

var (
	waveBackground = color.RGBA{18, 18, 18, 255}
	waveMidline    = color.RGBA{48, 48, 48, 255}
)

// WaveWidget draws one amplitude band per device trace, stacked vertically.
type WaveWidget struct {
	widget.BaseWidget
	mu     sync.Mutex
	traces []monitor.DeviceTrace
	live   bool
}

func NewWaveWidget() *WaveWidget {
	w := &WaveWidget{}
	w.ExtendBaseWidget(w)
	return w
}

func (w *WaveWidget) SetTraces(traces []monitor.DeviceTrace) {
	w.mu.Lock()
	w.traces = traces
	w.mu.Unlock()
	fyne.Do(func() { w.Refresh() })
}

func (w *WaveWidget) SetLive(live bool) {
	w.mu.Lock()
	w.live = live
	if !live {
		w.traces = nil
	}
	w.mu.Unlock()
	fyne.Do(func() { w.Refresh() })
}

func (w *WaveWidget) MinSize() fyne.Size {
	return fyne.NewSize(640, 320)
}

func (w *WaveWidget) CreateRenderer() fyne.WidgetRenderer {
	r := &waveRenderer{wave: w}
	r.raster = canvas.NewRaster(r.draw)
	return r
}

type waveRenderer struct {
	wave   *WaveWidget
	raster *canvas.Raster
}

func (r *waveRenderer) Layout(size fyne.Size) {
	r.raster.Resize(size)
}

func (r *waveRenderer) MinSize() fyne.Size {
	return r.wave.MinSize()
}

func (r *waveRenderer) Refresh() {
	r.raster.Refresh()
}

func (r *waveRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.raster}
}

func (r *waveRenderer) Destroy() {}

func (r *waveRenderer) draw(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, waveBackground)
		}
	}

	r.wave.mu.Lock()
	traces := r.wave.traces
	r.wave.mu.Unlock()
	if len(traces) == 0 || w == 0 {
		return img
	}

	bandH := h / len(traces)
	for i, tr := range traces {
		top := i * bandH
		mid := top + bandH/2
		for x := 0; x < w; x++ {
			img.SetRGBA(x, mid, waveMidline)
		}
		if len(tr.Samples) == 0 {
			continue
		}
		c := traceColors[i%len(traceColors)]
		per := len(tr.Samples) / w
		if per < 1 {
			per = 1
		}
		for x := 0; x < w; x++ {
			start := x * per
			if start >= len(tr.Samples) {
				break
			}
			end := start + per
			if end > len(tr.Samples) {
				end = len(tr.Samples)
			}
			var peak float32
			for _, s := range tr.Samples[start:end] {
				if s < 0 {
					s = -s
				}
				if s > peak {
					peak = s
				}
			}
			if peak > 1 {
				peak = 1
			}
			rise := int(peak * float32(bandH/2-1))
			for dy := -rise; dy <= rise; dy++ {
				y := mid + dy
				if y >= top && y < top+bandH {
					img.SetRGBA(x, y, c)
				}
			}
		}
	}
	return img
}
