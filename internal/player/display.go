package player

import (
	"log"
	"sync"
	"time"

	"mural-service/internal/manifest"
	"mural-service/internal/rotation"
)

// Signals is how a display reports back to the controller.
type Signals interface {
	Ended(seq uint64)
	Failed(seq uint64, err error)
}

// LogDisplay is a headless display: it logs every frame. Video has no
// natural end here, so when VideoLength is set the display reports Ended
// that long after a video frame appears.
type LogDisplay struct {
	VideoLength time.Duration
	Logger      *log.Logger

	mu      sync.Mutex
	signals Signals
	timer   *time.Timer
}

// Bind connects the display to the controller it reports to.
func (d *LogDisplay) Bind(s Signals) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.signals = s
}

func (d *LogDisplay) logf(format string, args ...any) {
	if d.Logger != nil {
		d.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (d *LogDisplay) Render(f rotation.Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	switch f.State {
	case rotation.StateEmpty:
		d.logf("display: no media available right now")
	case rotation.StateTransitioning:
		d.logf("display: fading out %s", f.Item.Src)
	case rotation.StateShowing:
		it := f.Item
		switch it.Type {
		case manifest.TypeImage:
			d.logf("display: [%d] image %s fit=%s bg=%s for %dms", f.Index, it.Src, it.FitMode, it.BgColor, it.ImageDurationMs)
		case manifest.TypeHTML:
			d.logf("display: [%d] html %s bg=%s for %dms", f.Index, it.Src, it.BgColor, it.HTMLDurationMs)
		case manifest.TypeVideo:
			d.logf("display: [%d] video %s fit=%s mute=%t volume=%.2f", f.Index, it.Src, it.FitMode, it.Mute, it.Volume)
			if d.VideoLength > 0 && d.signals != nil {
				seq, s := f.Seq, d.signals
				d.timer = time.AfterFunc(d.VideoLength, func() { s.Ended(seq) })
			}
		}
	}
}

// Stop cancels a pending simulated video end.
func (d *LogDisplay) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
