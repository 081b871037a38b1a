package player

import (
	"bytes"
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mural-service/internal/manifest"
	"mural-service/internal/rotation"
)

type signalRecorder struct {
	mu     sync.Mutex
	ended  []uint64
	failed []uint64
}

func (s *signalRecorder) Ended(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, seq)
}

func (s *signalRecorder) Failed(seq uint64, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, seq)
}

func (s *signalRecorder) endedSeqs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.ended...)
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLogDisplay_Logs(t *testing.T) {
	var out safeBuffer
	d := &LogDisplay{Logger: log.New(&out, "", 0)}

	d.Render(rotation.Frame{State: rotation.StateEmpty})
	d.Render(rotation.Frame{State: rotation.StateShowing, Index: 0, Item: &manifest.Item{Src: "a.png", Type: manifest.TypeImage, FitMode: manifest.FitCrop, ImageDurationMs: 500}})
	d.Render(rotation.Frame{State: rotation.StateTransitioning, Item: &manifest.Item{Src: "a.png"}, Fading: true})
	d.Render(rotation.Frame{State: rotation.StateShowing, Index: 1, Item: &manifest.Item{Src: "s.html", Type: manifest.TypeHTML, HTMLDurationMs: 15000}})

	s := out.String()
	assert.Contains(t, s, "no media available")
	assert.Contains(t, s, "image a.png fit=crop")
	assert.Contains(t, s, "fading out a.png")
	assert.Contains(t, s, "html s.html")
}

func TestLogDisplay_SimulatedVideoEnd(t *testing.T) {
	sig := &signalRecorder{}
	d := &LogDisplay{VideoLength: 20 * time.Millisecond, Logger: log.New(&safeBuffer{}, "", 0)}
	d.Bind(sig)

	d.Render(rotation.Frame{State: rotation.StateShowing, Seq: 7, Item: &manifest.Item{Src: "v.mp4", Type: manifest.TypeVideo}})
	require.Eventually(t, func() bool { return len(sig.endedSeqs()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []uint64{7}, sig.endedSeqs())

	// a newer frame cancels the pending end of the previous video
	d.Render(rotation.Frame{State: rotation.StateShowing, Seq: 8, Item: &manifest.Item{Src: "v.mp4", Type: manifest.TypeVideo}})
	d.Render(rotation.Frame{State: rotation.StateTransitioning, Seq: 8, Item: &manifest.Item{Src: "v.mp4"}})
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []uint64{7}, sig.endedSeqs())
}

func TestLogDisplay_DrivesController(t *testing.T) {
	d := &LogDisplay{VideoLength: 10 * time.Millisecond, Logger: log.New(&safeBuffer{}, "", 0)}
	ctl := rotation.New(d, rotation.WithTransition(time.Millisecond))
	d.Bind(ctl)
	var _ Signals = ctl

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctl.Run(ctx)

	ctl.Load(manifest.Playlist{Items: []manifest.Item{
		{Src: "a.mp4", Type: manifest.TypeVideo},
		{Src: "b.mp4", Type: manifest.TypeVideo},
	}})
	require.Eventually(t, func() bool {
		s := ctl.Snapshot()
		return s.State == rotation.StateShowing && s.Index == 1
	}, 2*time.Second, 2*time.Millisecond)

	// simulated ends keep the loop going back to the start
	require.Eventually(t, func() bool {
		s := ctl.Snapshot()
		return s.State == rotation.StateShowing && s.Index == 0
	}, 2*time.Second, 2*time.Millisecond)
}
