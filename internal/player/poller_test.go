package player

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mural-service/internal/manifest"
)

type recordingLoader struct {
	mu    sync.Mutex
	loads []manifest.Playlist
}

func (l *recordingLoader) Load(p manifest.Playlist) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads = append(l.loads, p)
}

func (l *recordingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.loads)
}

func (l *recordingLoader) last() manifest.Playlist {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads[len(l.loads)-1]
}

var noon = time.Date(2025, time.June, 4, 12, 0, 0, 0, time.UTC)

func manifestServer(t *testing.T, body *atomic.Value, status *atomic.Int32, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.NotEmpty(t, r.URL.Query().Get("_"), "cache buster")
		if code := int(status.Load()); code != 0 && code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body.Load().(string)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPoller_FetchAndResolve(t *testing.T) {
	var body atomic.Value
	var status, hits atomic.Int32
	body.Store(`{"defaults":{"imageDurationMs":500},"files":["a.png","b.mp4"],"overrides":[]}`)
	srv := manifestServer(t, &body, &status, &hits)

	loader := &recordingLoader{}
	p := NewPoller(srv.URL+"/api/manifest?player=lobby", loader, WithNow(func() time.Time { return noon }), WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.Eventually(t, func() bool { return loader.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	pl := loader.last()
	require.Len(t, pl.Items, 2)
	assert.Equal(t, 500, pl.Items[0].ImageDurationMs)
	assert.Equal(t, manifest.TypeVideo, pl.Items[1].Type)
}

func TestPoller_FailureKeepsCurrentPlaylist(t *testing.T) {
	var body atomic.Value
	var status, hits atomic.Int32
	body.Store(`{"files":["a.png"]}`)
	srv := manifestServer(t, &body, &status, &hits)

	loader := &recordingLoader{}
	p := NewPoller(srv.URL, loader, WithNow(func() time.Time { return noon }), WithInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	require.Eventually(t, func() bool { return loader.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	status.Store(http.StatusBadGateway)
	p.Reload()
	require.Eventually(t, func() bool { return hits.Load() == 2 }, 2*time.Second, 5*time.Millisecond)

	status.Store(http.StatusOK)
	body.Store(`<html>maintenance</html>`)
	p.Reload()
	require.Eventually(t, func() bool { return hits.Load() == 3 }, 2*time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, loader.count(), "failed fetches deliver nothing")

	body.Store(`{"files":["a.png","b.png"]}`)
	p.Reload()
	require.Eventually(t, func() bool { return loader.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, loader.last().Len())
}

func TestPoller_FaultedManifestDeliversEmpty(t *testing.T) {
	var body atomic.Value
	var status, hits atomic.Int32
	body.Store(`{"defaults":[1,2],"files":["a.png"]}`)
	srv := manifestServer(t, &body, &status, &hits)

	loader := &recordingLoader{}
	p := NewPoller(srv.URL, loader, WithInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.Eventually(t, func() bool { return loader.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, loader.last().Empty())
}

func TestPoller_TicksOnInterval(t *testing.T) {
	var body atomic.Value
	var status, hits atomic.Int32
	body.Store(`{"files":[]}`)
	srv := manifestServer(t, &body, &status, &hits)

	loader := &recordingLoader{}
	p := NewPoller(srv.URL, loader, WithInterval(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return loader.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// no drift after cancellation
	n := hits.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, n, hits.Load())
}

func TestPoller_ReloadCollapses(t *testing.T) {
	p := NewPoller("http://unused", &recordingLoader{})
	p.Reload()
	p.Reload()
	p.Reload()
	assert.Len(t, p.reload, 1)
}
