package player

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mural-service/internal/realtime"
)

func TestSubscriber_ReloadsOnManifestChanged(t *testing.T) {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := realtime.NewHub()
	go hub.Run(hubCtx)

	srv := httptest.NewServer(realtime.NewHandler(hub))
	defer srv.Close()

	var changes atomic.Int32
	sub := NewSubscriber("ws"+strings.TrimPrefix(srv.URL, "http"), func() { changes.Add(1) }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), changes.Load(), "welcome is not a change")

	bus := realtime.NewLocalBus(hub)
	require.NoError(t, bus.Publish(context.Background(), realtime.Event{Type: "something.else"}))
	require.NoError(t, bus.Publish(context.Background(), realtime.ManifestChanged("upload", "a.png")))
	require.Eventually(t, func() bool { return changes.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestSubscriber_ReconnectTriggersReload(t *testing.T) {
	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := realtime.NewHub()
	go hub.Run(hubCtx)

	var current atomic.Pointer[realtime.Handler]
	current.Store(realtime.NewHandler(hub))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current.Load().ServeHTTP(w, r)
	}))
	defer srv.Close()

	var changes atomic.Int32
	sub := NewSubscriber("ws"+strings.TrimPrefix(srv.URL, "http"), func() { changes.Add(1) }, nil)
	sub.delay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Run(ctx)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	// a fresh hub takes over before the old one drops its clients
	hub2 := realtime.NewHub()
	hubCtx2, stopHub2 := context.WithCancel(context.Background())
	defer stopHub2()
	go hub2.Run(hubCtx2)
	current.Store(realtime.NewHandler(hub2))
	stopHub()

	require.Eventually(t, func() bool { return hub2.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return changes.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}
