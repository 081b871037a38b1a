package player

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gorilla/websocket"

	"mural-service/internal/realtime"
)

const (
	pushReadWait   = 75 * time.Second
	pushWriteWait  = 10 * time.Second
	pushMaxBackoff = 30 * time.Second
)

// Subscriber listens on the server websocket and calls onChange whenever
// the manifest changed. After a reconnect it calls onChange once, since
// events may have been missed while disconnected. Polling keeps running
// regardless; push only shortens the delay.
type Subscriber struct {
	url      string
	header   http.Header
	onChange func()
	dialer   *websocket.Dialer
	delay    time.Duration
}

func NewSubscriber(wsURL string, onChange func(), header http.Header) *Subscriber {
	return &Subscriber{
		url:      wsURL,
		header:   header,
		onChange: onChange,
		dialer:   websocket.DefaultDialer,
		delay:    time.Second,
	}
}

// Run keeps a connection open until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	connected := false
	for {
		conn, err := retry.DoWithData(
			func() (*websocket.Conn, error) {
				conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
				return conn, err
			},
			retry.Context(ctx),
			retry.Attempts(0),
			retry.Delay(s.delay),
			retry.MaxDelay(pushMaxBackoff),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				log.Printf("player: push connect attempt %d: %v", n+1, err)
			}),
		)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if connected {
			s.onChange()
		}
		connected = true
		log.Printf("player: push connected to %s", s.url)

		err = s.listen(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("player: push disconnected: %v", err)
	}
}

func (s *Subscriber) listen(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(pushWriteWait))
			_ = conn.Close()
		case <-stop:
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pushReadWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pushReadWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(pushWriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pushReadWait))

		var ev realtime.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("player: push: bad message: %v", err)
			continue
		}
		if ev.Type == realtime.TypeManifestChanged {
			s.onChange()
		}
	}
}
