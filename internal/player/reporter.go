package player

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"mural-service/internal/playlog"
	"mural-service/internal/rotation"
)

const reportQueue = 64

// PlayReporter wraps a Display and posts a proof-of-play record every time
// an item leaves the screen. Render only enqueues; Run does the posting.
type PlayReporter struct {
	next   rotation.Display
	url    string
	token  string
	player string
	client *http.Client
	now    func() time.Time

	queue chan playlog.Play
	open  *openPlay // touched only from Render
}

type openPlay struct {
	seq     uint64
	src     string
	typ     string
	started time.Time
}

func NewPlayReporter(next rotation.Display, playsURL, token, player string) *PlayReporter {
	return &PlayReporter{
		next:   next,
		url:    playsURL,
		token:  token,
		player: player,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
		queue:  make(chan playlog.Play, reportQueue),
	}
}

func (r *PlayReporter) Render(f rotation.Frame) {
	r.track(f)
	if r.next != nil {
		r.next.Render(f)
	}
}

func (r *PlayReporter) track(f rotation.Frame) {
	now := r.now()
	if r.open != nil {
		switch {
		case f.State == rotation.StateTransitioning && f.Seq == r.open.seq:
			r.close(now, playlog.OutcomeShown)
		case f.State != rotation.StateTransitioning:
			// replaced without a fade: reload or empty playlist
			r.close(now, playlog.OutcomeCutOff)
		}
	}
	if f.State == rotation.StateShowing && f.Item != nil {
		r.open = &openPlay{seq: f.Seq, src: f.Item.Src, typ: string(f.Item.Type), started: now}
	}
}

func (r *PlayReporter) close(now time.Time, outcome string) {
	p := playlog.Play{
		ID:         uuid.NewString(),
		Player:     r.player,
		Src:        r.open.src,
		Type:       r.open.typ,
		Outcome:    outcome,
		StartedAt:  r.open.started.UTC(),
		DurationMs: now.Sub(r.open.started).Milliseconds(),
	}
	r.open = nil
	select {
	case r.queue <- p:
	default:
		log.Printf("player: play queue full, dropping %s", p.Src)
	}
}

// Run posts queued plays, a few at a time, until ctx is cancelled. Posts
// already started are allowed to finish.
func (r *PlayReporter) Run(ctx context.Context) error {
	p := pool.New().WithMaxGoroutines(2)
	defer p.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case play := <-r.queue:
			p.Go(func() {
				if err := r.post(ctx, play); err != nil && ctx.Err() == nil {
					log.Printf("player: report play %s: %v", play.Src, err)
				}
			})
		}
	}
}

func (r *PlayReporter) post(ctx context.Context, play playlog.Play) error {
	body, err := json.Marshal(play)
	if err != nil {
		return err
	}
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")
			if r.token != "" {
				req.Header.Set("Authorization", "Bearer "+r.token)
			}
			resp, err := r.client.Do(req)
			if err != nil {
				return err
			}
			resp.Body.Close()
			switch {
			case resp.StatusCode < 300:
				return nil
			case resp.StatusCode >= 500:
				return fmt.Errorf("status %d", resp.StatusCode)
			default:
				return retry.Unrecoverable(fmt.Errorf("status %d", resp.StatusCode))
			}
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}
