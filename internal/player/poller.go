// Package player keeps a rotation controller fed: it polls the manifest,
// listens for push notifications, renders frames and reports plays.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"mural-service/internal/manifest"
)

const (
	DefaultInterval = 60 * time.Second
	maxManifestSize = 8 << 20
)

// Loader receives every freshly resolved playlist.
type Loader interface {
	Load(manifest.Playlist)
}

type Poller struct {
	url      string
	loader   Loader
	client   *http.Client
	interval time.Duration
	now      func() time.Time
	reload   chan struct{}
}

type PollerOption func(*Poller)

func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithHTTPClient(c *http.Client) PollerOption {
	return func(p *Poller) { p.client = c }
}

func WithNow(now func() time.Time) PollerOption {
	return func(p *Poller) { p.now = now }
}

func NewPoller(manifestURL string, loader Loader, opts ...PollerOption) *Poller {
	p := &Poller{
		url:      manifestURL,
		loader:   loader,
		client:   &http.Client{Timeout: 15 * time.Second},
		interval: DefaultInterval,
		now:      time.Now,
		reload:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run fetches once immediately, then on every tick and on every Reload,
// until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		case <-p.reload:
			p.poll(ctx)
			ticker.Reset(p.interval)
		}
	}
}

// Reload asks for an immediate fetch. Requests made while one is already
// pending collapse into it.
func (p *Poller) Reload() {
	select {
	case p.reload <- struct{}{}:
	default:
	}
}

// poll delivers a new playlist on success. A failed fetch leaves the
// current playlist in place; a faulted manifest delivers its (empty)
// resolution.
func (p *Poller) poll(ctx context.Context) {
	m, err := p.Fetch(ctx)
	if err != nil {
		var fe *manifest.FaultError
		if !errors.As(err, &fe) {
			if ctx.Err() == nil {
				log.Printf("player: manifest fetch: %v; keeping current playlist", err)
			}
			return
		}
		log.Printf("player: %v", err)
	}
	pl := m.Resolve(p.now())
	log.Printf("player: manifest loaded: %d eligible of %d files (rev %s)", pl.Len(), len(m.Files)+len(m.Items), pl.Revision)
	p.loader.Load(pl)
}

// Fetch downloads and decodes the manifest. The URL gets a cache-busting
// "_" parameter.
func (p *Poller) Fetch(ctx context.Context) (manifest.Manifest, error) {
	u, err := url.Parse(p.url)
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("manifest url: %w", err)
	}
	q := u.Query()
	q.Set("_", strconv.FormatInt(p.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return manifest.Manifest{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.client.Do(req)
	if err != nil {
		return manifest.Manifest{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return manifest.Manifest{}, fmt.Errorf("manifest: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("manifest: read body: %w", err)
	}
	return manifest.Decode(data)
}
