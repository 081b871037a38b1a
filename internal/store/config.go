package store

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"mural-service/internal/manifest"
)

// ConfigDoc is the on-disk shape of media.json. Items holds the per-file
// overrides.
type ConfigDoc struct {
	Defaults manifest.Props      `json:"defaults"`
	Items    []manifest.Override `json:"items"`
}

// Config guards media.json. Every mutation is a read-modify-write under one
// mutex, and every write replaces the file atomically.
type Config struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

func NewConfig(fs afero.Fs, mediaDir string) *Config {
	return &Config{fs: fs, path: filepath.Join(mediaDir, manifest.ConfigFile)}
}

// Load returns the current document. When the file exists but cannot be
// decoded the error is returned alongside an empty document, so callers can
// log it and carry on with nothing configured.
func (c *Config) Load() (ConfigDoc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

func (c *Config) load() (ConfigDoc, error) {
	var doc ConfigDoc
	if err := readJSON(c.fs, c.path, &doc); err != nil {
		return ConfigDoc{Items: []manifest.Override{}}, err
	}
	if doc.Items == nil {
		doc.Items = []manifest.Override{}
	}
	return doc, nil
}

// update applies fn to the current document and writes the result. A
// document that fails to decode is replaced, not merged into.
func (c *Config) update(fn func(*ConfigDoc) error) (ConfigDoc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.load()
	if err != nil {
		log.Printf("store: config: %v; starting from an empty config", err)
	}
	if err := fn(&doc); err != nil {
		return ConfigDoc{}, err
	}
	if err := writeJSON(c.fs, c.path, &doc); err != nil {
		return ConfigDoc{}, fmt.Errorf("save config: %w", err)
	}
	return doc, nil
}

// SetDefaults replaces the defaults wholesale.
func (c *Config) SetDefaults(p manifest.Props) (manifest.Props, error) {
	doc, err := c.update(func(d *ConfigDoc) error {
		d.Defaults = p
		return nil
	})
	return doc.Defaults, err
}

// UpsertOverride merges o into the existing override for o.Src, or appends
// it. Fields o leaves unset keep their stored value.
func (c *Config) UpsertOverride(o manifest.Override) (manifest.Override, error) {
	if o.Src == "" {
		return manifest.Override{}, ErrInvalidName
	}
	var out manifest.Override
	_, err := c.update(func(d *ConfigDoc) error {
		for i := range d.Items {
			if d.Items[i].Src == o.Src {
				d.Items[i].Props = d.Items[i].Props.Merge(o.Props)
				out = d.Items[i]
				return nil
			}
		}
		d.Items = append(d.Items, o)
		out = o
		return nil
	})
	return out, err
}

// DeleteOverride drops every override for src. A missing override is not
// an error.
func (c *Config) DeleteOverride(src string) error {
	_, err := c.update(func(d *ConfigDoc) error {
		kept := d.Items[:0]
		for _, it := range d.Items {
			if it.Src != src {
				kept = append(kept, it)
			}
		}
		d.Items = kept
		return nil
	})
	return err
}
