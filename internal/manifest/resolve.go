package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"mural-service/internal/schedule"
)

const (
	DefaultImageDurationMs = 10000
	DefaultHTMLDurationMs  = 15000
	DefaultBgColor         = "#000000"
	DefaultVolume          = 1.0

	// MaxDurationMs caps image and html durations at one day.
	MaxDurationMs = 24 * 60 * 60 * 1000
)

// SystemDefaults is the bottom layer beneath manifest defaults.
func SystemDefaults() Item {
	return Item{
		Type:            TypeImage,
		FitMode:         FitContain,
		ImageDurationMs: DefaultImageDurationMs,
		HTMLDurationMs:  DefaultHTMLDurationMs,
		Mute:            true,
		Volume:          DefaultVolume,
		BgColor:         DefaultBgColor,
		Schedule:        schedule.Always(),
	}
}

// Normalize fills every field of defaults that is missing or unusable from
// SystemDefaults.
func Normalize(defaults Props) Item {
	return apply(SystemDefaults(), defaults)
}

// apply layers p over base, keeping base for values p sets badly.
func apply(base Item, p Props) Item {
	out := base
	if p.FitMode != nil && p.FitMode.Valid() {
		out.FitMode = *p.FitMode
	}
	if p.ImageDurationMs != nil && *p.ImageDurationMs > 0 {
		out.ImageDurationMs = *p.ImageDurationMs
	}
	if p.HTMLDurationMs != nil && *p.HTMLDurationMs > 0 {
		out.HTMLDurationMs = *p.HTMLDurationMs
	}
	if p.Mute != nil {
		out.Mute = *p.Mute
	}
	if p.Volume != nil {
		out.Volume = clamp01(*p.Volume)
	}
	if p.BgColor != nil && *p.BgColor != "" {
		out.BgColor = *p.BgColor
	}
	if p.Schedule != nil {
		out.Schedule = p.Schedule
	}
	return out
}

func clamp01(v float64) float64 {
	if v != v || v < 0 { // NaN
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Resolve merges the inventory with overrides and defaults and keeps the
// items whose schedule admits now. Inventory order is preserved.
func Resolve(inventory []string, overrides map[string]Props, defaults Props, now time.Time) Playlist {
	base := Normalize(defaults)

	items := make([]Item, 0, len(inventory))
	for _, name := range inventory {
		if Reserved(name) {
			continue
		}
		inferred, ok := DetectType(name)
		if !ok {
			continue
		}
		ov := overrides[name]
		it := apply(base, ov)
		it.Src = name
		it.Type = inferred
		if ov.Type != nil && ov.Type.Valid() {
			it.Type = *ov.Type
		}
		if !schedule.IsEligible(it.Schedule, now) {
			continue
		}
		items = append(items, it)
	}
	return newPlaylist(items)
}

// resolveLegacy handles the {defaults, items} shape: entries carry their own
// src and usually their type; unknown extensions fall back to image.
func resolveLegacy(entries []Override, defaults Props, now time.Time) Playlist {
	base := Normalize(defaults)

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if Reserved(e.Src) {
			continue
		}
		it := apply(base, e.Props)
		it.Src = e.Src
		switch {
		case e.Type != nil && e.Type.Valid():
			it.Type = *e.Type
		default:
			if t, ok := DetectType(e.Src); ok {
				it.Type = t
			} else {
				it.Type = TypeImage
			}
		}
		if !schedule.IsEligible(it.Schedule, now) {
			continue
		}
		items = append(items, it)
	}
	return newPlaylist(items)
}

func newPlaylist(items []Item) Playlist {
	return Playlist{Items: items, Revision: revision(items)}
}

func revision(items []Item) string {
	if len(items) == 0 {
		return ""
	}
	b, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}

// OverrideMap indexes overrides by src. Later entries win, and entries
// without a src are dropped.
func OverrideMap(list []Override) map[string]Props {
	m := make(map[string]Props, len(list))
	for _, o := range list {
		if o.Src == "" {
			continue
		}
		m[o.Src] = o.Props
	}
	return m
}

// Resolve turns a decoded manifest into a playlist. A faulted manifest
// resolves to an empty playlist.
func (m Manifest) Resolve(now time.Time) Playlist {
	if m.Faulted {
		return Playlist{}
	}
	if len(m.Files) == 0 && len(m.Items) > 0 {
		return resolveLegacy(m.Items, m.Defaults, now)
	}
	return Resolve(m.Files, OverrideMap(m.Overrides), m.Defaults, now)
}
