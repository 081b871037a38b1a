package manifest

import (
	"path/filepath"
	"strings"

	"mural-service/internal/schedule"
)

// ConfigFile is the reserved name of the config file kept next to the media.
// It never appears in an inventory.
const ConfigFile = "media.json"

type MediaType string

const (
	TypeImage MediaType = "image"
	TypeVideo MediaType = "video"
	TypeHTML  MediaType = "html"
)

func (t MediaType) Valid() bool {
	switch t {
	case TypeImage, TypeVideo, TypeHTML:
		return true
	}
	return false
}

type FitMode string

const (
	FitContain FitMode = "fit"
	FitCrop    FitMode = "crop"
	FitFill    FitMode = "fill"
	FitZoom    FitMode = "zoom"
)

func (f FitMode) Valid() bool {
	switch f {
	case FitContain, FitCrop, FitFill, FitZoom:
		return true
	}
	return false
}

// Item is a fully resolved playlist entry.
type Item struct {
	Src             string             `json:"src"`
	Type            MediaType          `json:"type"`
	FitMode         FitMode            `json:"fitMode"`
	ImageDurationMs int                `json:"imageDurationMs"`
	HTMLDurationMs  int                `json:"htmlDurationMs"`
	Mute            bool               `json:"mute"`
	Volume          float64            `json:"volume"`
	BgColor         string             `json:"bgColor"`
	Schedule        *schedule.Schedule `json:"schedule,omitempty"`
}

// Props is the sparse shape shared by defaults and overrides: a nil field
// means "not set here".
type Props struct {
	Type            *MediaType         `json:"type,omitempty"`
	FitMode         *FitMode           `json:"fitMode,omitempty"`
	ImageDurationMs *int               `json:"imageDurationMs,omitempty"`
	HTMLDurationMs  *int               `json:"htmlDurationMs,omitempty"`
	Mute            *bool              `json:"mute,omitempty"`
	Volume          *float64           `json:"volume,omitempty"`
	BgColor         *string            `json:"bgColor,omitempty"`
	Schedule        *schedule.Schedule `json:"schedule,omitempty"`
}

// Merge returns p with every field set in o copied over it.
func (p Props) Merge(o Props) Props {
	if o.Type != nil {
		p.Type = o.Type
	}
	if o.FitMode != nil {
		p.FitMode = o.FitMode
	}
	if o.ImageDurationMs != nil {
		p.ImageDurationMs = o.ImageDurationMs
	}
	if o.HTMLDurationMs != nil {
		p.HTMLDurationMs = o.HTMLDurationMs
	}
	if o.Mute != nil {
		p.Mute = o.Mute
	}
	if o.Volume != nil {
		p.Volume = o.Volume
	}
	if o.BgColor != nil {
		p.BgColor = o.BgColor
	}
	if o.Schedule != nil {
		p.Schedule = o.Schedule
	}
	return p
}

// Override is a per-file Props keyed by Src. It is flat on the wire:
// {"src":"a.png","fitMode":"crop"}.
type Override struct {
	Src string `json:"src"`
	Props
}

// Manifest is the document served to players.
//
// Files+Overrides is the current shape; Items is the legacy shape where each
// entry already carries its src and type. Faulted is set by Decode when a
// section had the wrong shape.
type Manifest struct {
	Defaults  Props      `json:"defaults"`
	Overrides []Override `json:"overrides"`
	Files     []string   `json:"files"`
	Items     []Override `json:"items,omitempty"`

	Faulted bool `json:"-"`
}

// Playlist is the ordered, schedule-filtered result of a resolution.
type Playlist struct {
	Items    []Item
	Revision string
}

func (p Playlist) Len() int { return len(p.Items) }

func (p Playlist) Empty() bool { return len(p.Items) == 0 }

var (
	imageExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true, ".svg": true}
	videoExt = map[string]bool{".mp4": true, ".webm": true, ".ogg": true}
	htmlExt  = map[string]bool{".html": true, ".htm": true}
)

// DetectType infers the media type from a filename extension. ok is false
// for extensions the player does not show.
func DetectType(name string) (MediaType, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case imageExt[ext]:
		return TypeImage, true
	case videoExt[ext]:
		return TypeVideo, true
	case htmlExt[ext]:
		return TypeHTML, true
	}
	return "", false
}

// Reserved reports whether name must be hidden from inventories.
func Reserved(name string) bool {
	return name == "" || name == ConfigFile || strings.HasPrefix(name, ".")
}
