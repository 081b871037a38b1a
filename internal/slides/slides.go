// Package slides renders simple text announcements as self-contained HTML
// files the player shows like any other html item.
package slides

import (
	"bytes"
	"errors"
	"html/template"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"mural-service/internal/store"
)

var (
	ErrEmpty    = errors.New("slide needs a title or a body")
	ErrBadColor = errors.New("colors must be #rgb or #rrggbb")
)

var colorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

type Slide struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	BgColor string `json:"bgColor,omitempty"`
	FgColor string `json:"fgColor,omitempty"`
}

func (s *Slide) normalize() error {
	s.Title = strings.TrimSpace(s.Title)
	s.Body = strings.TrimSpace(s.Body)
	if s.Title == "" && s.Body == "" {
		return ErrEmpty
	}
	if s.BgColor == "" {
		s.BgColor = "#000000"
	}
	if s.FgColor == "" {
		s.FgColor = "#ffffff"
	}
	if !colorRe.MatchString(s.BgColor) || !colorRe.MatchString(s.FgColor) {
		return ErrBadColor
	}
	return nil
}

var page = template.Must(template.New("slide").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
html, body { margin: 0; height: 100%; }
body { background: {{.Bg}}; color: {{.Fg}}; font-family: sans-serif; display: flex; flex-direction: column; justify-content: center; align-items: center; text-align: center; }
h1 { font-size: 7vw; margin: 0 5vw 3vh; }
p { font-size: 3.5vw; margin: 0 8vw 1.5vh; }
</style>
</head>
<body>
{{if .Title}}<h1>{{.Title}}</h1>{{end}}
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}</body>
</html>
`))

// Render returns the slide as an HTML document. Text is escaped.
func Render(s Slide) ([]byte, error) {
	if err := s.normalize(); err != nil {
		return nil, err
	}
	var paras []string
	for _, line := range strings.Split(s.Body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paras = append(paras, line)
		}
	}
	var buf bytes.Buffer
	err := page.Execute(&buf, struct {
		Title      string
		Paragraphs []string
		Bg, Fg     template.CSS
	}{
		Title:      s.Title,
		Paragraphs: paras,
		// validated against colorRe above
		Bg: template.CSS(s.BgColor),
		Fg: template.CSS(s.FgColor),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName derives a unique library name from the slide title.
func FileName(s Slide) string {
	stem := "slide"
	if name, err := store.SanitizeName(strings.TrimSpace(s.Title) + ".html"); err == nil {
		stem = strings.TrimSuffix(name, ".html")
		if len(stem) > 40 {
			stem = strings.TrimRight(stem[:40], "-_")
		}
	}
	return stem + "-" + uuid.NewString()[:8] + ".html"
}
