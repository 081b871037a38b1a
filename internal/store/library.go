package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/mozillazg/go-unidecode"
	"github.com/spf13/afero"

	"mural-service/internal/manifest"
)

// sniffLen is how much of an upload is buffered for content detection.
const sniffLen = 3072

var unsafeRun = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Library is the flat directory of media files players show.
type Library struct {
	fs       afero.Fs
	dir      string
	maxBytes int64
}

// NewLibrary returns a library rooted at dir. maxBytes <= 0 disables the
// upload size limit.
func NewLibrary(fs afero.Fs, dir string, maxBytes int64) *Library {
	return &Library{fs: fs, dir: dir, maxBytes: maxBytes}
}

func (l *Library) Dir() string { return l.dir }

// List returns the showable files: no directories, no reserved names and
// only known extensions. The order is case-insensitive by name, then by
// bytes, so every listing of the same directory is identical.
func (l *Library) List() ([]string, error) {
	infos, err := afero.ReadDir(l.fs, l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list media: %w", err)
	}
	files := make([]string, 0, len(infos))
	for _, fi := range infos {
		name := fi.Name()
		if fi.IsDir() || manifest.Reserved(name) {
			continue
		}
		if _, ok := manifest.DetectType(name); !ok {
			continue
		}
		files = append(files, name)
	}
	sort.Slice(files, func(i, j int) bool {
		a, b := strings.ToLower(files[i]), strings.ToLower(files[j])
		if a != b {
			return a < b
		}
		return files[i] < files[j]
	})
	return files, nil
}

// Open returns a media file for reading together with its FileInfo.
func (l *Library) Open(name string) (afero.File, os.FileInfo, error) {
	p, err := l.path(name)
	if err != nil {
		return nil, nil, err
	}
	f, err := l.fs.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("open media: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat media: %w", err)
	}
	if fi.IsDir() {
		f.Close()
		return nil, nil, ErrNotFound
	}
	return f, fi, nil
}

// Save stores an upload under its sanitized name, replacing any file with
// the same name, and returns that name. The content is sniffed and must
// agree with the extension.
func (l *Library) Save(original string, r io.Reader) (string, error) {
	name, err := SanitizeName(original)
	if err != nil {
		return "", err
	}
	typ, _ := manifest.DetectType(name)

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if !contentMatches(typ, mimetype.Detect(head)) {
		return "", ErrMismatch
	}

	if err := l.fs.MkdirAll(l.dir, 0o750); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	// dotfile so a partial upload never shows up in List
	tmp := filepath.Join(l.dir, "."+name+".upload")
	f, err := l.fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("open tmp: %w", err)
	}

	src := io.MultiReader(bytes.NewReader(head), r)
	if l.maxBytes > 0 {
		src = io.LimitReader(src, l.maxBytes+1)
	}
	written, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && l.maxBytes > 0 && written > l.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = l.fs.Remove(tmp)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := l.fs.Rename(tmp, filepath.Join(l.dir, name)); err != nil {
		_ = l.fs.Remove(tmp)
		return "", fmt.Errorf("rename upload: %w", err)
	}
	return name, nil
}

// WriteFile stores generated content under name, which must already be a
// clean library name.
func (l *Library) WriteFile(name string, data []byte) error {
	p, err := l.path(name)
	if err != nil {
		return err
	}
	if _, ok := manifest.DetectType(name); !ok {
		return ErrUnsupported
	}
	if err := l.fs.MkdirAll(l.dir, 0o750); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := afero.WriteFile(l.fs, p, data, 0o640); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Remove deletes a media file. A file that is already gone is ErrNotFound.
func (l *Library) Remove(name string) error {
	p, err := l.path(name)
	if err != nil {
		return err
	}
	if err := l.fs.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("remove media: %w", err)
	}
	return nil
}

func (l *Library) Exists(name string) bool {
	p, err := l.path(name)
	if err != nil {
		return false
	}
	fi, err := l.fs.Stat(p)
	return err == nil && !fi.IsDir()
}

// path maps a library name to its location, rejecting anything that is not
// a plain, visible file name directly inside the library.
func (l *Library) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) ||
		manifest.Reserved(name) {
		return "", ErrInvalidName
	}
	return filepath.Join(l.dir, name), nil
}

// SanitizeName turns an uploaded file name into a library name: accents are
// transliterated to ASCII, runs of anything outside [A-Za-z0-9_-] become a
// single '-', and the extension is lowercased. Names carrying a path are
// rejected outright.
func SanitizeName(original string) (string, error) {
	if original == "" || strings.ContainsAny(original, `/\`) || strings.ContainsRune(original, 0) {
		return "", ErrInvalidName
	}
	ext := strings.ToLower(filepath.Ext(original))
	if _, ok := manifest.DetectType(ext); !ok {
		return "", ErrUnsupported
	}
	stem := strings.TrimSuffix(original, filepath.Ext(original))
	stem = unidecode.Unidecode(stem)
	stem = unsafeRun.ReplaceAllString(stem, "-")
	stem = strings.Trim(stem, "-_")
	if stem == "" {
		return "", ErrInvalidName
	}
	return stem + ext, nil
}

// contentMatches reports whether the sniffed MIME type, or one of its
// parents, fits the media type implied by the extension.
func contentMatches(typ manifest.MediaType, mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		s := m.String()
		if i := strings.IndexByte(s, ';'); i >= 0 {
			s = s[:i]
		}
		switch typ {
		case manifest.TypeImage:
			if strings.HasPrefix(s, "image/") {
				return true
			}
		case manifest.TypeVideo:
			if strings.HasPrefix(s, "video/") || s == "audio/ogg" || s == "application/ogg" {
				return true
			}
		case manifest.TypeHTML:
			if s == "text/html" || s == "text/plain" {
				return true
			}
		}
	}
	return false
}
