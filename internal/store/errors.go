// Package store persists everything the service owns on disk: the media
// library, the media.json config that sits next to it and the users file.
package store

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidName  = errors.New("invalid file name")
	ErrUnsupported  = errors.New("unsupported file type")
	ErrTooLarge     = errors.New("file too large")
	ErrMismatch     = errors.New("file content does not match its extension")
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidUser  = errors.New("invalid username")
	ErrInvalidRole  = errors.New("invalid role")
	ErrLastAdmin    = errors.New("cannot remove the last admin")
	ErrBadPassword  = errors.New("invalid credentials")
	ErrWeakPassword = errors.New("password must be at least 4 characters")
)
