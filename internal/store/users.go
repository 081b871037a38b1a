package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

const minPasswordLen = 4

type User struct {
	Username     string    `json:"username"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Public is the user as shown to other users.
type Public struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (u User) Public() Public { return Public{Username: u.Username, Role: u.Role} }

type usersDoc struct {
	Users []User `json:"users"`
}

// Users is the admin account file. It lives in the state directory, never in
// the media library.
type Users struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
	cost int
	now  func() time.Time
}

type UsersOption func(*Users)

// WithBcryptCost sets the hashing cost for new passwords.
func WithBcryptCost(cost int) UsersOption {
	return func(u *Users) { u.cost = cost }
}

func NewUsers(fs afero.Fs, path string, opts ...UsersOption) *Users {
	u := &Users{fs: fs, path: path, cost: bcrypt.DefaultCost, now: time.Now}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func normalizeUsername(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || len(s) > 64 || strings.ContainsAny(s, " /\\\t\r\n") {
		return "", ErrInvalidUser
	}
	return s, nil
}

func (u *Users) load() (usersDoc, error) {
	var doc usersDoc
	if err := readJSON(u.fs, u.path, &doc); err != nil {
		return usersDoc{}, err
	}
	return doc, nil
}

func (u *Users) save(doc usersDoc) error {
	if err := writeJSON(u.fs, u.path, &doc); err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	return nil
}

func (u *Users) hash(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", ErrWeakPassword
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Bootstrap creates an admin account when no account exists yet. It
// reports whether one was created.
func (u *Users) Bootstrap(username, password string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	doc, err := u.load()
	if err != nil {
		return false, err
	}
	if len(doc.Users) > 0 || username == "" || password == "" {
		return false, nil
	}
	name, err := normalizeUsername(username)
	if err != nil {
		return false, err
	}
	h, err := u.hash(password)
	if err != nil {
		return false, err
	}
	doc.Users = append(doc.Users, User{Username: name, Role: RoleAdmin, PasswordHash: h, CreatedAt: u.now().UTC()})
	return true, u.save(doc)
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords both yield ErrBadPassword.
func (u *Users) Authenticate(username, password string) (User, error) {
	name, err := normalizeUsername(username)
	if err != nil {
		return User{}, ErrBadPassword
	}
	usr, err := u.Get(name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrBadPassword
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrBadPassword
	}
	return usr, nil
}

func (u *Users) Get(username string) (User, error) {
	name, err := normalizeUsername(username)
	if err != nil {
		return User{}, ErrNotFound
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	doc, err := u.load()
	if err != nil {
		return User{}, err
	}
	for _, usr := range doc.Users {
		if usr.Username == name {
			return usr, nil
		}
	}
	return User{}, ErrNotFound
}

// List returns every account ordered by username.
func (u *Users) List() ([]Public, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	doc, err := u.load()
	if err != nil {
		return nil, err
	}
	out := make([]Public, 0, len(doc.Users))
	for _, usr := range doc.Users {
		out = append(out, usr.Public())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (u *Users) Create(username, password string, role Role) (Public, error) {
	name, err := normalizeUsername(username)
	if err != nil {
		return Public{}, err
	}
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return Public{}, ErrInvalidRole
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	doc, err := u.load()
	if err != nil {
		return Public{}, err
	}
	for _, usr := range doc.Users {
		if usr.Username == name {
			return Public{}, ErrUserExists
		}
	}
	h, err := u.hash(password)
	if err != nil {
		return Public{}, err
	}
	usr := User{Username: name, Role: role, PasswordHash: h, CreatedAt: u.now().UTC()}
	doc.Users = append(doc.Users, usr)
	if err := u.save(doc); err != nil {
		return Public{}, err
	}
	return usr.Public(), nil
}

// SetPassword replaces a password without checking the old one.
func (u *Users) SetPassword(username, password string) error {
	return u.modify(username, func(usr *User) error {
		h, err := u.hash(password)
		if err != nil {
			return err
		}
		usr.PasswordHash = h
		return nil
	})
}

// ChangePassword replaces a password after verifying the current one.
func (u *Users) ChangePassword(username, current, next string) error {
	return u.modify(username, func(usr *User) error {
		if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(current)); err != nil {
			return ErrBadPassword
		}
		h, err := u.hash(next)
		if err != nil {
			return err
		}
		usr.PasswordHash = h
		return nil
	})
}

func (u *Users) modify(username string, fn func(*User) error) error {
	name, err := normalizeUsername(username)
	if err != nil {
		return ErrNotFound
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	doc, err := u.load()
	if err != nil {
		return err
	}
	for i := range doc.Users {
		if doc.Users[i].Username == name {
			if err := fn(&doc.Users[i]); err != nil {
				return err
			}
			return u.save(doc)
		}
	}
	return ErrNotFound
}

// Delete removes an account. The last admin cannot be removed.
func (u *Users) Delete(username string) error {
	name, err := normalizeUsername(username)
	if err != nil {
		return ErrNotFound
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	doc, err := u.load()
	if err != nil {
		return err
	}
	idx, admins := -1, 0
	for i, usr := range doc.Users {
		if usr.Role == RoleAdmin {
			admins++
		}
		if usr.Username == name {
			idx = i
		}
	}
	if idx < 0 {
		return ErrNotFound
	}
	if doc.Users[idx].Role == RoleAdmin && admins <= 1 {
		return ErrLastAdmin
	}
	doc.Users = append(doc.Users[:idx], doc.Users[idx+1:]...)
	return u.save(doc)
}
