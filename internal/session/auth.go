package session

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrNotLoggedIn is returned by operations that need a signed-in user.
var ErrNotLoggedIn = errors.New("not logged in")

// User is the signed-in account.
type User struct {
	ID          string `json:"uid" validate:"required"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email" validate:"omitempty,email"`
	AvatarURL   string `json:"avatar_url" validate:"omitempty,url"`
}

var validate = validator.New()

// Validate checks the user record before it becomes the session user.
func (u User) Validate() error {
	if err := validate.Struct(u); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}
	return nil
}

// Persister stores the session user across restarts.
type Persister interface {
	SaveUser(u User) error
	LoadUser() (*User, error)
	DeleteUser() error
}

// Auth owns the current user. Only Login and Logout write to it.
type Auth struct {
	current *Value[*User]
	store   Persister
}

// NewAuth creates an Auth. store may be nil for an in-memory session.
func NewAuth(store Persister) *Auth {
	return &Auth{current: NewValue[*User](nil), store: store}
}

// Restore loads a previously persisted user, if any.
func (a *Auth) Restore() error {
	if a.store == nil {
		return nil
	}
	u, err := a.store.LoadUser()
	if err != nil {
		return fmt.Errorf("load session user: %w", err)
	}
	a.current.Set(u)
	return nil
}

// Current returns the signed-in user.
func (a *Auth) Current() (User, bool) {
	u := a.current.Get()
	if u == nil {
		return User{}, false
	}
	return *u, true
}

// LoggedIn reports whether a user is signed in.
func (a *Auth) LoggedIn() bool {
	return a.current.Get() != nil
}

// RequireUser returns the signed-in user or ErrNotLoggedIn.
func (a *Auth) RequireUser() (User, error) {
	u, ok := a.Current()
	if !ok {
		return User{}, ErrNotLoggedIn
	}
	return u, nil
}

// Login validates u, persists it and makes it current.
func (a *Auth) Login(u User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if a.store != nil {
		if err := a.store.SaveUser(u); err != nil {
			return fmt.Errorf("persist session user: %w", err)
		}
	}
	a.current.Set(&u)
	return nil
}

// Logout drops the current user.
func (a *Auth) Logout() error {
	if a.store != nil {
		if err := a.store.DeleteUser(); err != nil {
			return fmt.Errorf("delete session user: %w", err)
		}
	}
	a.current.Set(nil)
	return nil
}

// Subscribe is notified on login and logout (nil user).
func (a *Auth) Subscribe(fn func(*User)) func() {
	return a.current.Subscribe(fn)
}
