package auth

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/maruel/hrdesk/internal/hr"
	"github.com/maruel/hrdesk/internal/kv"
)

// Storage keys of a Session.
const (
	TokenKey   = "auth_token"
	PendingKey = "unverified_email"
)

// Session is one client's login state, kept in storage next to the document.
//
// A Verified account is LoggedOut or LoggedIn; Login and Logout toggle it.
// Registration records the email as pending verification until VerifyEmail.
type Session struct {
	auth    *Service
	storage kv.Storage
}

// NewSession returns a Session over storage.
func NewSession(a *Service, storage kv.Storage) *Session {
	return &Session{auth: a, storage: storage}
}

// Login authenticates and stores email as the session token.
func (s *Session) Login(email, password string) (*hr.Account, error) {
	a, err := s.auth.Authenticate(email, password)
	if err != nil {
		return nil, err
	}
	if err := s.storage.Set(TokenKey, a.Email); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return a, nil
}

// Logout clears the session token.
func (s *Session) Logout() error {
	return s.storage.Remove(TokenKey)
}

// Register creates an unverified account and records it as pending
// verification.
func (s *Session) Register(firstName, lastName, email, password string) (*hr.Account, error) {
	a, err := s.auth.Register(firstName, lastName, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.storage.Set(PendingKey, a.Email); err != nil {
		return a, fmt.Errorf("store pending verification: %w", err)
	}
	return a, nil
}

// VerifyEmail verifies email and clears the pending marker.
func (s *Session) VerifyEmail(email string) error {
	if err := s.auth.VerifyEmail(email); err != nil {
		return err
	}
	return s.storage.Remove(PendingKey)
}

// VerifyPending verifies the email recorded by Register and returns it.
func (s *Session) VerifyPending() (string, error) {
	email, ok := s.PendingVerification()
	if !ok {
		return "", ErrNoPendingVerification
	}
	return email, s.VerifyEmail(email)
}

// PendingVerification returns the email awaiting verification, if any.
func (s *Session) PendingVerification() (string, bool) {
	return s.get(PendingKey)
}

// CurrentUser resolves the session token.
func (s *Session) CurrentUser() (*hr.Account, bool) {
	token, ok := s.get(TokenKey)
	if !ok {
		return nil, false
	}
	return s.auth.Resolve(token)
}

// RequireAuthenticated returns the current user or ErrNotAuthenticated.
func (s *Session) RequireAuthenticated() (*hr.Account, error) {
	a, ok := s.CurrentUser()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return a, nil
}

// RequireAdmin returns the current user when an administrator.
func (s *Session) RequireAdmin() (*hr.Account, error) {
	a, err := s.RequireAuthenticated()
	if err != nil {
		return nil, err
	}
	if !a.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return a, nil
}

// Retoken moves the session to email, after the current user changed it.
func (s *Session) Retoken(email string) error {
	return s.storage.Set(TokenKey, email)
}

func (s *Session) get(key string) (string, bool) {
	v, err := s.storage.Get(key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			slog.Warn("Failed to read session", "key", key, "err", err)
		}
		return "", false
	}
	return v, v != ""
}
