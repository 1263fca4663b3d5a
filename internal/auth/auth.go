// Package auth authenticates accounts of an hr.Store.
//
// There is no real credential: passwords are compared in clear text and the
// session token is the account's email. [Service] holds the rules; [Session]
// keeps one client's token in a kv.Storage the way a browser tab kept it in
// local storage.
package auth

import (
	"errors"
	"strings"

	"github.com/maruel/hrdesk/internal/hr"
)

// Errors returned by Service and Session. Messages are shown to users as is.
var (
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrNotVerified           = errors.New("please verify your email first")
	ErrEmailTaken            = errors.New("email already registered")
	ErrWeakPassword          = errors.New("password must be at least 6 characters")
	ErrUserNotFound          = errors.New("user not found")
	ErrNotAuthenticated      = errors.New("please log in")
	ErrNotAdmin              = errors.New("access denied; admin privileges required")
	ErrNoPendingVerification = errors.New("no pending verification found")
)

// Login outcomes reported to the Observer.
const (
	ResultSuccess    = "success"
	ResultInvalid    = "invalid"
	ResultUnverified = "unverified"
)

// Observer is notified of login attempts.
type Observer interface {
	Login(result string)
}

type nopObserver struct{}

func (nopObserver) Login(string) {}

// Service implements login, registration and verification.
type Service struct {
	hr       *hr.Service
	observer Observer
}

// NewService returns a Service over the accounts of svc. obs may be nil.
func NewService(svc *hr.Service, obs Observer) *Service {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Service{hr: svc, observer: obs}
}

func (s *Service) accounts() *hr.Collection[*hr.Account] {
	return s.hr.Store().Accounts
}

// Authenticate returns the account matching email and password. The email
// must match exactly.
func (s *Service) Authenticate(email, password string) (*hr.Account, error) {
	a, ok := s.accounts().GetByField("email", email)
	if !ok || a.Password != password {
		s.observer.Login(ResultInvalid)
		return nil, ErrInvalidCredentials
	}
	if !a.Verified {
		s.observer.Login(ResultUnverified)
		return nil, ErrNotVerified
	}
	s.observer.Login(ResultSuccess)
	return a, nil
}

// Register creates an unverified user account.
func (s *Service) Register(firstName, lastName, email, password string) (*hr.Account, error) {
	var out *hr.Account
	err := s.hr.Do(func(st *hr.Store) error {
		if _, ok := st.Accounts.GetByField("email", email); ok {
			return ErrEmailTaken
		}
		if len(password) < hr.MinPasswordLen {
			return ErrWeakPassword
		}
		out = st.Accounts.Insert(&hr.Account{
			FirstName: strings.TrimSpace(firstName),
			LastName:  strings.TrimSpace(lastName),
			Email:     email,
			Password:  password,
			Role:      hr.RoleUser,
		})
		return nil
	})
	return out, err
}

// VerifyEmail marks the account of email as verified. Verifying twice is not
// an error.
func (s *Service) VerifyEmail(email string) error {
	return s.hr.Do(func(st *hr.Store) error {
		a, ok := st.Accounts.GetByField("email", email)
		if !ok {
			return ErrUserNotFound
		}
		st.Accounts.Update(a.ID, hr.AccountPatch{Verified: hr.Ptr(true)})
		return nil
	})
}

// Resolve returns the account a session token designates.
func (s *Service) Resolve(token string) (*hr.Account, bool) {
	if token == "" {
		return nil, false
	}
	return s.accounts().GetByField("email", token)
}
