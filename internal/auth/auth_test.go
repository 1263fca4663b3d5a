package auth

import (
	"errors"
	"testing"

	"github.com/maruel/hrdesk/internal/hr"
	"github.com/maruel/hrdesk/internal/kv"
)

type loginCounter map[string]int

func (l loginCounter) Login(result string) { l[result]++ }

func newTestSession(t *testing.T) (*Session, *hr.Store, loginCounter) {
	t.Helper()
	mem := kv.NewMemory()
	st, _ := hr.Open(t.Context(), mem, hr.Options{})
	logins := loginCounter{}
	return NewSession(NewService(hr.NewService(st), logins), mem), st, logins
}

func TestRegisterVerifyLogin(t *testing.T) {
	s, st, logins := newTestSession(t)

	a, err := s.Register("A", "B", "a@x.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if a.Verified || a.Role != hr.RoleUser || a.ID != 2 {
		t.Errorf("Register() = %+v", a)
	}
	if email, ok := s.PendingVerification(); !ok || email != "a@x.com" {
		t.Errorf("PendingVerification() = %q, %t", email, ok)
	}

	if _, err := s.Login("a@x.com", "secret1"); !errors.Is(err, ErrNotVerified) {
		t.Fatalf("Login(unverified) = %v, want ErrNotVerified", err)
	}
	if _, ok := s.CurrentUser(); ok {
		t.Error("failed login opened a session")
	}

	if err := s.VerifyEmail("a@x.com"); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.PendingVerification(); ok {
		t.Error("pending marker not cleared")
	}
	if got, _ := st.Accounts.Get(a.ID); !got.Verified {
		t.Error("account not verified")
	}

	in, err := s.Login("a@x.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	cur, ok := s.CurrentUser()
	if !ok || cur.ID != in.ID || cur.Email != "a@x.com" {
		t.Errorf("CurrentUser() = %+v, %t", cur, ok)
	}
	if _, err := s.RequireAuthenticated(); err != nil {
		t.Errorf("RequireAuthenticated() = %v", err)
	}
	if _, err := s.RequireAdmin(); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("RequireAdmin(user) = %v", err)
	}

	if err := s.Logout(); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.CurrentUser(); ok {
		t.Error("still logged in after Logout")
	}
	if _, err := s.RequireAuthenticated(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("RequireAuthenticated() after logout = %v", err)
	}
	if logins[ResultUnverified] != 1 || logins[ResultSuccess] != 1 {
		t.Errorf("logins = %v", logins)
	}
}

func TestDuplicateEmail(t *testing.T) {
	s, st, _ := newTestSession(t)
	if _, err := s.Register("A", "B", "a@x.com", "secret1"); err != nil {
		t.Fatal(err)
	}
	n := st.Accounts.Len()
	if _, err := s.Register("C", "D", "a@x.com", "other12"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Register(duplicate) = %v, want ErrEmailTaken", err)
	}
	if st.Accounts.Len() != n {
		t.Errorf("accounts grew from %d to %d", n, st.Accounts.Len())
	}
	// The taken check comes first, as in the registration form.
	if _, err := s.Register("C", "D", "a@x.com", "x"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Register(duplicate, short) = %v", err)
	}
	if _, err := s.Register("C", "D", "c@x.com", "12345"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("Register(short) = %v", err)
	}
}

func TestLogin(t *testing.T) {
	s, _, logins := newTestSession(t)
	for _, tc := range []struct{ email, password string }{
		{"nobody@example.com", "Password123!"},
		{"admin@example.com", "wrong"},
		{"ADMIN@example.com", "Password123!"},
	} {
		if _, err := s.Login(tc.email, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%q, %q) = %v", tc.email, tc.password, err)
		}
	}
	if logins[ResultInvalid] != 3 {
		t.Errorf("invalid logins = %d", logins[ResultInvalid])
	}
	a, err := s.Login("admin@example.com", "Password123!")
	if err != nil {
		t.Fatal(err)
	}
	if got, err := s.RequireAdmin(); err != nil || got.ID != a.ID {
		t.Errorf("RequireAdmin() = %+v, %v", got, err)
	}
}

func TestVerify(t *testing.T) {
	s, _, _ := newTestSession(t)
	if err := s.VerifyEmail("ghost@x.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("VerifyEmail(unknown) = %v", err)
	}
	if _, err := s.VerifyPending(); !errors.Is(err, ErrNoPendingVerification) {
		t.Errorf("VerifyPending(none) = %v", err)
	}
	if _, err := s.Register("A", "B", "a@x.com", "secret1"); err != nil {
		t.Fatal(err)
	}
	email, err := s.VerifyPending()
	if err != nil || email != "a@x.com" {
		t.Fatalf("VerifyPending() = %q, %v", email, err)
	}
	if _, err := s.Login("a@x.com", "secret1"); err != nil {
		t.Errorf("Login() after VerifyPending = %v", err)
	}
	// Verification is one way and idempotent.
	if err := s.VerifyEmail("a@x.com"); err != nil {
		t.Errorf("second VerifyEmail() = %v", err)
	}
}

func TestRetoken(t *testing.T) {
	s, st, _ := newTestSession(t)
	if _, err := s.Login("admin@example.com", "Password123!"); err != nil {
		t.Fatal(err)
	}
	svc := hr.NewService(st)
	me, _ := s.CurrentUser()
	if _, err := svc.UpdateProfile(me, hr.ProfileInput{FirstName: "A", LastName: "U", Email: "root@example.com"}); err != nil {
		t.Fatal(err)
	}
	// The old token no longer designates anyone.
	if _, ok := s.CurrentUser(); ok {
		t.Error("stale token still resolves")
	}
	if err := s.Retoken("root@example.com"); err != nil {
		t.Fatal(err)
	}
	if cur, ok := s.CurrentUser(); !ok || cur.ID != me.ID {
		t.Errorf("CurrentUser() after Retoken = %+v, %t", cur, ok)
	}
}

func TestSessionStorageFailure(t *testing.T) {
	mem := kv.NewMemory()
	st, _ := hr.Open(t.Context(), kv.NewMemory(), hr.Options{})
	s := NewSession(NewService(hr.NewService(st), nil), mem)
	mem.FailWrites = errors.New("quota exceeded")
	if _, err := s.Login("admin@example.com", "Password123!"); err == nil {
		t.Error("Login() should report the storage failure")
	}
	if _, ok := s.CurrentUser(); ok {
		t.Error("session opened despite the failure")
	}
}
