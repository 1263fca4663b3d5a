// Issues and validates session tokens.

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/maruel/hrdesk/internal/auth"
	"github.com/maruel/hrdesk/internal/hr"
)

// CookieName is the session cookie.
const CookieName = "hrdesk_session"

var (
	errInvalidAuthHdr = errors.New("invalid authorization header")
	errInvalidToken   = errors.New("invalid token")
)

type sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// issue returns a token designating email and the cookie carrying it.
func (s *sessions) issue(email string) (string, *http.Cookie, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return token, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// clear returns a cookie deleting the session cookie.
func (s *sessions) clear() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// subject validates token and returns the email it designates.
func (s *sessions) subject(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	t, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !t.Valid || claims.Subject == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}

// tokenFromRequest returns the bearer token, else the session cookie.
func tokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || scheme != "Bearer" || token == "" {
			return "", errInvalidAuthHdr
		}
		return token, nil
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", auth.ErrNotAuthenticated
}

// authenticate returns the account of the request's session.
func (s *Server) authenticate(r *http.Request) (*hr.Account, error) {
	token, err := tokenFromRequest(r)
	if err != nil {
		return nil, err
	}
	email, err := s.sessions.subject(token)
	if err != nil {
		return nil, err
	}
	a, ok := s.auth.Resolve(email)
	if !ok {
		// The account was deleted or changed its email.
		return nil, auth.ErrNotAuthenticated
	}
	return a, nil
}
