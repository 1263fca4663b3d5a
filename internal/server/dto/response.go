package dto

import (
	"net/http"
	"time"

	"github.com/maruel/hrdesk/internal/hr"
)

// CookieSetter is implemented by responses that open or close a session.
type CookieSetter interface {
	Cookie() *http.Cookie
}

// --- Common Responses ---

// OkResponse is a simple success response.
type OkResponse struct {
	Ok bool `json:"ok"`
}

// --- Auth Responses ---

// UserResponse is an account without its password.
type UserResponse struct {
	ID        int       `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Role      hr.Role   `json:"role"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// NewUserResponse converts a.
func NewUserResponse(a *hr.Account) *UserResponse {
	return &UserResponse{
		ID:        a.ID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
		Role:      a.Role,
		Verified:  a.Verified,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// NewUserResponses converts accounts.
func NewUserResponses(accounts []*hr.Account) []*UserResponse {
	out := make([]*UserResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, NewUserResponse(a))
	}
	return out
}

// SessionResponse carries a session token, also set as a cookie.
type SessionResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`

	cookie *http.Cookie
}

// NewSessionResponse returns a response that sets cookie.
func NewSessionResponse(token string, user *UserResponse, cookie *http.Cookie) *SessionResponse {
	return &SessionResponse{Token: token, User: user, cookie: cookie}
}

// Cookie implements CookieSetter.
func (r *SessionResponse) Cookie() *http.Cookie {
	return r.cookie
}

// LogoutResponse clears the session cookie.
type LogoutResponse struct {
	OkResponse

	cookie *http.Cookie
}

// NewLogoutResponse returns a response that sets cookie.
func NewLogoutResponse(cookie *http.Cookie) *LogoutResponse {
	return &LogoutResponse{OkResponse: OkResponse{Ok: true}, cookie: cookie}
}

// Cookie implements CookieSetter.
func (r *LogoutResponse) Cookie() *http.Cookie {
	return r.cookie
}

// RegisterResponse is returned by a registration. The account stays
// unverified until /api/auth/verify.
type RegisterResponse struct {
	User    *UserResponse `json:"user"`
	Message string        `json:"message"`
}

// --- Domain Responses ---

// RequestListResponse lists requests, newest first.
type RequestListResponse struct {
	Requests []*hr.Request `json:"requests"`
}

// UserListResponse lists accounts.
type UserListResponse struct {
	Users []*UserResponse `json:"users"`
}

// EmployeeListResponse lists employees.
type EmployeeListResponse struct {
	Employees []*hr.Employee `json:"employees"`
}

// DepartmentListResponse lists departments.
type DepartmentListResponse struct {
	Departments []*hr.Department `json:"departments"`
}

// CollectionResponse is the raw content of one collection.
type CollectionResponse struct {
	Name    string `json:"name"`
	Records []any  `json:"records"`
}

// HealthResponse reports liveness and persistence state.
type HealthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version,omitempty"`
	Dirty            bool   `json:"dirty"`
	LastPersistError string `json:"lastPersistError,omitempty"`
}
