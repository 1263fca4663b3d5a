package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestAPIError(t *testing.T) {
	cause := errors.New("boom")
	e := InternalWithError("Failed to save", cause)
	if e.StatusCode() != http.StatusInternalServerError || e.Code() != ErrInternal {
		t.Errorf("got %d %s", e.StatusCode(), e.Code())
	}
	if got := e.Error(); got != "Failed to save: boom" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(e, cause) {
		t.Error("cause not unwrapped")
	}
	// The cause is not repeated when it is the message.
	if got := Conflict(cause.Error()).Wrap(cause).Error(); got != "boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestConstructors(t *testing.T) {
	for _, tc := range []struct {
		err    *APIError
		status int
		code   ErrorCode
	}{
		{NotFound("request 3"), http.StatusNotFound, ErrNotFound},
		{BadRequest("x"), http.StatusBadRequest, ErrValidationFailed},
		{MissingField("email"), http.StatusBadRequest, ErrMissingField},
		{InvalidFormat("id", "invalid id"), http.StatusBadRequest, ErrInvalidFormat},
		{Unauthorized("x"), http.StatusUnauthorized, ErrUnauthorized},
		{Forbidden("x"), http.StatusForbidden, ErrForbidden},
		{RateLimited(3), http.StatusTooManyRequests, ErrRateLimited},
	} {
		if tc.err.StatusCode() != tc.status || tc.err.Code() != tc.code {
			t.Errorf("%q: got %d %s, want %d %s", tc.err.Error(), tc.err.StatusCode(), tc.err.Code(), tc.status, tc.code)
		}
	}
	if d := MissingField("email").Details(); d["field"] != "email" {
		t.Errorf("details = %v", d)
	}
	if d := RateLimited(3).Details(); d["retry_after"] != 3 {
		t.Errorf("details = %v", d)
	}
	if got := NotFound("request 3").Error(); got != "request 3 not found" {
		t.Errorf("Error() = %q", got)
	}
}
