// Provides middleware for standardizing HTTP handlers.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	"github.com/maruel/hrdesk/internal/auth"
	apierrors "github.com/maruel/hrdesk/internal/errors"
	"github.com/maruel/hrdesk/internal/hr"
	"github.com/maruel/hrdesk/internal/server/dto"
)

// Wrap wraps a handler function to work as an http.Handler.
// The function must have signature: func(context.Context, *In) (*Out, error)
// where In can be unmarshalled from JSON and Out is a struct.
// Path parameters can be extracted by tagging struct fields with `path:"name"`.
// *In must implement dto.Validatable.
//
// Example:
//
//	type IDRequest struct {
//	    ID int `path:"id" json:"-"`
//	}
//
//	func (s *Server) GetRequest(ctx context.Context, req *dto.IDRequest) (*hr.Request, error)
func Wrap[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, PtrIn) (*Out, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		input, ok := decodeRequest[In, PtrIn](ctx, w, r)
		if !ok {
			return
		}
		output, err := fn(ctx, input)
		writeJSONResponse(ctx, w, output, err)
	})
}

// WrapAuth wraps a handler requiring a logged in account.
// The function must have signature: func(context.Context, *hr.Account, *In) (*Out, error)
func WrapAuth[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](s *Server, fn func(context.Context, *hr.Account, PtrIn) (*Out, error)) http.Handler {
	return wrapAccount[In, PtrIn, Out](s, false, fn)
}

// WrapAdmin wraps a handler requiring a logged in administrator.
func WrapAdmin[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](s *Server, fn func(context.Context, *hr.Account, PtrIn) (*Out, error)) http.Handler {
	return wrapAccount[In, PtrIn, Out](s, true, fn)
}

func wrapAccount[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](s *Server, admin bool, fn func(context.Context, *hr.Account, PtrIn) (*Out, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user, err := s.authenticate(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		if admin && !user.IsAdmin() {
			writeError(ctx, w, auth.ErrNotAdmin)
			return
		}
		input, ok := decodeRequest[In, PtrIn](ctx, w, r)
		if !ok {
			return
		}
		output, err := fn(ctx, user, input)
		writeJSONResponse(ctx, w, output, err)
	})
}

// decodeRequest reads the request body with size limit, decodes JSON into a
// new In, binds path parameters and validates the result. Returns false if an
// error occurred and was written to the response.
func decodeRequest[In any, PtrIn interface {
	*In
	dto.Validatable
}](ctx context.Context, w http.ResponseWriter, r *http.Request) (PtrIn, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(ctx, w, apierrors.NewAPIError(http.StatusRequestEntityTooLarge, apierrors.ErrValidationFailed, "Request body too large").
				WithDetail("max_bytes", maxBytesErr.Limit))
			return nil, false
		}
		slog.ErrorContext(ctx, "Failed to read request body", "rid", RequestID(ctx), "err", err)
		writeError(ctx, w, apierrors.BadRequest("Failed to read request body"))
		return nil, false
	}
	input := PtrIn(new(In))
	if len(body) > 0 {
		d := json.NewDecoder(bytes.NewReader(body))
		d.DisallowUnknownFields()
		if err := d.Decode(input); err != nil {
			slog.WarnContext(ctx, "Failed to decode request body", "rid", RequestID(ctx), "err", err)
			writeError(ctx, w, apierrors.BadRequest("Invalid request body"))
			return nil, false
		}
	}
	populatePathParams(r, input)
	if err := input.Validate(); err != nil {
		writeError(ctx, w, err)
		return nil, false
	}
	return input, true
}

// writeJSONResponse writes a JSON response or error response.
func writeJSONResponse[Out any](ctx context.Context, w http.ResponseWriter, output *Out, err error) {
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if c, ok := any(output).(dto.CookieSetter); ok {
		if cookie := c.Cookie(); cookie != nil {
			http.SetCookie(w, cookie)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(output); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "rid", RequestID(ctx), "err", err)
	}
}

// writeError writes err as an API error. Domain errors are mapped by toAPIError.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var ewsErr apierrors.ErrorWithStatus
	if !errors.As(err, &ewsErr) {
		ewsErr = toAPIError(err)
	}
	statusCode := ewsErr.StatusCode()
	if statusCode >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Handler error", "rid", RequestID(ctx), "err", err, "statusCode", statusCode, "code", ewsErr.Code())
	} else {
		slog.DebugContext(ctx, "Handler error", "rid", RequestID(ctx), "err", err, "statusCode", statusCode, "code", ewsErr.Code())
	}
	details := ewsErr.Details()
	if statusCode == http.StatusTooManyRequests {
		if v, ok := details["retry_after"].(int); ok {
			w.Header().Set("Retry-After", strconv.Itoa(v))
		}
	}
	msg := ewsErr.Error()
	if statusCode >= http.StatusInternalServerError {
		// The cause is logged above, not returned.
		msg = http.StatusText(statusCode)
	}
	writeErrorResponseWithCode(w, statusCode, ewsErr.Code(), msg, details)
}

// toAPIError maps the sentinel errors of packages hr and auth.
func toAPIError(err error) *apierrors.APIError {
	msg := err.Error()
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrNotAuthenticated),
		errors.Is(err, errInvalidToken),
		errors.Is(err, errInvalidAuthHdr):
		return apierrors.Unauthorized(msg).Wrap(err)
	case errors.Is(err, auth.ErrNotVerified):
		return apierrors.NewAPIError(http.StatusForbidden, apierrors.ErrEmailNotVerified, msg).Wrap(err)
	case errors.Is(err, auth.ErrNotAdmin), errors.Is(err, hr.ErrSelfDelete):
		return apierrors.Forbidden(msg).Wrap(err)
	case errors.Is(err, hr.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, auth.ErrNoPendingVerification):
		return apierrors.NewAPIError(http.StatusNotFound, apierrors.ErrNotFound, msg).Wrap(err)
	case errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, hr.ErrEmailTaken),
		errors.Is(err, hr.ErrDepartmentNameTaken),
		errors.Is(err, hr.ErrDepartmentInUse),
		errors.Is(err, hr.ErrEmployeeNumberTaken),
		errors.Is(err, hr.ErrNotPending):
		return apierrors.Conflict(msg).Wrap(err)
	case errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, hr.ErrFieldsRequired),
		errors.Is(err, hr.ErrInvalidEmail),
		errors.Is(err, hr.ErrWeakPassword),
		errors.Is(err, hr.ErrInvalidRole),
		errors.Is(err, hr.ErrDepartmentName),
		errors.Is(err, hr.ErrUnknownAccount),
		errors.Is(err, hr.ErrUnknownDepartment),
		errors.Is(err, hr.ErrInvalidHireDate),
		errors.Is(err, hr.ErrRequestType),
		errors.Is(err, hr.ErrNoItems),
		errors.Is(err, hr.ErrInvalidItem):
		return apierrors.BadRequest(msg).Wrap(err)
	default:
		return apierrors.InternalWithError("Internal error", err)
	}
}

// populatePathParams extracts path parameters from the request and populates
// struct fields tagged with `path:"paramName"`.
func populatePathParams(r *http.Request, input any) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("path")
		if tag == "" {
			continue
		}
		paramValue := r.PathValue(tag)
		if paramValue == "" {
			continue
		}
		//nolint:exhaustive // Only string and int are bound.
		switch field.Type.Kind() {
		case reflect.String:
			elem.Field(i).SetString(paramValue)
		case reflect.Int:
			if id, ok := hr.ParseID(paramValue); ok {
				elem.Field(i).SetInt(int64(id))
			}
		default:
		}
	}
}

// writeErrorResponseWithCode writes a detailed error response as JSON with code and details.
func writeErrorResponseWithCode(w http.ResponseWriter, statusCode int, code apierrors.ErrorCode, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
	if len(details) > 0 {
		response["details"] = details
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode error response", "err", err)
	}
}
