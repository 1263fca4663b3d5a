// Package dto defines the HTTP API request and response types.
//
// Request types bind path parameters through `path:"name"` tags and the JSON
// body through json tags. Field rules shared with the command line live in
// package hr; Validate only rejects requests that cannot be routed.
package dto

import (
	"github.com/maruel/hrdesk/internal/errors"
	"github.com/maruel/hrdesk/internal/hr"
)

// Validatable is implemented by every request type.
type Validatable interface {
	Validate() error
}

// --- Auth ---

// LoginRequest is a request to open a session.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate validates the login request fields.
func (r *LoginRequest) Validate() error {
	if r.Email == "" {
		return errors.MissingField("email")
	}
	if r.Password == "" {
		return errors.MissingField("password")
	}
	return nil
}

// LogoutRequest is a request to close the session.
type LogoutRequest struct{}

// Validate is a no-op for LogoutRequest.
func (r *LogoutRequest) Validate() error {
	return nil
}

// RegisterRequest is a request to create an unverified account.
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Validate validates the register request fields.
func (r *RegisterRequest) Validate() error {
	if r.FirstName == "" || r.LastName == "" || r.Email == "" || r.Password == "" {
		return errors.BadRequest(hr.ErrFieldsRequired.Error())
	}
	if !hr.ValidEmail(r.Email) {
		return errors.InvalidFormat("email", hr.ErrInvalidEmail.Error())
	}
	if len(r.Password) < hr.MinPasswordLen {
		return errors.BadRequest(hr.ErrWeakPassword.Error())
	}
	return nil
}

// VerifyRequest simulates following the link of a verification email.
type VerifyRequest struct {
	Email string `json:"email"`
}

// Validate validates the verify request fields.
func (r *VerifyRequest) Validate() error {
	if r.Email == "" {
		return errors.MissingField("email")
	}
	return nil
}

// GetMeRequest is a request for the current user.
type GetMeRequest struct{}

// Validate is a no-op for GetMeRequest.
func (r *GetMeRequest) Validate() error {
	return nil
}

// UpdateProfileRequest changes the current user's names and email.
type UpdateProfileRequest struct {
	hr.ProfileInput
}

// Validate is a no-op; hr.Service checks the fields.
func (r *UpdateProfileRequest) Validate() error {
	return nil
}

// --- Requests ---

// ListRequest lists a collection.
type ListRequest struct{}

// Validate is a no-op for ListRequest.
func (r *ListRequest) Validate() error {
	return nil
}

// SubmitRequestRequest files a new request.
type SubmitRequestRequest struct {
	hr.RequestInput
}

// Validate is a no-op; hr.Service checks the type and items.
func (r *SubmitRequestRequest) Validate() error {
	return nil
}

// IDRequest addresses one record by the {id} path parameter.
type IDRequest struct {
	ID int `path:"id" json:"-"`
}

// Validate validates the record id.
func (r *IDRequest) Validate() error {
	return validID(r.ID)
}

// --- Admin ---

// AccountRequest creates an account.
type AccountRequest struct {
	ID int `path:"id" json:"-"`
	hr.AccountInput
}

// Validate is a no-op; hr.Service checks the fields.
func (r *AccountRequest) Validate() error {
	return nil
}

// UpdateAccountRequest replaces an account.
type UpdateAccountRequest AccountRequest

// Validate validates the account id.
func (r *UpdateAccountRequest) Validate() error {
	return validID(r.ID)
}

// ResetPasswordRequest sets an account's password.
type ResetPasswordRequest struct {
	ID       int    `path:"id" json:"-"`
	Password string `json:"password"`
}

// Validate validates the account id.
func (r *ResetPasswordRequest) Validate() error {
	return validID(r.ID)
}

// DepartmentRequest creates a department.
type DepartmentRequest struct {
	ID int `path:"id" json:"-"`
	hr.DepartmentInput
}

// Validate is a no-op; hr.Service checks the fields.
func (r *DepartmentRequest) Validate() error {
	return nil
}

// UpdateDepartmentRequest replaces a department.
type UpdateDepartmentRequest DepartmentRequest

// Validate validates the department id.
func (r *UpdateDepartmentRequest) Validate() error {
	return validID(r.ID)
}

// EmployeeRequest creates an employee.
type EmployeeRequest struct {
	ID int `path:"id" json:"-"`
	hr.EmployeeInput
}

// Validate is a no-op; hr.Service checks the fields.
func (r *EmployeeRequest) Validate() error {
	return nil
}

// UpdateEmployeeRequest replaces an employee.
type UpdateEmployeeRequest EmployeeRequest

// Validate validates the employee id.
func (r *UpdateEmployeeRequest) Validate() error {
	return validID(r.ID)
}

// CollectionRequest dumps one collection of the document.
type CollectionRequest struct {
	Name string `path:"name" json:"-"`
}

// Validate validates the collection name.
func (r *CollectionRequest) Validate() error {
	if r.Name == "" {
		return errors.MissingField("name")
	}
	return nil
}

// HealthRequest is a liveness probe.
type HealthRequest struct{}

// Validate is a no-op for HealthRequest.
func (r *HealthRequest) Validate() error {
	return nil
}

func validID(id int) error {
	if id <= 0 {
		return errors.InvalidFormat("id", "invalid id")
	}
	return nil
}
