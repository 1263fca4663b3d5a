package hr

import "errors"

// Errors returned by Service. Messages are shown to users as is.
var (
	ErrNotFound            = errors.New("not found")
	ErrFieldsRequired      = errors.New("please fill in all fields")
	ErrInvalidEmail        = errors.New("please enter a valid email")
	ErrEmailTaken          = errors.New("email already in use")
	ErrWeakPassword        = errors.New("password must be at least 6 characters")
	ErrInvalidRole         = errors.New("role must be user or admin")
	ErrSelfDelete          = errors.New("you cannot delete your own account")
	ErrDepartmentName      = errors.New("please enter a department name")
	ErrDepartmentNameTaken = errors.New("department name already exists")
	ErrDepartmentInUse     = errors.New("cannot delete department with employees")
	ErrEmployeeNumberTaken = errors.New("employee ID already exists")
	ErrUnknownAccount      = errors.New("selected user account does not exist")
	ErrUnknownDepartment   = errors.New("selected department does not exist")
	ErrInvalidHireDate     = errors.New("hire date must be YYYY-MM-DD")
	ErrRequestType         = errors.New("please select a request type")
	ErrNoItems             = errors.New("please add at least one item")
	ErrInvalidItem         = errors.New("please fill in all item fields correctly")
	ErrNotPending          = errors.New("request is no longer pending")
)
