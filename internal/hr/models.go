// Package hr holds the human-resources document (accounts, departments,
// employees and requests) and the rules that mutate it.
//
// The whole document lives in memory inside a [Store] and is written back, as
// one JSON value, to a [kv.Storage] key after every mutation.
package hr

import (
	"slices"
	"time"
)

// Meta is embedded in every record.
type Meta struct {
	ID        int       `json:"id" yaml:"id" jsonschema:"description=Identifier unique within the collection"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt" jsonschema:"description=Insertion time"`
	UpdatedAt time.Time `json:"updatedAt,omitzero" yaml:"updatedAt,omitempty" jsonschema:"description=Time of the last update"`
}

func (m *Meta) meta() *Meta { return m }

// Role is an account's access level.
type Role string

// Account roles.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account is a person able to log in.
type Account struct {
	Meta      `yaml:",inline"`
	FirstName string `json:"firstName" yaml:"firstName" jsonschema:"description=Given name"`
	LastName  string `json:"lastName" yaml:"lastName" jsonschema:"description=Family name"`
	Email     string `json:"email" yaml:"email" jsonschema:"description=Login and session token; unique and case sensitive"`
	// Password is kept in clear text.
	Password string `json:"password" yaml:"password" jsonschema:"description=Clear text password"`
	Role     Role   `json:"role" yaml:"role" jsonschema:"enum=user,enum=admin"`
	Verified bool   `json:"verified" yaml:"verified" jsonschema:"description=Whether the email address was verified"`
}

// Clone returns a copy of a.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}

// FullName returns "First Last".
func (a *Account) FullName() string {
	return a.FirstName + " " + a.LastName
}

// IsAdmin reports whether a has the admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Department groups employees.
type Department struct {
	Meta        `yaml:",inline"`
	Name        string `json:"name" yaml:"name" jsonschema:"description=Unique name ignoring case"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Clone returns a copy of d.
func (d *Department) Clone() *Department {
	c := *d
	return &c
}

// Employee links an account to a position in a department.
type Employee struct {
	Meta           `yaml:",inline"`
	EmployeeNumber string `json:"employeeNumber" yaml:"employeeNumber" jsonschema:"description=Unique employee number"`
	UserEmail      string `json:"userEmail" yaml:"userEmail" jsonschema:"description=Email of the linked account"`
	Position       string `json:"position" yaml:"position"`
	DepartmentID   int    `json:"departmentId" yaml:"departmentId" jsonschema:"description=ID of the department"`
	HireDate       string `json:"hireDate" yaml:"hireDate" jsonschema:"description=Hire date as YYYY-MM-DD"`
}

// Clone returns a copy of e.
func (e *Employee) Clone() *Employee {
	c := *e
	return &c
}

// RequestType is the category of a request.
type RequestType string

// Request categories.
const (
	RequestEquipment RequestType = "Equipment"
	RequestLeave     RequestType = "Leave"
	RequestResources RequestType = "Resources"
)

// RequestTypes lists the accepted categories.
var RequestTypes = []RequestType{RequestEquipment, RequestLeave, RequestResources}

// Valid reports whether t is a known category.
func (t RequestType) Valid() bool {
	return slices.Contains(RequestTypes, t)
}

// Status is a request's review state.
type Status string

// Request states. Pending is the only state that can change.
const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Item is one line of a request.
type Item struct {
	Name     string `json:"name" yaml:"name"`
	Quantity int    `json:"quantity" yaml:"quantity" jsonschema:"minimum=1"`
}

// Request is something an account asks for.
//
// EmployeeEmail references Account.Email, not an Employee.
type Request struct {
	Meta          `yaml:",inline"`
	Type          RequestType `json:"type" yaml:"type" jsonschema:"enum=Equipment,enum=Leave,enum=Resources"`
	EmployeeEmail string      `json:"employeeEmail" yaml:"employeeEmail" jsonschema:"description=Email of the requesting account"`
	Items         []Item      `json:"items" yaml:"items"`
	Status        Status      `json:"status" yaml:"status" jsonschema:"enum=Pending,enum=Approved,enum=Rejected"`
	Date          time.Time   `json:"date" yaml:"date" jsonschema:"description=Submission time"`
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	c := *r
	c.Items = slices.Clone(r.Items)
	return &c
}

// Data is the persisted document.
type Data struct {
	Accounts    []*Account    `json:"accounts" yaml:"accounts"`
	Departments []*Department `json:"departments" yaml:"departments"`
	Employees   []*Employee   `json:"employees" yaml:"employees"`
	Requests    []*Request    `json:"requests" yaml:"requests"`
}

// Clone returns a deep copy of d.
func (d *Data) Clone() *Data {
	return &Data{
		Accounts:    cloneAll(d.Accounts),
		Departments: cloneAll(d.Departments),
		Employees:   cloneAll(d.Employees),
		Requests:    cloneAll(d.Requests),
	}
}

// normalize replaces missing collections with empty ones and drops null
// records so the document always encodes four arrays.
func (d *Data) normalize() {
	d.Accounts = compact(d.Accounts)
	d.Departments = compact(d.Departments)
	d.Employees = compact(d.Employees)
	d.Requests = compact(d.Requests)
}

func cloneAll[T Record[T]](rows []T) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Clone())
	}
	return out
}

func compact[T comparable](rows []T) []T {
	var zero T
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if r != zero {
			out = append(out, r)
		}
	}
	return out
}

// AccountPatch changes the non-nil fields of an Account.
type AccountPatch struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Email     *string `json:"email,omitempty"`
	Password  *string `json:"password,omitempty"`
	Role      *Role   `json:"role,omitempty"`
	Verified  *bool   `json:"verified,omitempty"`
}

// Apply implements Patch.
func (p AccountPatch) Apply(a *Account) {
	set(&a.FirstName, p.FirstName)
	set(&a.LastName, p.LastName)
	set(&a.Email, p.Email)
	set(&a.Password, p.Password)
	set(&a.Role, p.Role)
	set(&a.Verified, p.Verified)
}

// DepartmentPatch changes the non-nil fields of a Department.
type DepartmentPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Apply implements Patch.
func (p DepartmentPatch) Apply(d *Department) {
	set(&d.Name, p.Name)
	set(&d.Description, p.Description)
}

// EmployeePatch changes the non-nil fields of an Employee.
type EmployeePatch struct {
	EmployeeNumber *string `json:"employeeNumber,omitempty"`
	UserEmail      *string `json:"userEmail,omitempty"`
	Position       *string `json:"position,omitempty"`
	DepartmentID   *int    `json:"departmentId,omitempty"`
	HireDate       *string `json:"hireDate,omitempty"`
}

// Apply implements Patch.
func (p EmployeePatch) Apply(e *Employee) {
	set(&e.EmployeeNumber, p.EmployeeNumber)
	set(&e.UserEmail, p.UserEmail)
	set(&e.Position, p.Position)
	set(&e.DepartmentID, p.DepartmentID)
	set(&e.HireDate, p.HireDate)
}

// RequestPatch changes the non-nil fields of a Request.
type RequestPatch struct {
	Type   *RequestType `json:"type,omitempty"`
	Items  *[]Item      `json:"items,omitempty"`
	Status *Status      `json:"status,omitempty"`
}

// Apply implements Patch.
func (p RequestPatch) Apply(r *Request) {
	set(&r.Type, p.Type)
	if p.Items != nil {
		r.Items = slices.Clone(*p.Items)
	}
	set(&r.Status, p.Status)
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}
