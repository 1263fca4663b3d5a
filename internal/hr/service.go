package hr

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"
)

var emailRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether email looks like an address.
func ValidEmail(email string) bool {
	return emailRE.MatchString(email)
}

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 6

// Service applies the business rules on top of a Store. The store itself
// enforces none: uniqueness, references and state transitions are checked
// here.
//
// Each method checks and mutates under one lock so two concurrent calls
// cannot both pass a uniqueness check.
type Service struct {
	store *Store
	mu    sync.Mutex
}

// NewService returns a Service over store.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Store returns the underlying store.
func (s *Service) Store() *Store {
	return s.store
}

// Do runs fn under the Service lock, for rules implemented outside this
// package that must not interleave with the ones here.
func (s *Service) Do(fn func(*Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.store)
}

// ProfileInput is the editable part of one's own account.
type ProfileInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// UpdateProfile changes the caller's names and email. The caller's session
// token must follow the returned account's email.
func (s *Service) UpdateProfile(actor *Account, in ProfileInput) (*Account, error) {
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)
	email := strings.TrimSpace(in.Email)
	if firstName == "" || lastName == "" || email == "" {
		return nil, ErrFieldsRequired
	}
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if email != actor.Email {
		if _, ok := s.store.Accounts.GetByField("email", email); ok {
			return nil, ErrEmailTaken
		}
	}
	a, ok := s.store.Accounts.Update(actor.ID, AccountPatch{FirstName: &firstName, LastName: &lastName, Email: &email})
	if !ok {
		return nil, fmt.Errorf("account %d: %w", actor.ID, ErrNotFound)
	}
	return a, nil
}

// AccountInput is an account as edited by an administrator.
type AccountInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	// Password is only used by CreateAccount.
	Password string `json:"password,omitempty"`
	Role     Role   `json:"role"`
	Verified bool   `json:"verified"`
}

func (in *AccountInput) clean() error {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	if in.FirstName == "" || in.LastName == "" || in.Email == "" || in.Role == "" {
		return ErrFieldsRequired
	}
	if !ValidEmail(in.Email) {
		return ErrInvalidEmail
	}
	if !in.Role.Valid() {
		return ErrInvalidRole
	}
	return nil
}

// CreateAccount adds an account.
func (s *Service) CreateAccount(in AccountInput) (*Account, error) {
	if err := in.clean(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store.Accounts.GetByField("email", in.Email); ok {
		return nil, ErrEmailTaken
	}
	if len(in.Password) < MinPasswordLen {
		return nil, ErrWeakPassword
	}
	return s.store.Accounts.Insert(&Account{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Password:  in.Password,
		Role:      in.Role,
		Verified:  in.Verified,
	}), nil
}

// UpdateAccount replaces everything but the password of account id.
func (s *Service) UpdateAccount(id int, in AccountInput) (*Account, error) {
	if err := in.clean(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if other, ok := s.store.Accounts.GetByField("email", in.Email); ok && other.ID != id {
		return nil, ErrEmailTaken
	}
	a, ok := s.store.Accounts.Update(id, AccountPatch{
		FirstName: &in.FirstName,
		LastName:  &in.LastName,
		Email:     &in.Email,
		Role:      &in.Role,
		Verified:  &in.Verified,
	})
	if !ok {
		return nil, fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	return a, nil
}

// ResetPassword sets the password of account id.
func (s *Service) ResetPassword(id int, password string) error {
	if len(password) < MinPasswordLen {
		return ErrWeakPassword
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store.Accounts.Update(id, AccountPatch{Password: &password}); !ok {
		return fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteAccount removes account id. Employees and requests referencing it
// are kept.
func (s *Service) DeleteAccount(actor *Account, id int) error {
	if actor != nil && actor.ID == id {
		return ErrSelfDelete
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.store.Accounts.Delete(id) {
		return fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	return nil
}

// DepartmentInput is a department as edited by an administrator.
type DepartmentInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (in *DepartmentInput) clean() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return ErrDepartmentName
	}
	return nil
}

// nameTakenLocked reports whether another department than id uses name,
// ignoring case.
func (s *Service) nameTakenLocked(name string, id int) bool {
	_, ok := s.store.Departments.Find(func(d *Department) bool {
		return strings.EqualFold(d.Name, name) && d.ID != id
	})
	return ok
}

// CreateDepartment adds a department.
func (s *Service) CreateDepartment(in DepartmentInput) (*Department, error) {
	if err := in.clean(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTakenLocked(in.Name, 0) {
		return nil, ErrDepartmentNameTaken
	}
	return s.store.Departments.Insert(&Department{Name: in.Name, Description: in.Description}), nil
}

// UpdateDepartment renames or redescribes department id.
func (s *Service) UpdateDepartment(id int, in DepartmentInput) (*Department, error) {
	if err := in.clean(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTakenLocked(in.Name, id) {
		return nil, ErrDepartmentNameTaken
	}
	d, ok := s.store.Departments.Update(id, DepartmentPatch{Name: &in.Name, Description: &in.Description})
	if !ok {
		return nil, fmt.Errorf("department %d: %w", id, ErrNotFound)
	}
	return d, nil
}

// DeleteDepartment removes department id unless an employee belongs to it.
func (s *Service) DeleteDepartment(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store.Departments.Get(id); !ok {
		return fmt.Errorf("department %d: %w", id, ErrNotFound)
	}
	if n := len(s.store.Employees.Filter(func(e *Employee) bool { return e.DepartmentID == id })); n > 0 {
		return fmt.Errorf("%w: %d employee(s)", ErrDepartmentInUse, n)
	}
	s.store.Departments.Delete(id)
	return nil
}

// EmployeeInput is an employee as edited by an administrator.
type EmployeeInput struct {
	EmployeeNumber string `json:"employeeNumber"`
	UserEmail      string `json:"userEmail"`
	Position       string `json:"position"`
	DepartmentID   int    `json:"departmentId"`
	HireDate       string `json:"hireDate"`
}

// checkEmployeeLocked validates in for employee id, 0 for a new one.
func (s *Service) checkEmployeeLocked(id int, in *EmployeeInput) error {
	in.EmployeeNumber = strings.TrimSpace(in.EmployeeNumber)
	in.UserEmail = strings.TrimSpace(in.UserEmail)
	in.Position = strings.TrimSpace(in.Position)
	in.HireDate = strings.TrimSpace(in.HireDate)
	if in.EmployeeNumber == "" || in.UserEmail == "" || in.Position == "" || in.DepartmentID == 0 || in.HireDate == "" {
		return ErrFieldsRequired
	}
	if _, err := time.Parse(time.DateOnly, in.HireDate); err != nil {
		return ErrInvalidHireDate
	}
	if _, ok := s.store.Employees.Find(func(e *Employee) bool {
		return e.EmployeeNumber == in.EmployeeNumber && e.ID != id
	}); ok {
		return ErrEmployeeNumberTaken
	}
	if _, ok := s.store.Accounts.GetByField("email", in.UserEmail); !ok {
		return ErrUnknownAccount
	}
	if _, ok := s.store.Departments.Get(in.DepartmentID); !ok {
		return ErrUnknownDepartment
	}
	return nil
}

// CreateEmployee adds an employee.
func (s *Service) CreateEmployee(in EmployeeInput) (*Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEmployeeLocked(0, &in); err != nil {
		return nil, err
	}
	return s.store.Employees.Insert(&Employee{
		EmployeeNumber: in.EmployeeNumber,
		UserEmail:      in.UserEmail,
		Position:       in.Position,
		DepartmentID:   in.DepartmentID,
		HireDate:       in.HireDate,
	}), nil
}

// UpdateEmployee replaces the fields of employee id.
func (s *Service) UpdateEmployee(id int, in EmployeeInput) (*Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store.Employees.Get(id); !ok {
		return nil, fmt.Errorf("employee %d: %w", id, ErrNotFound)
	}
	if err := s.checkEmployeeLocked(id, &in); err != nil {
		return nil, err
	}
	e, _ := s.store.Employees.Update(id, EmployeePatch{
		EmployeeNumber: &in.EmployeeNumber,
		UserEmail:      &in.UserEmail,
		Position:       &in.Position,
		DepartmentID:   &in.DepartmentID,
		HireDate:       &in.HireDate,
	})
	return e, nil
}

// DeleteEmployee removes employee id.
func (s *Service) DeleteEmployee(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.store.Employees.Delete(id) {
		return fmt.Errorf("employee %d: %w", id, ErrNotFound)
	}
	return nil
}

// RequestInput is a new request.
type RequestInput struct {
	Type  RequestType `json:"type"`
	Items []Item      `json:"items"`
}

// SubmitRequest files a pending request on behalf of actor.
func (s *Service) SubmitRequest(actor *Account, in RequestInput) (*Request, error) {
	if !in.Type.Valid() {
		return nil, ErrRequestType
	}
	items := make([]Item, 0, len(in.Items))
	for _, it := range in.Items {
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" || it.Quantity < 1 {
			return nil, ErrInvalidItem
		}
		items = append(items, it)
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Requests.Insert(&Request{
		Type:          in.Type,
		EmployeeEmail: actor.Email,
		Items:         items,
		Status:        StatusPending,
		Date:          s.store.now(),
	}), nil
}

// Requests returns actor's requests, newest first.
func (s *Service) Requests(actor *Account) []*Request {
	return byDateDesc(s.store.Requests.Filter(func(r *Request) bool { return r.EmployeeEmail == actor.Email }))
}

// AllRequests returns every request, newest first.
func (s *Service) AllRequests() []*Request {
	return byDateDesc(s.store.Requests.All())
}

func byDateDesc(rs []*Request) []*Request {
	slices.SortStableFunc(rs, func(a, b *Request) int { return cmp.Compare(b.Date.UnixNano(), a.Date.UnixNano()) })
	return rs
}

// Request returns request id when actor owns it or is an administrator.
func (s *Service) Request(actor *Account, id int) (*Request, error) {
	r, ok := s.store.Requests.Get(id)
	if !ok || (r.EmployeeEmail != actor.Email && !actor.IsAdmin()) {
		return nil, fmt.Errorf("request %d: %w", id, ErrNotFound)
	}
	return r, nil
}

// CancelRequest deletes one of actor's pending requests.
func (s *Service) CancelRequest(actor *Account, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.store.Requests.Get(id)
	if !ok || r.EmployeeEmail != actor.Email {
		return fmt.Errorf("request %d: %w", id, ErrNotFound)
	}
	if r.Status != StatusPending {
		return ErrNotPending
	}
	s.store.Requests.Delete(id)
	return nil
}

// ApproveRequest moves a pending request to Approved.
func (s *Service) ApproveRequest(id int) (*Request, error) {
	return s.review(id, StatusApproved)
}

// RejectRequest moves a pending request to Rejected.
func (s *Service) RejectRequest(id int) (*Request, error) {
	return s.review(id, StatusRejected)
}

func (s *Service) review(id int, to Status) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.store.Requests.Get(id)
	if !ok {
		return nil, fmt.Errorf("request %d: %w", id, ErrNotFound)
	}
	if r.Status != StatusPending {
		return nil, ErrNotPending
	}
	r, _ = s.store.Requests.Update(id, RequestPatch{Status: &to})
	return r, nil
}
