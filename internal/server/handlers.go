package server

import (
	"context"
	"fmt"
	"log/slog"

	apierrors "github.com/maruel/hrdesk/internal/errors"
	"github.com/maruel/hrdesk/internal/hr"
	"github.com/maruel/hrdesk/internal/server/dto"
)

// --- Auth ---

// Login opens a session. Attempts are rate limited per client IP.
func (s *Server) Login(ctx context.Context, req *dto.LoginRequest) (*dto.SessionResponse, error) {
	if ok, retry := s.logins.allow(clientIPFromContext(ctx)); !ok {
		return nil, apierrors.RateLimited(max(int(retry.Seconds()+0.999), 1))
	}
	a, err := s.auth.Authenticate(req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	return s.openSession(a)
}

func (s *Server) openSession(a *hr.Account) (*dto.SessionResponse, error) {
	token, cookie, err := s.sessions.issue(a.Email)
	if err != nil {
		return nil, apierrors.InternalWithError("Failed to generate token", err)
	}
	return dto.NewSessionResponse(token, dto.NewUserResponse(a), cookie), nil
}

// Logout clears the session cookie. Bearer tokens stay valid until they
// expire.
func (s *Server) Logout(ctx context.Context, req *dto.LogoutRequest) (*dto.LogoutResponse, error) {
	return dto.NewLogoutResponse(s.sessions.clear()), nil
}

// Register creates an unverified account. The verification email is
// simulated by a log line.
func (s *Server) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	a, err := s.auth.Register(req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Verification email sent", "rid", RequestID(ctx), "email", a.Email)
	return &dto.RegisterResponse{
		User:    dto.NewUserResponse(a),
		Message: "Registration successful! Please verify your email.",
	}, nil
}

// Verify marks an account as verified.
func (s *Server) Verify(ctx context.Context, req *dto.VerifyRequest) (*dto.OkResponse, error) {
	if err := s.auth.VerifyEmail(req.Email); err != nil {
		return nil, err
	}
	return &dto.OkResponse{Ok: true}, nil
}

// Me returns the current user.
func (s *Server) Me(ctx context.Context, user *hr.Account, req *dto.GetMeRequest) (*dto.UserResponse, error) {
	return dto.NewUserResponse(user), nil
}

// UpdateProfile changes the current user's names and email. A new session is
// issued since the token designates the email.
func (s *Server) UpdateProfile(ctx context.Context, user *hr.Account, req *dto.UpdateProfileRequest) (*dto.SessionResponse, error) {
	a, err := s.hr.UpdateProfile(user, req.ProfileInput)
	if err != nil {
		return nil, err
	}
	return s.openSession(a)
}

// --- Requests ---

// ListRequests returns the current user's requests, newest first.
func (s *Server) ListRequests(ctx context.Context, user *hr.Account, req *dto.ListRequest) (*dto.RequestListResponse, error) {
	return &dto.RequestListResponse{Requests: nonNil(s.hr.Requests(user))}, nil
}

// SubmitRequest files a request for the current user.
func (s *Server) SubmitRequest(ctx context.Context, user *hr.Account, req *dto.SubmitRequestRequest) (*hr.Request, error) {
	return s.hr.SubmitRequest(user, req.RequestInput)
}

// GetRequest returns one of the current user's requests, or any request for
// an administrator.
func (s *Server) GetRequest(ctx context.Context, user *hr.Account, req *dto.IDRequest) (*hr.Request, error) {
	return s.hr.Request(user, req.ID)
}

// CancelRequest withdraws one of the current user's pending requests.
func (s *Server) CancelRequest(ctx context.Context, user *hr.Account, req *dto.IDRequest) (*dto.OkResponse, error) {
	if err := s.hr.CancelRequest(user, req.ID); err != nil {
		return nil, err
	}
	return &dto.OkResponse{Ok: true}, nil
}

// --- Admin: requests ---

// ListAllRequests returns every request, newest first.
func (s *Server) ListAllRequests(ctx context.Context, user *hr.Account, req *dto.ListRequest) (*dto.RequestListResponse, error) {
	return &dto.RequestListResponse{Requests: nonNil(s.hr.AllRequests())}, nil
}

// ApproveRequest approves a pending request.
func (s *Server) ApproveRequest(ctx context.Context, user *hr.Account, req *dto.IDRequest) (*hr.Request, error) {
	r, err := s.hr.ApproveRequest(req.ID)
	if err == nil {
		slog.InfoContext(ctx, "Request approved", "rid", RequestID(ctx), "id", r.ID, "by", user.Email)
	}
	return r, err
}

// RejectRequest rejects a pending request.
func (s *Server) RejectRequest(ctx context.Context, user *hr.Account, req *dto.IDRequest) (*hr.Request, error) {
	r, err := s.hr.RejectRequest(req.ID)
	if err == nil {
		slog.InfoContext(ctx, "Request rejected", "rid", RequestID(ctx), "id", r.ID, "by", user.Email)
	}
	return r, err
}

// --- Admin: accounts ---

// ListAccounts returns every account.
func (s *Server) ListAccounts(ctx context.Context, user *hr.Account, req *dto.ListRequest) (*dto.UserListResponse, error) {
	return &dto.UserListResponse{Users: dto.NewUserResponses(s.hr.Store().Accounts.All())}, nil
}

// GetAccount returns one account.
func (s *Server) GetAccount(ctx context.Context, user *hr.Account, req *dto.IDRequest) (*dto.UserResponse, error) {
	a, ok := s.hr.Store().Accounts.Get(req.ID)
	if !ok {
		return nil, fmt.Errorf("account %d: %w", req.ID, hr.ErrNotFound)
	}
	return dto.NewUserResponse(a), nil
}

// CreateAccount adds an account.
func (s *Server) CreateAccount(ctx context.Context, user *hr.Account, req *dto.AccountRequest) (*dto.UserResponse, error) {
	a, err := s.hr.CreateAccount(req.AccountInput)
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponse(a), nil
}

// UpdateAccount replaces an account's fields except its password.
func (s *Server) UpdateAccount(ctx context.Context, user *hr.Account, req *dto.UpdateAccountRequest) (*dto.UserResponse, error) {
	a, err := s.hr.UpdateAccount(req.ID, req.AccountInput)
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponse(a), nil
}

// ResetPassword sets an account's password.
func (s *Server) ResetPassword(ctx context.Context, user *hr.Account, req *dto.ResetPasswordRequest) (*dto.OkResponse, error) {
	if err := s.hr.ResetPassword(req.ID, req.Password); err != nil {
		return nil, err
	}
	return &dto.OkResponse{Ok: true}, nil
}

// DeleteAccount removes an account other than the caller's.
func (s *Server) DeleteAccount(ctx context.Context, user *hr.Account, req *dto.IDRequest) (*dto.OkResponse, error) {
	if err := s.hr.DeleteAccount(user, req.ID); err != nil {
		return nil, err
	}
	return &dto.OkResponse{Ok: true}, nil
}

// --- Admin: employees ---

// ListEmployees returns every employee.
func (s *Server) ListEmployees(ctx context.Context, user *hr.Account, req *dto.ListRequest) (*dto.EmployeeListResponse, error) {
	return &dto.EmployeeListResponse{Employees: nonNil(s.hr.Store().Employees.All())}, nil
}

// GetEmployee returns one employee.
func (s *Server) GetEmployee(ctx context.Context, user *hr.Account, req *dto.IDRequest) (*hr.Employee, error) {
	e, ok := s.hr.Store().Employees.Get(req.ID)
	if !ok {
		return nil, fmt.Errorf("employee %d: %w", req.ID, hr.ErrNotFound)
	}
	return e, nil
}

// CreateEmployee adds an employee.
func (s *Server) CreateEmployee(ctx context.Context, user *hr.Account, req *dto.EmployeeRequest) (*hr.Employee, error) {
	return s.hr.CreateEmployee(req.EmployeeInput)
}

// UpdateEmployee replaces an employee's fields.
func (s *Server) UpdateEmployee(ctx context.Context, user *hr.Account, req *dto.UpdateEmployeeRequest) (*hr.Employee, error) {
	return s.hr.UpdateEmployee(req.ID, req.EmployeeInput)
}

// DeleteEmployee removes an employee.
func (s *Server) DeleteEmployee(ctx context.Context, user *hr.Account, req *dto.IDRequest) (*dto.OkResponse, error) {
	if err := s.hr.DeleteEmployee(req.ID); err != nil {
		return nil, err
	}
	return &dto.OkResponse{Ok: true}, nil
}

// --- Admin: departments ---

// ListDepartments returns every department.
func (s *Server) ListDepartments(ctx context.Context, user *hr.Account, req *dto.ListRequest) (*dto.DepartmentListResponse, error) {
	return &dto.DepartmentListResponse{Departments: nonNil(s.hr.Store().Departments.All())}, nil
}

// GetDepartment returns one department.
func (s *Server) GetDepartment(ctx context.Context, user *hr.Account, req *dto.IDRequest) (*hr.Department, error) {
	d, ok := s.hr.Store().Departments.Get(req.ID)
	if !ok {
		return nil, fmt.Errorf("department %d: %w", req.ID, hr.ErrNotFound)
	}
	return d, nil
}

// CreateDepartment adds a department.
func (s *Server) CreateDepartment(ctx context.Context, user *hr.Account, req *dto.DepartmentRequest) (*hr.Department, error) {
	return s.hr.CreateDepartment(req.DepartmentInput)
}

// UpdateDepartment replaces a department's fields.
func (s *Server) UpdateDepartment(ctx context.Context, user *hr.Account, req *dto.UpdateDepartmentRequest) (*hr.Department, error) {
	return s.hr.UpdateDepartment(req.ID, req.DepartmentInput)
}

// DeleteDepartment removes a department no employee belongs to.
func (s *Server) DeleteDepartment(ctx context.Context, user *hr.Account, req *dto.IDRequest) (*dto.OkResponse, error) {
	if err := s.hr.DeleteDepartment(req.ID); err != nil {
		return nil, err
	}
	return &dto.OkResponse{Ok: true}, nil
}

// GetCollection dumps one collection of the document. Account passwords are
// removed.
func (s *Server) GetCollection(ctx context.Context, user *hr.Account, req *dto.CollectionRequest) (*dto.CollectionResponse, error) {
	st := s.hr.Store()
	if req.Name == hr.CollectionAccounts {
		records := []any{}
		for _, u := range dto.NewUserResponses(st.Accounts.All()) {
			records = append(records, u)
		}
		return &dto.CollectionResponse{Name: req.Name, Records: records}, nil
	}
	c := st.Collection(req.Name)
	if c == nil {
		return nil, apierrors.NotFound("collection " + req.Name)
	}
	return &dto.CollectionResponse{Name: c.Name(), Records: nonNil(c.Values())}, nil
}

// --- Misc ---

// Health reports liveness and whether the document is persisted.
func (s *Server) Health(ctx context.Context, req *dto.HealthRequest) (*dto.HealthResponse, error) {
	st := s.hr.Store()
	resp := &dto.HealthResponse{Status: "ok", Version: s.version, Dirty: st.Dirty()}
	if err := st.LastPersistError(); err != nil {
		resp.Status = "degraded"
		resp.LastPersistError = err.Error()
	}
	return resp, nil
}

// nonNil returns an empty slice instead of nil so lists encode as [].
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
