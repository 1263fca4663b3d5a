package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routes creates and configures the HTTP router.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /api/health", Wrap(s.Health))
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Auth
	mux.Handle("POST /api/auth/login", Wrap(s.Login))
	mux.Handle("POST /api/auth/logout", Wrap(s.Logout))
	mux.Handle("POST /api/auth/register", Wrap(s.Register))
	mux.Handle("POST /api/auth/verify", Wrap(s.Verify))
	mux.Handle("GET /api/auth/me", WrapAuth(s, s.Me))
	mux.Handle("PUT /api/profile", WrapAuth(s, s.UpdateProfile))

	// Own requests
	mux.Handle("GET /api/requests", WrapAuth(s, s.ListRequests))
	mux.Handle("POST /api/requests", WrapAuth(s, s.SubmitRequest))
	mux.Handle("GET /api/requests/{id}", WrapAuth(s, s.GetRequest))
	mux.Handle("DELETE /api/requests/{id}", WrapAuth(s, s.CancelRequest))

	// Admin: requests
	mux.Handle("GET /api/admin/requests", WrapAdmin(s, s.ListAllRequests))
	mux.Handle("POST /api/admin/requests/{id}/approve", WrapAdmin(s, s.ApproveRequest))
	mux.Handle("POST /api/admin/requests/{id}/reject", WrapAdmin(s, s.RejectRequest))

	// Admin: accounts
	mux.Handle("GET /api/admin/accounts", WrapAdmin(s, s.ListAccounts))
	mux.Handle("POST /api/admin/accounts", WrapAdmin(s, s.CreateAccount))
	mux.Handle("GET /api/admin/accounts/{id}", WrapAdmin(s, s.GetAccount))
	mux.Handle("PUT /api/admin/accounts/{id}", WrapAdmin(s, s.UpdateAccount))
	mux.Handle("DELETE /api/admin/accounts/{id}", WrapAdmin(s, s.DeleteAccount))
	mux.Handle("POST /api/admin/accounts/{id}/password", WrapAdmin(s, s.ResetPassword))

	// Admin: employees
	mux.Handle("GET /api/admin/employees", WrapAdmin(s, s.ListEmployees))
	mux.Handle("POST /api/admin/employees", WrapAdmin(s, s.CreateEmployee))
	mux.Handle("GET /api/admin/employees/{id}", WrapAdmin(s, s.GetEmployee))
	mux.Handle("PUT /api/admin/employees/{id}", WrapAdmin(s, s.UpdateEmployee))
	mux.Handle("DELETE /api/admin/employees/{id}", WrapAdmin(s, s.DeleteEmployee))

	// Admin: departments
	mux.Handle("GET /api/admin/departments", WrapAdmin(s, s.ListDepartments))
	mux.Handle("POST /api/admin/departments", WrapAdmin(s, s.CreateDepartment))
	mux.Handle("GET /api/admin/departments/{id}", WrapAdmin(s, s.GetDepartment))
	mux.Handle("PUT /api/admin/departments/{id}", WrapAdmin(s, s.UpdateDepartment))
	mux.Handle("DELETE /api/admin/departments/{id}", WrapAdmin(s, s.DeleteDepartment))

	mux.Handle("GET /api/admin/collections/{name}", WrapAdmin(s, s.GetCollection))
	return mux
}
