package devapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/go-school-admin/apimodel"
	"github.com/jrsteele09/go-school-admin/users"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Post(apimodel.RouteLogin, s.handleLogin)
	r.Post(apimodel.RouteRefresh, s.handleRefresh)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(requireRole(users.RoleAdmin))

			r.Route(apimodel.RouteStudents, func(r chi.Router) {
				r.Get("/", s.handleListStudents)
				r.Post("/", s.handleCreateStudent)
				r.Route("/{id}", func(r chi.Router) {
					r.Patch("/", s.handleUpdateStudent)
					r.Delete("/", s.handleDeleteStudent)
				})
			})

			r.Route(apimodel.RouteTeachers, func(r chi.Router) {
				r.Get("/", s.handleListTeachers)
				r.Post("/", s.handleCreateTeacher)
				r.Route("/{id}", func(r chi.Router) {
					r.Patch("/", s.handleUpdateTeacher)
					r.Delete("/", s.handleDeleteTeacher)
					r.Get("/students", s.handleTeacherStudents)
				})
			})
		})

		// Teacher
		r.Group(func(r chi.Router) {
			r.Use(requireRole(users.RoleTeacher))

			r.Route(apimodel.RouteMyStudents, func(r chi.Router) {
				r.Get("/", s.handleListMyStudents)
				r.Post("/", s.handleAddMyStudent)
				r.Route("/{id}", func(r chi.Router) {
					r.Patch("/", s.handleUpdateMyStudent)
					r.Delete("/", s.handleDeleteMyStudent)
				})
			})
			r.Get(apimodel.RouteTeacherProfile, s.handleGetTeacherProfile)
			r.Patch(apimodel.RouteTeacherProfile, s.handleUpdateTeacherProfile)
		})

		// Student
		r.Group(func(r chi.Router) {
			r.Use(requireRole(users.RoleStudent))

			r.Get(apimodel.RouteStudentProfile, s.handleGetStudentProfile)
			r.Patch(apimodel.RouteStudentProfile, s.handleUpdateStudentProfile)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	return r
}
