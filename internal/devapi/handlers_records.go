package devapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-school-admin/apimodel"
	"github.com/jrsteele09/go-school-admin/internal/errors"
	"github.com/jrsteele09/go-school-admin/school"
	"github.com/jrsteele09/go-school-admin/users"
)

var errNotFound = errors.ErrNotFound

func pageParams(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	return page, perPage
}

func idParam(r *http.Request) users.ID {
	return users.ID(chi.URLParam(r, "id"))
}

// writeResult maps the outcome of a record operation to a response.
func (s *Server) writeResult(w http.ResponseWriter, status int, body any, fields apimodel.FieldErrors, err error) {
	switch {
	case len(fields) > 0:
		writeValidation(w, fields)
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case err != nil:
		s.logger.Err(err).Msg("Record operation failed")
		writeError(w, http.StatusInternalServerError, "Server Error")
	default:
		writeJSON(w, status, body)
	}
}

// Admin: students

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	list, err := s.studentsWhere(nil)
	if err != nil {
		s.writeResult(w, 0, nil, nil, err)
		return
	}
	page, perPage := pageParams(r)
	writeJSON(w, http.StatusOK, paginate(list, page, perPage))
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req school.Student
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	st, fields, err := s.CreateStudent(req)
	s.writeResult(w, http.StatusCreated, map[string]any{"message": "Student created successfully", "student": st}, fields, err)
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req school.Student
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	st, fields, err := s.updateStudent(idParam(r), req)
	s.writeResult(w, http.StatusOK, map[string]any{"message": "Student updated successfully", "student": st}, fields, err)
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := s.deleteStudent(idParam(r)); err != nil {
		s.writeResult(w, 0, nil, nil, err)
		return
	}
	writeMessage(w, http.StatusOK, "Student deleted successfully")
}

// Admin: teachers

// handleListTeachers pages when ?page is given and returns the full list otherwise.
func (s *Server) handleListTeachers(w http.ResponseWriter, r *http.Request) {
	list, err := s.allTeachers()
	if err != nil {
		s.writeResult(w, 0, nil, nil, err)
		return
	}
	if !r.URL.Query().Has("page") {
		writeJSON(w, http.StatusOK, list)
		return
	}
	page, perPage := pageParams(r)
	writeJSON(w, http.StatusOK, paginate(list, page, perPage))
}

func (s *Server) handleCreateTeacher(w http.ResponseWriter, r *http.Request) {
	var req school.Teacher
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	t, fields, err := s.CreateTeacher(req)
	s.writeResult(w, http.StatusCreated, map[string]any{"message": "Teacher created successfully", "teacher": t}, fields, err)
}

func (s *Server) handleUpdateTeacher(w http.ResponseWriter, r *http.Request) {
	var req school.Teacher
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	t, fields, err := s.updateTeacher(idParam(r), req)
	s.writeResult(w, http.StatusOK, t, fields, err)
}

func (s *Server) handleDeleteTeacher(w http.ResponseWriter, r *http.Request) {
	if err := s.deleteTeacher(idParam(r)); err != nil {
		s.writeResult(w, 0, nil, nil, err)
		return
	}
	writeMessage(w, http.StatusOK, "Teacher deleted successfully")
}

func (s *Server) handleTeacherStudents(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)
	if !s.isTeacher(id) {
		writeError(w, http.StatusNotFound, "Teacher not found")
		return
	}
	list, err := s.studentsWhere(func(st school.Student) bool { return st.TeacherID == id })
	if err != nil {
		s.writeResult(w, 0, nil, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": list})
}

// Teacher: own students

func (s *Server) handleListMyStudents(w http.ResponseWriter, r *http.Request) {
	me := userFromContext(r.Context()).ID
	list, err := s.studentsWhere(func(st school.Student) bool { return st.TeacherID == me })
	if err != nil {
		s.writeResult(w, 0, nil, nil, err)
		return
	}
	page, perPage := pageParams(r)
	writeJSON(w, http.StatusOK, paginate(list, page, perPage))
}

func (s *Server) handleAddMyStudent(w http.ResponseWriter, r *http.Request) {
	var req school.Student
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.TeacherID = userFromContext(r.Context()).ID
	st, fields, err := s.CreateStudent(req)
	s.writeResult(w, http.StatusCreated, map[string]any{"message": "Student added successfully", "student": st}, fields, err)
}

// ownStudent reports whether the student exists and is assigned to the calling teacher.
func (s *Server) ownStudent(r *http.Request) (users.ID, bool) {
	id := idParam(r)
	st, ok := s.student(id)
	return id, ok && st.TeacherID == userFromContext(r.Context()).ID
}

func (s *Server) handleUpdateMyStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ownStudent(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Student not found")
		return
	}
	var req school.Student
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	// Teachers cannot hand a student over to someone else.
	req.TeacherID = ""
	st, fields, err := s.updateStudent(id, req)
	s.writeResult(w, http.StatusOK, map[string]any{"message": "Student updated successfully", "student": st}, fields, err)
}

func (s *Server) handleDeleteMyStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ownStudent(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Student not found")
		return
	}
	if err := s.deleteStudent(id); err != nil {
		s.writeResult(w, 0, nil, nil, err)
		return
	}
	writeMessage(w, http.StatusOK, "Student deleted successfully")
}

// Profiles

func (s *Server) handleGetTeacherProfile(w http.ResponseWriter, r *http.Request) {
	t, ok := s.teacher(userFromContext(r.Context()).ID)
	if !ok {
		writeError(w, http.StatusNotFound, "Teacher not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTeacherProfile(w http.ResponseWriter, r *http.Request) {
	var req school.Teacher
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	// Employment details are managed by admins.
	req.EmployeeID, req.DateOfJoining, req.Status = "", "", ""
	t, fields, err := s.updateTeacher(userFromContext(r.Context()).ID, req)
	s.writeResult(w, http.StatusOK, t, fields, err)
}

func (s *Server) handleGetStudentProfile(w http.ResponseWriter, r *http.Request) {
	st, ok := s.student(userFromContext(r.Context()).ID)
	if !ok {
		writeError(w, http.StatusNotFound, "Student not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUpdateStudentProfile(w http.ResponseWriter, r *http.Request) {
	var req school.Student
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	// Enrolment details are managed by staff.
	req.RollNumber, req.ClassGrade, req.AdmissionDate, req.Status, req.TeacherID = "", "", "", "", ""
	st, fields, err := s.updateStudent(userFromContext(r.Context()).ID, req)
	s.writeResult(w, http.StatusOK, map[string]any{"message": "Profile updated successfully", "student": st}, fields, err)
}
