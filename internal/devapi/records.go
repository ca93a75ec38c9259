package devapi

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/jrsteele09/go-school-admin/apimodel"
	"github.com/jrsteele09/go-school-admin/internal/utils"
	"github.com/jrsteele09/go-school-admin/school"
	"github.com/jrsteele09/go-school-admin/users"
)

// Every student and teacher record has a login account with the same id.

// CreateStudent adds a student record and its login account.
func (s *Server) CreateStudent(st school.Student) (school.Student, apimodel.FieldErrors, error) {
	if fields := s.validateNew(st.FirstName, st.LastName, st.Email, st.Password); len(fields) > 0 {
		return school.Student{}, fields, nil
	}
	if st.TeacherID != "" && !s.isTeacher(st.TeacherID) {
		return school.Student{}, apimodel.FieldErrors{"teacher_id": {"The selected teacher id is invalid."}}, nil
	}
	if st.Status == "" {
		st.Status = school.StatusActive
	}

	user, err := newAccount(st.FullName(), st.Email, st.Password, st.Status, users.RoleStudent)
	if err != nil {
		return school.Student{}, nil, err
	}
	if err := s.users.Upsert(user); err != nil {
		return school.Student{}, nil, err
	}

	st.ID = user.ID
	st.Password = ""

	s.recordsLock.Lock()
	s.students[st.ID] = st
	s.recordsLock.Unlock()
	return st, nil, nil
}

// CreateTeacher adds a teacher record and its login account.
func (s *Server) CreateTeacher(t school.Teacher) (school.Teacher, apimodel.FieldErrors, error) {
	if fields := s.validateNew(t.FirstName, t.LastName, t.Email, t.Password); len(fields) > 0 {
		return school.Teacher{}, fields, nil
	}
	if t.Status == "" {
		t.Status = school.StatusActive
	}
	t.Role = string(users.RoleTeacher)

	user, err := newAccount(t.FullName(), t.Email, t.Password, t.Status, users.RoleTeacher)
	if err != nil {
		return school.Teacher{}, nil, err
	}
	if err := s.users.Upsert(user); err != nil {
		return school.Teacher{}, nil, err
	}

	t.ID = user.ID
	t.Password = ""

	s.recordsLock.Lock()
	s.teachers[t.ID] = t
	s.recordsLock.Unlock()
	return t, nil, nil
}

// CreateAdmin adds an admin account. Admins have no school record.
func (s *Server) CreateAdmin(name, email, password string) (*users.User, error) {
	user, err := newAccount(name, email, password, school.StatusActive, users.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.users.Upsert(user); err != nil {
		return nil, err
	}
	return user, nil
}

func newAccount(name, email, password, status string, role users.RoleType) (*users.User, error) {
	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("[DevAPI newAccount] hash password: %w", err)
	}
	return &users.User{
		Name:         name,
		Email:        strings.TrimSpace(email),
		Role:         role,
		Status:       status,
		PasswordHash: hash,
	}, nil
}

func (s *Server) validateNew(firstName, lastName, email, password string) apimodel.FieldErrors {
	fields := apimodel.FieldErrors{}
	if strings.TrimSpace(firstName) == "" {
		fields["first_name"] = []string{"The first name field is required."}
	}
	if strings.TrimSpace(lastName) == "" {
		fields["last_name"] = []string{"The last name field is required."}
	}
	if password == "" {
		fields["password"] = []string{"The password field is required."}
	}
	s.validateEmail(fields, email, "")
	return fields
}

// validateEmail checks format and uniqueness. self is the id allowed to already own the address.
func (s *Server) validateEmail(fields apimodel.FieldErrors, email string, self users.ID) {
	email = strings.TrimSpace(email)
	if email == "" {
		fields["email"] = []string{"The email field is required."}
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		fields["email"] = []string{"The email must be a valid email address."}
		return
	}
	if existing, err := s.users.GetByEmail(email); err == nil && existing.ID != self {
		fields["email"] = []string{"The email has already been taken."}
	}
}

func (s *Server) isTeacher(id users.ID) bool {
	s.recordsLock.RLock()
	defer s.recordsLock.RUnlock()
	_, ok := s.teachers[id]
	return ok
}

func (s *Server) student(id users.ID) (school.Student, bool) {
	s.recordsLock.RLock()
	defer s.recordsLock.RUnlock()
	st, ok := s.students[id]
	return st, ok
}

func (s *Server) teacher(id users.ID) (school.Teacher, bool) {
	s.recordsLock.RLock()
	defer s.recordsLock.RUnlock()
	t, ok := s.teachers[id]
	return t, ok
}

// updateStudent merges the non-empty fields of patch into the stored record and its account.
func (s *Server) updateStudent(id users.ID, patch school.Student) (school.Student, apimodel.FieldErrors, error) {
	st, ok := s.student(id)
	if !ok {
		return school.Student{}, nil, errNotFound
	}

	fields := apimodel.FieldErrors{}
	if patch.Email != "" && patch.Email != st.Email {
		s.validateEmail(fields, patch.Email, id)
	}
	if patch.TeacherID != "" && !s.isTeacher(patch.TeacherID) {
		fields["teacher_id"] = []string{"The selected teacher id is invalid."}
	}
	if len(fields) > 0 {
		return school.Student{}, fields, nil
	}

	mergeString(&st.FirstName, patch.FirstName)
	mergeString(&st.LastName, patch.LastName)
	mergeString(&st.Email, patch.Email)
	mergeString(&st.PhoneNumber, patch.PhoneNumber)
	mergeString(&st.RollNumber, patch.RollNumber)
	mergeString(&st.ClassGrade, patch.ClassGrade)
	mergeString(&st.DateOfBirth, patch.DateOfBirth)
	mergeString(&st.AdmissionDate, patch.AdmissionDate)
	mergeString(&st.Status, patch.Status)
	if patch.TeacherID != "" {
		st.TeacherID = patch.TeacherID
	}

	if err := s.syncAccount(id, st.FullName(), st.Email, st.Status, patch.Password); err != nil {
		return school.Student{}, nil, err
	}

	s.recordsLock.Lock()
	s.students[id] = st
	s.recordsLock.Unlock()
	return st, nil, nil
}

func (s *Server) updateTeacher(id users.ID, patch school.Teacher) (school.Teacher, apimodel.FieldErrors, error) {
	t, ok := s.teacher(id)
	if !ok {
		return school.Teacher{}, nil, errNotFound
	}

	fields := apimodel.FieldErrors{}
	if patch.Email != "" && patch.Email != t.Email {
		s.validateEmail(fields, patch.Email, id)
	}
	if len(fields) > 0 {
		return school.Teacher{}, fields, nil
	}

	mergeString(&t.FirstName, patch.FirstName)
	mergeString(&t.LastName, patch.LastName)
	mergeString(&t.Email, patch.Email)
	mergeString(&t.PhoneNumber, patch.PhoneNumber)
	mergeString(&t.SubjectSpecialization, patch.SubjectSpecialization)
	mergeString(&t.EmployeeID, patch.EmployeeID)
	mergeString(&t.DateOfJoining, patch.DateOfJoining)
	mergeString(&t.Status, patch.Status)

	if err := s.syncAccount(id, t.FullName(), t.Email, t.Status, patch.Password); err != nil {
		return school.Teacher{}, nil, err
	}

	s.recordsLock.Lock()
	s.teachers[id] = t
	s.recordsLock.Unlock()
	return t, nil, nil
}

// syncAccount copies record changes onto the login account. A changed email re-keys the account.
func (s *Server) syncAccount(id users.ID, name, email, status, password string) error {
	current, err := s.users.GetByID(id)
	if err != nil {
		return err
	}

	next := current.Clone()
	next.Name = name
	next.Email = email
	next.Status = status
	if password != "" {
		hash, err := users.HashPassword(password)
		if err != nil {
			return fmt.Errorf("[DevAPI syncAccount] hash password: %w", err)
		}
		next.PasswordHash = hash
	}

	if current.Email != next.Email {
		if err := s.users.Delete(current.Email); err != nil {
			return err
		}
	}
	return s.users.Upsert(next)
}

func (s *Server) deleteStudent(id users.ID) error {
	st, ok := s.student(id)
	if !ok {
		return errNotFound
	}
	s.recordsLock.Lock()
	delete(s.students, id)
	s.recordsLock.Unlock()
	return s.users.Delete(st.Email)
}

// deleteTeacher removes the teacher and unassigns their students.
func (s *Server) deleteTeacher(id users.ID) error {
	t, ok := s.teacher(id)
	if !ok {
		return errNotFound
	}
	s.recordsLock.Lock()
	delete(s.teachers, id)
	for sid, st := range s.students {
		if st.TeacherID == id {
			st.TeacherID = ""
			s.students[sid] = st
		}
	}
	s.recordsLock.Unlock()
	return s.users.Delete(t.Email)
}

// studentsWhere returns students in account creation order, filtered by keep.
func (s *Server) studentsWhere(keep func(school.Student) bool) ([]school.Student, error) {
	accounts, _, err := s.users.ListByRole(users.RoleStudent, 0, 0)
	if err != nil {
		return nil, err
	}

	s.recordsLock.RLock()
	defer s.recordsLock.RUnlock()

	out := make([]school.Student, 0, len(accounts))
	for _, u := range accounts {
		st, ok := s.students[u.ID]
		if ok && (keep == nil || keep(st)) {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *Server) allTeachers() ([]school.Teacher, error) {
	accounts, _, err := s.users.ListByRole(users.RoleTeacher, 0, 0)
	if err != nil {
		return nil, err
	}

	s.recordsLock.RLock()
	defer s.recordsLock.RUnlock()

	out := make([]school.Teacher, 0, len(accounts))
	for _, u := range accounts {
		if t, ok := s.teachers[u.ID]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func paginate[T any](items []T, page, perPage int) apimodel.Page[T] {
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page < 1 {
		page = 1
	}

	total := len(items)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	data := make([]T, end-start)
	copy(data, items[start:end])
	return apimodel.Page[T]{
		Data:        data,
		CurrentPage: page,
		LastPage:    apimodel.LastPageFor(total, perPage),
		PerPage:     perPage,
		Total:       total,
	}
}

func mergeString(dst *string, v string) {
	*dst = utils.Coalesce(v, *dst)
}
