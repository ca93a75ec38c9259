package devapi

import (
	"fmt"

	"github.com/jrsteele09/go-school-admin/school"
	"github.com/jrsteele09/go-school-admin/users"
)

// Credential is a seeded login.
type Credential struct {
	Role     users.RoleType
	Email    string
	Password string
}

// SeedDefaults creates one admin, one teacher and two students assigned to the teacher.
func (s *Server) SeedDefaults() ([]Credential, error) {
	creds := []Credential{
		{Role: users.RoleAdmin, Email: "admin@school.test", Password: "admin123"},
		{Role: users.RoleTeacher, Email: "teacher@school.test", Password: "teacher123"},
		{Role: users.RoleStudent, Email: "student@school.test", Password: "student123"},
	}

	if _, err := s.CreateAdmin("School Admin", creds[0].Email, creds[0].Password); err != nil {
		return nil, fmt.Errorf("[DevAPI SeedDefaults] admin: %w", err)
	}

	teacher, fields, err := s.CreateTeacher(school.Teacher{
		FirstName:             "Alan",
		LastName:              "Turing",
		Email:                 creds[1].Email,
		Password:              creds[1].Password,
		SubjectSpecialization: "Mathematics",
		EmployeeID:            "EMP-001",
		DateOfJoining:         "2020-09-01",
	})
	if err := seedErr("teacher", fields, err); err != nil {
		return nil, err
	}

	for _, st := range []school.Student{
		{FirstName: "Ada", LastName: "Lovelace", Email: creds[2].Email, Password: creds[2].Password, RollNumber: "R-001", ClassGrade: "10", TeacherID: teacher.ID},
		{FirstName: "Grace", LastName: "Hopper", Email: "grace@school.test", Password: "student123", RollNumber: "R-002", ClassGrade: "10", TeacherID: teacher.ID},
	} {
		_, fields, err := s.CreateStudent(st)
		if err := seedErr("student", fields, err); err != nil {
			return nil, err
		}
	}
	return creds, nil
}

func seedErr(what string, fields map[string][]string, err error) error {
	if err != nil {
		return fmt.Errorf("[DevAPI SeedDefaults] %s: %w", what, err)
	}
	if len(fields) > 0 {
		return fmt.Errorf("[DevAPI SeedDefaults] %s: invalid seed data: %v", what, fields)
	}
	return nil
}
