package school

import (
	"strings"

	"github.com/jrsteele09/go-school-admin/users"
)

// Student is a student record as sent and returned by the API. Dates are kept as the
// YYYY-MM-DD strings the API uses.
type Student struct {
	ID            users.ID `json:"id,omitempty"`
	FirstName     string   `json:"first_name"`
	LastName      string   `json:"last_name"`
	Email         string   `json:"email"`
	Password      string   `json:"password,omitempty"` // only sent when creating or changing it
	PhoneNumber   string   `json:"phone_number,omitempty"`
	RollNumber    string   `json:"roll_number,omitempty"`
	ClassGrade    string   `json:"class_grade,omitempty"`
	DateOfBirth   string   `json:"date_of_birth,omitempty"`
	AdmissionDate string   `json:"admission_date,omitempty"`
	Status        string   `json:"status,omitempty"`
	TeacherID     users.ID `json:"teacher_id,omitempty"`
}

func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Teacher is a teacher record as sent and returned by the API.
type Teacher struct {
	ID                    users.ID `json:"id,omitempty"`
	FirstName             string   `json:"first_name"`
	LastName              string   `json:"last_name"`
	Email                 string   `json:"email"`
	Password              string   `json:"password,omitempty"`
	Role                  string   `json:"role,omitempty"`
	PhoneNumber           string   `json:"phone_number,omitempty"`
	SubjectSpecialization string   `json:"subject_specialization,omitempty"`
	EmployeeID            string   `json:"employee_id,omitempty"`
	DateOfJoining         string   `json:"date_of_joining,omitempty"`
	Status                string   `json:"status,omitempty"`
}

func (t Teacher) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}

// Record statuses used by the API.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)
