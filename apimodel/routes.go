package apimodel

// Route path constants, relative to the API base URL.
// All API paths used by the client are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteLogin   = "/login"
	RouteRefresh = "/refresh"

	// Admin Routes
	RouteStudents        = "/students"
	RouteStudent         = "/students/%s/"
	RouteTeachers        = "/teachers"
	RouteTeacher         = "/teachers/%s/"
	RouteTeacherStudents = "/teachers/%s/students"

	// Teacher Routes
	RouteMyStudents     = "/teacher-students"
	RouteMyStudent      = "/teacher-students/%s"
	RouteTeacherProfile = "/teacher/profile"

	// Student Routes
	RouteStudentProfile = "/student/profile"
)
