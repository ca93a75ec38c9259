package users

// MenuItem is one navigation entry offered to a role.
type MenuItem struct {
	Path  string
	Label string
}

var menus = map[RoleType][]MenuItem{
	RoleAdmin: {
		{Path: "/dashboard", Label: "Home"},
		{Path: "/teachersPage", Label: "Manage Teachers"},
		{Path: "/studentsPage", Label: "Manage Students"},
	},
	RoleTeacher: {
		{Path: "/dashboard", Label: "Home"},
		{Path: "/my-students", Label: "My Students"},
		{Path: "/profile", Label: "My Profile"},
	},
	RoleStudent: {
		{Path: "/dashboard", Label: "Home"},
		{Path: "/studentme", Label: "My Profile"},
	},
}

// MenuFor returns the navigation entries for role, or nil for an unknown role.
// The returned slice is a copy.
func MenuFor(role RoleType) []MenuItem {
	items, ok := menus[role]
	if !ok {
		return nil
	}
	return append([]MenuItem(nil), items...)
}
