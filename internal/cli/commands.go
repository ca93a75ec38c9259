package cli

import (
	"fmt"
)

// Command is a schoolctl subcommand.
type Command string

const (
	CommandLogin      Command = "login"
	CommandLogout     Command = "logout"
	CommandStatus     Command = "status"
	CommandMenu       Command = "menu"
	CommandStudents   Command = "students"
	CommandTeachers   Command = "teachers"
	CommandMyStudents Command = "my-students"
	CommandProfile    Command = "profile"
	CommandHelp       Command = "help"
)

var commandSummaries = []struct {
	cmd     Command
	summary string
}{
	{CommandLogin, "log in with --email and --password"},
	{CommandLogout, "end the current session"},
	{CommandStatus, "show who is logged in and when the access token expires"},
	{CommandMenu, "list the sections available to your role"},
	{CommandStudents, "list students (admin) [--page]"},
	{CommandTeachers, "list teachers (admin) [--page --per-page]"},
	{CommandMyStudents, "list your students (teacher) [--page]"},
	{CommandProfile, "show your profile"},
}

// ParseCommand splits args into the subcommand and its arguments.
func ParseCommand(args []string) (Command, []string, error) {
	if len(args) == 0 {
		return CommandHelp, nil, nil
	}
	switch cmd := Command(args[0]); cmd {
	case CommandLogin, CommandLogout, CommandStatus, CommandMenu, CommandStudents,
		CommandTeachers, CommandMyStudents, CommandProfile, CommandHelp:
		return cmd, args[1:], nil
	case "-h", "--help":
		return CommandHelp, nil, nil
	}
	return "", nil, fmt.Errorf("unknown command %q", args[0])
}
