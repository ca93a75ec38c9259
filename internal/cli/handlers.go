package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jrsteele09/go-school-admin/apimodel"
	"github.com/jrsteele09/go-school-admin/auth"
	"github.com/jrsteele09/go-school-admin/gateway"
	"github.com/jrsteele09/go-school-admin/internal/errors"
	"github.com/jrsteele09/go-school-admin/school"
	"github.com/jrsteele09/go-school-admin/token"
	"github.com/jrsteele09/go-school-admin/users"
	"github.com/spf13/pflag"
)

func (a *App) dispatch(ctx context.Context, cmd Command, flags *pflag.FlagSet) error {
	switch cmd {
	case CommandLogin:
		return a.login(ctx, flags)
	case CommandLogout:
		a.auth.Logout()
		fmt.Fprintln(a.stdout, "Logged out")
		return nil
	case CommandStatus:
		return a.status()
	case CommandMenu:
		return a.menu()
	case CommandStudents:
		page, _ := flags.GetInt("page")
		return a.listStudents(ctx, page, false)
	case CommandMyStudents:
		page, _ := flags.GetInt("page")
		return a.listStudents(ctx, page, true)
	case CommandTeachers:
		page, _ := flags.GetInt("page")
		perPage, _ := flags.GetInt("per-page")
		return a.listTeachers(ctx, page, perPage)
	case CommandProfile:
		return a.profile(ctx)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (a *App) login(ctx context.Context, flags *pflag.FlagSet) error {
	email, _ := flags.GetString("email")
	password, _ := flags.GetString("password")
	if password == "" {
		var err error
		if password, err = a.readPassword(); err != nil {
			return err
		}
	}

	user, err := a.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Logged in as %s (%s)\n", user.DisplayName(), user.Role)
	return nil
}

func (a *App) status() error {
	session := a.store.Current()
	if !session.IsAuthenticated() {
		fmt.Fprintln(a.stdout, "Not logged in")
		return nil
	}

	u := session.User
	fmt.Fprintf(a.stdout, "Logged in as %s <%s> (%s)\n", u.DisplayName(), u.Email, u.Role)
	if claims, err := token.Inspect(session.AccessToken); err == nil && !claims.ExpiresAt.IsZero() {
		if claims.Expired() {
			fmt.Fprintln(a.stdout, "Access token expired; it will be refreshed on the next request")
		} else {
			fmt.Fprintf(a.stdout, "Access token expires in %s\n", claims.ExpiresIn().Round(time.Second))
		}
	}
	if !session.CanRefresh() {
		fmt.Fprintln(a.stdout, "No refresh token; you will need to log in again when the access token expires")
	}
	return nil
}

func (a *App) menu() error {
	if _, err := a.auth.CurrentUser(); err != nil {
		return err
	}
	for _, item := range a.auth.Menu() {
		fmt.Fprintf(a.stdout, "%-16s %s\n", item.Label, item.Path)
	}
	return nil
}

func (a *App) listStudents(ctx context.Context, pageNo int, mine bool) error {
	var (
		page *apimodel.Page[school.Student]
		err  error
	)
	if mine {
		page, err = a.school.MyStudents(ctx, pageNo)
	} else {
		page, err = a.school.ListStudents(ctx, pageNo)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tNAME\tEMAIL\tROLL\tCLASS\tSTATUS")
	for i, st := range page.Data {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			page.Offset()+i+1, st.ID, st.FullName(), st.Email, st.RollNumber, st.ClassGrade, st.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	a.pageFooter(page.CurrentPage, page.LastPage, page.Total)
	return nil
}

func (a *App) listTeachers(ctx context.Context, pageNo, perPage int) error {
	page, err := a.school.ListTeachers(ctx, pageNo, perPage)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tNAME\tEMAIL\tSUBJECT\tEMP ID\tSTATUS")
	for i, t := range page.Data {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			page.Offset()+i+1, t.ID, t.FullName(), t.Email, t.SubjectSpecialization, t.EmployeeID, t.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	a.pageFooter(page.CurrentPage, page.LastPage, page.Total)
	return nil
}

func (a *App) pageFooter(current, last, total int) {
	fmt.Fprintf(a.stdout, "page %d of %d (%d total)\n", current, last, total)
}

func (a *App) profile(ctx context.Context) error {
	user, err := a.auth.CurrentUser()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	switch user.Role {
	case users.RoleStudent:
		st, err := a.school.StudentProfile(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "Name\t%s\nEmail\t%s\nPhone\t%s\nRoll number\t%s\nClass\t%s\nDate of birth\t%s\nAdmitted\t%s\nStatus\t%s\n",
			st.FullName(), st.Email, st.PhoneNumber, st.RollNumber, st.ClassGrade, st.DateOfBirth, st.AdmissionDate, st.Status)
	case users.RoleTeacher:
		t, err := a.school.TeacherProfile(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "Name\t%s\nEmail\t%s\nPhone\t%s\nSubject\t%s\nEmployee ID\t%s\nJoined\t%s\nStatus\t%s\n",
			t.FullName(), t.Email, t.PhoneNumber, t.SubjectSpecialization, t.EmployeeID, t.DateOfJoining, t.Status)
	default:
		fmt.Fprintf(tw, "Name\t%s\nEmail\t%s\nRole\t%s\n", user.DisplayName(), user.Email, user.Role)
	}
	return nil
}

// describe turns an error into a message for the terminal.
func describe(err error) string {
	var credErr *auth.CredentialsError
	if errors.As(err, &credErr) {
		return credErr.Message + fieldLines(credErr.Fields)
	}
	if errors.Is(err, errors.ErrNoSession) {
		return "not logged in, run `schoolctl login`"
	}
	if apiErr, ok := gateway.AsAPIError(err); ok {
		if gateway.IsValidation(err) {
			return "validation failed" + fieldLines(apiErr.Fields)
		}
		return apiErr.Error()
	}
	if gateway.IsNetwork(err) {
		return "could not reach the API: " + err.Error()
	}
	return err.Error()
}

func fieldLines(fields apimodel.FieldErrors) string {
	if len(fields) == 0 {
		return ""
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		for _, msg := range fields[name] {
			fmt.Fprintf(&b, "\n  %s: %s", name, msg)
		}
	}
	return b.String()
}
