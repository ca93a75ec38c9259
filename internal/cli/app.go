// Package cli implements schoolctl, a command line client for the school administration API.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jrsteele09/go-school-admin/auth"
	"github.com/jrsteele09/go-school-admin/gateway"
	"github.com/jrsteele09/go-school-admin/internal/config"
	"github.com/jrsteele09/go-school-admin/internal/logger"
	"github.com/jrsteele09/go-school-admin/school"
	"github.com/jrsteele09/go-school-admin/sessions"
	"github.com/jrsteele09/go-school-admin/sessions/filestore"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Exit codes returned by Run.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// SessionExpiredMessage is printed when a refresh fails and the session has been cleared.
const SessionExpiredMessage = "session expired, run `schoolctl login`"

// App wires configuration, the session store and the API clients for one invocation.
type App struct {
	v      *viper.Viper
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	logger  zerolog.Logger
	store   *sessions.Store
	auth    *auth.Service
	school  *school.Client
	expired bool
}

func New(v *viper.Viper, stdin io.Reader, stdout, stderr io.Writer) *App {
	return &App{v: v, stdin: stdin, stdout: stdout, stderr: stderr}
}

// Run executes args and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	cmd, rest, err := ParseCommand(args)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		a.usage()
		return ExitUsage
	}
	if cmd == CommandHelp {
		a.usage()
		return ExitOK
	}

	flags := a.flagSet(cmd)
	if err := flags.Parse(rest); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return ExitOK
		}
		return ExitUsage
	}
	if err := config.BindFlags(a.v, flags, globalFlags); err != nil {
		fmt.Fprintln(a.stderr, err)
		return ExitUsage
	}
	if err := a.init(config.NewFromViper(a.v)); err != nil {
		fmt.Fprintln(a.stderr, err)
		return ExitFailure
	}

	if err := a.dispatch(ctx, cmd, flags); err != nil {
		if a.expired {
			return ExitFailure
		}
		fmt.Fprintln(a.stderr, "error:", describe(err))
		return ExitFailure
	}
	return ExitOK
}

// globalFlags maps flags accepted by every command to config keys.
var globalFlags = map[string]string{
	"api-url":   "API_BASE_URL",
	"data-dir":  "DATA_FOLDER",
	"log-level": "LOG_LEVEL",
	"timeout":   "API_TIMEOUT",
}

func (a *App) flagSet(cmd Command) *pflag.FlagSet {
	flags := pflag.NewFlagSet(string(cmd), pflag.ContinueOnError)
	flags.SetOutput(a.stderr)
	flags.String("api-url", "", "API base URL")
	flags.String("data-dir", "", "folder holding the saved session")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Duration("timeout", 0, "per request timeout")

	switch cmd {
	case CommandLogin:
		flags.String("email", "", "account email")
		flags.String("password", "", "account password; read from stdin when omitted")
	case CommandStudents, CommandMyStudents:
		flags.Int("page", 1, "page number")
	case CommandTeachers:
		flags.Int("page", 1, "page number")
		flags.Int("per-page", 10, "teachers per page")
	}
	return flags
}

func (a *App) init(c config.Config) error {
	a.logger = logger.Setup(a.stderr, c.GetLogLevel(), c.GetEnv())

	storage, err := openStorage(c)
	if err != nil {
		return err
	}
	a.store = sessions.NewStore(storage, sessions.WithLogger(a.logger))
	a.store.Load()

	gw := gateway.New(c.GetAPIBaseURL(), a.store,
		gateway.WithTimeout(c.GetAPITimeout()),
		gateway.WithRateLimit(c.GetAPIRateLimit(), c.GetAPIRateBurst()),
		gateway.WithLogger(a.logger),
		gateway.WithRedirector(gateway.RedirectFunc(a.redirectToLogin)),
	)
	a.auth = auth.NewService(gw, a.store, auth.WithLogger(a.logger))
	a.school = school.NewClient(gw)
	return nil
}

// openStorage keeps the session in the data folder, encrypted when SESSION_KEY is set.
func openStorage(c config.Config) (sessions.Storage, error) {
	files, err := filestore.New(c.GetDataFolder())
	if err != nil {
		return nil, err
	}
	if c.GetSessionKey() == "" {
		return files, nil
	}
	return sessions.NewSealedStorage(files, c.GetSessionKey())
}

func (a *App) redirectToLogin() {
	a.expired = true
	fmt.Fprintln(a.stderr, SessionExpiredMessage)
}

func (a *App) readPassword() (string, error) {
	if a.stdin == nil {
		return "", errors.New("password is required")
	}
	if f, ok := a.stdin.(*os.File); ok && f == os.Stdin {
		fmt.Fprint(a.stderr, "Password: ")
	}
	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *App) usage() {
	fmt.Fprintln(a.stderr, "usage: schoolctl <command> [flags]")
	fmt.Fprintln(a.stderr)
	for _, c := range commandSummaries {
		fmt.Fprintf(a.stderr, "  %-12s %s\n", c.cmd, c.summary)
	}
	fmt.Fprintln(a.stderr)
	fmt.Fprintln(a.stderr, "global flags: --api-url --data-dir --log-level --timeout")
}
