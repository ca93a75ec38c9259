package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-school-admin/internal/config"
	"github.com/jrsteele09/go-school-admin/internal/devapi"
	"github.com/jrsteele09/go-school-admin/internal/logger"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

// apiPrefix matches the path of the default API_BASE_URL.
const apiPrefix = "/api"

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running dev API")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Dev API stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	v := config.Load("")
	flags := pflag.NewFlagSet("devapi", pflag.ContinueOnError)
	flags.String("addr", "", "listen address")
	flags.Duration("access-ttl", 0, "access token lifetime")
	flags.String("log-level", "", "log level")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		return err
	}
	if err := config.BindFlags(v, flags, map[string]string{
		"addr":       "DEV_API_ADDR",
		"access-ttl": "DEV_ACCESS_TTL",
		"log-level":  "LOG_LEVEL",
	}); err != nil {
		return err
	}
	c := config.NewFromViper(v)

	logger.SetupDefault(os.Stderr, c.GetLogLevel(), c.GetEnv())
	displayAppname(c.GetAppName() + " API")

	api, err := devapi.New(c.GetDevSigningKey(), c.GetDevAccessTokenTTL(), devapi.WithLogger(log.Logger))
	if err != nil {
		return err
	}
	creds, err := api.SeedDefaults()
	if err != nil {
		return err
	}
	for _, cred := range creds {
		log.Info().Str("role", string(cred.Role)).Str("email", cred.Email).Str("password", cred.Password).Msg("Seeded login")
	}

	router := chi.NewRouter()
	router.Mount(apiPrefix, api)
	server := &http.Server{Addr: c.GetDevAPIAddr(), Handler: router, ReadHeaderTimeout: 10 * time.Second}

	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(server) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Str("prefix", apiPrefix).Msg("Dev API listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
