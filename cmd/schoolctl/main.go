package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jrsteele09/go-school-admin/internal/cli"
	"github.com/jrsteele09/go-school-admin/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.New(config.Load(""), os.Stdin, os.Stdout, os.Stderr).Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
