// cmd/checkouts/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultConfigPath = "config/app.yaml"

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	// log.Ctx falls back to the global logger outside request scope.
	zerolog.DefaultContextLogger = &log.Logger
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: checkouts <command> [flags]

Commands:
  count          count check-outs for one period and print the result
  watch          watch a saved cockpit page and count on every URL change
  serve          serve the cockpit companion page
  session set    store the session entry the tenant is read from
  session show   print the stored session entry
  session clear  remove the stored session entry

Run "checkouts <command> -h" for the flags of a command.
`)
}

func main() {
	setupLogger("development")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "count":
		err = runCount(ctx, os.Args[2:], os.Stdout)
	case "watch":
		err = runWatch(ctx, os.Args[2:], os.Stdout)
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "session":
		err = runSession(ctx, os.Args[2:], os.Stdout)
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	case errors.Is(err, errNoResult):
		// Already reported to the user; the cause is in the log.
		os.Exit(1)
	default:
		log.Error().Err(err).Str("command", os.Args[1]).Msg("Command failed")
		os.Exit(1)
	}
}
