// Standalone mock backend for driving the conductor CLI and TUI by hand.
// Run with: go run ./cmd/conductor-mock --step 5s
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/thruflo/conductor/internal/auth"
	"github.com/thruflo/conductor/internal/logging"
	"github.com/thruflo/conductor/internal/server"
)

func main() {
	var (
		port       = pflag.IntP("port", "p", 8080, "Port to listen on")
		token      = pflag.String("token", os.Getenv("CONDUCTOR_SERVER_AUTH_TOKEN"), "Bearer token required on /api routes")
		phases     = pflag.Int("phases", server.DefaultPhases, "Number of phases a generated plan has")
		step       = pflag.Duration("step", 0, "Advance the workflow automatically at this period")
		tick       = pflag.Duration("tick", time.Second, "Resend the full snapshot at this period (0 sends on change only)")
		generate   = pflag.Bool("generate-token", false, "Require a freshly generated token and print it")
		requestLog = pflag.Bool("request-log", false, "Log every request")
		logLevel   = pflag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	pflag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	logging.SetLevel(level)

	if *generate {
		*token, err = auth.GenerateToken()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Auth token: %s\n", *token)
	}

	srv, err := server.NewServer(&server.Config{
		Port:       *port,
		AuthToken:  *token,
		Phases:     *phases,
		Tick:       *tick,
		Step:       *step,
		RequestLog: *requestLog,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Mock backend on http://localhost:%d/api\n", *port)
	if *step == 0 {
		fmt.Println("Workflow advances only on request; pass --step to advance automatically.")
	}
	fmt.Printf("\nTry:\n  conductor --server http://localhost:%d/api status\n", *port)

	if err := srv.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
