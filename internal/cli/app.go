package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/thruflo/conductor/internal/api"
	"github.com/thruflo/conductor/internal/auth"
	"github.com/thruflo/conductor/internal/channel"
	"github.com/thruflo/conductor/internal/config"
	"github.com/thruflo/conductor/internal/heartbeat"
	"github.com/thruflo/conductor/internal/logging"
	"github.com/thruflo/conductor/internal/session"
)

// appConfig is the configuration loaded by setup for the running command.
var appConfig *config.Config

// tracerProvider is non-nil while --trace is active.
var tracerProvider *sdktrace.TracerProvider

// setup loads .env, the config file, environment overrides and flags, in
// increasing precedence, then applies the log level and tracing.
func setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	v := config.NewViper()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	if cfg.Server.AuthToken == auth.PromptValue {
		token, err := auth.PromptToken(cmd.ErrOrStderr(), "Auth token: ")
		if err != nil {
			return err
		}
		cfg.Server.AuthToken = token
	}
	appConfig = cfg

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logging.SetLevel(level)

	if cfg.Tracing.Enabled {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(cmd.ErrOrStderr()), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tracerProvider = sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	}
	return nil
}

func teardown(cmd *cobra.Command, _ []string) error {
	if tracerProvider == nil {
		return nil
	}
	tp := tracerProvider
	tracerProvider = nil

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to flush traces: %w", err)
	}
	return nil
}

func currentConfig() config.Config {
	if appConfig == nil {
		return config.Defaults()
	}
	return *appConfig
}

// newAPIClient builds the backend client from the loaded config.
func newAPIClient() *api.Client {
	cfg := currentConfig()
	opts := []api.ClientOption{
		api.WithAuthToken(cfg.Server.AuthToken),
		api.WithTimeout(cfg.Server.Timeout),
		api.WithLogger(logging.Default().With("component", "api")),
	}
	if tracerProvider != nil {
		opts = append(opts, api.WithTracerProvider(tracerProvider))
	}
	return api.NewClient(cfg.Server.URL, opts...)
}

// newUpdateChannel builds the push channel for backend.
func newUpdateChannel(backend *api.Client) *channel.Channel {
	cfg := currentConfig()
	return channel.New(backend.EventsURL(),
		channel.WithAuthToken(cfg.Server.AuthToken),
		channel.WithPolicy(cfg.Channel.Policy()),
		channel.WithLogger(logging.Default().With("component", "channel")),
	)
}

// newSession builds a session over a fresh backend client. Live sessions
// also get the update channel; one-shot commands only need the initial
// fetch.
func newSession(live bool, opts ...session.Option) *session.Client {
	cfg := currentConfig()
	backend := newAPIClient()

	all := []session.Option{
		session.WithHeartbeat(heartbeat.New(heartbeat.WithInterval(cfg.Heartbeat.Interval))),
		session.WithSystemStatusTTL(cfg.Session.SystemStatusTTL),
		session.WithLogger(logging.Default().With("component", "session")),
	}
	if live {
		all = append(all, session.WithChannel(newUpdateChannel(backend)))
	}
	return session.New(backend, append(all, opts...)...)
}

// startSession starts a one-shot session for cmd, wiring confirmations to
// the terminal and notices to stderr. The caller must Close it.
func startSession(cmd *cobra.Command, assumeYes bool) (*session.Client, error) {
	sess := newSession(false,
		session.WithConfirmer(newPromptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr(), assumeYes)),
		session.WithNotifier(writerNotifier{w: cmd.ErrOrStderr()}),
	)
	if err := sess.Start(cmd.Context()); err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to reach backend: %w", err)
	}
	return sess, nil
}

// promptConfirmer asks y/N questions on a terminal.
type promptConfirmer struct {
	mu        sync.Mutex
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
}

func newPromptConfirmer(in io.Reader, out io.Writer, assumeYes bool) *promptConfirmer {
	return &promptConfirmer{in: bufio.NewReader(in), out: out, assumeYes: assumeYes}
}

func (p *promptConfirmer) Confirm(_ context.Context, prompt string) bool {
	if p.assumeYes {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "%s [y/N] ", prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// writerNotifier prints notices on their own line.
type writerNotifier struct {
	w io.Writer
}

func (n writerNotifier) Notify(msg string) {
	fmt.Fprintln(n.w, msg)
}
