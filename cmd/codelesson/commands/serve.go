package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/livetemplate/codelesson/internal/config"
	"github.com/livetemplate/codelesson/internal/progress"
	"github.com/livetemplate/codelesson/internal/server"
)

type ServeCmd struct {
	flags *Flags

	// flags
	configPath  string
	host        string
	port        int
	validation  string
	driver      string
	dsn         string
	noWatch     bool
	placeholder string
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Serve the lessons in a directory",
		UsageText: "codelesson serve [options] [directory]",
		Description: `Starts the lesson viewer. Lessons are discovered below the directory
(default: the working directory) and reloaded when their files change.

Flags override codelesson.yaml in the lessons directory.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file (default: <directory>/codelesson.yaml)",
				Sources:     cli.EnvVars("CODELESSON_CONFIG"),
				Destination: &cmd.configPath,
			},
			&cli.StringFlag{
				Name:        "host",
				Usage:       "interface to listen on",
				Sources:     cli.EnvVars("CODELESSON_HOST"),
				Destination: &cmd.host,
			},
			&cli.IntFlag{
				Name:        "port",
				Aliases:     []string{"p"},
				Usage:       "port to listen on (0 picks a free port)",
				Sources:     cli.EnvVars("CODELESSON_PORT"),
				Value:       -1,
				Destination: &cmd.port,
			},
			&cli.StringFlag{
				Name:        "validation",
				Usage:       "lesson validation: off, warn or strict",
				Sources:     cli.EnvVars("CODELESSON_VALIDATION"),
				Destination: &cmd.validation,
			},
			&cli.StringFlag{
				Name:        "progress",
				Usage:       "progress store: memory, sqlite or postgres",
				Sources:     cli.EnvVars("CODELESSON_PROGRESS"),
				Destination: &cmd.driver,
			},
			&cli.StringFlag{
				Name:        "dsn",
				Usage:       "progress store DSN (sqlite file or postgres URL)",
				Sources:     cli.EnvVars("CODELESSON_DSN"),
				Destination: &cmd.dsn,
			},
			&cli.StringFlag{
				Name:        "placeholder",
				Usage:       "text shown in the description area when nothing is selected",
				Destination: &cmd.placeholder,
			},
			&cli.BoolFlag{
				Name:        "no-watch",
				Usage:       "do not reload lessons when files change",
				Destination: &cmd.noWatch,
			},
		},
		Action: cmd.run,
	})

	return app
}

// apply layers the command line over the loaded config.
func (cmd *ServeCmd) apply(cfg *config.Config) {
	if cmd.host != "" {
		cfg.Server.Host = cmd.host
	}
	if cmd.port >= 0 {
		cfg.Server.Port = cmd.port
	}
	if cmd.validation != "" {
		cfg.Lessons.Validation = cmd.validation
	}
	if cmd.driver != "" {
		cfg.Progress.Driver = cmd.driver
	}
	if cmd.dsn != "" {
		cfg.Progress.DSN = cmd.dsn
	}
	if cmd.placeholder != "" {
		cfg.Interaction.Placeholder = cmd.placeholder
	}
	if cmd.noWatch {
		cfg.Features.HotReload = false
	}
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	log := cmd.flags.Logger

	dir, err := lessonsDir(c.Args().First())
	if err != nil {
		return err
	}
	cfg, err := loadConfig(dir, cmd.configPath)
	if err != nil {
		return err
	}
	cmd.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := progress.Open(ctx, progress.Options{
		Driver: cfg.Progress.GetDriver(),
		DSN:    cfg.Progress.GetDSN(),
		Retry: progress.RetryConfig{
			MaxRetries: cfg.Progress.GetRetryMaxRetries(),
			BaseDelay:  cfg.Progress.GetRetryBaseDelay(),
			MaxDelay:   cfg.Progress.GetRetryMaxDelay(),
		},
		Logger: log.With().Str("component", "progress").Logger(),
	})
	if err != nil {
		return fmt.Errorf("open progress store: %w", err)
	}

	srv := server.New(dir, cfg, server.WithLogger(log), server.WithProgressStore(store))
	defer func() {
		if err := srv.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close server")
		}
	}()

	if err := srv.Discover(); err != nil {
		return fmt.Errorf("failed to discover lessons: %w", err)
	}
	for _, p := range srv.Problems() {
		log.Warn().Msg(p.Error())
	}

	if cfg.Features.HotReload {
		if err := srv.EnableWatch(); err != nil {
			log.Warn().Err(err).Msg("hot reload disabled")
		}
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http server shutdown error")
		}
	}()

	fmt.Printf("Serving %d lesson(s) from %s at http://%s\n",
		len(srv.Lessons(true)), dir, ln.Addr())

	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
