// Package embedded runs a lesson viewer over lessons compiled into a
// binary with go:embed.
package embedded

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/livetemplate/codelesson/internal/config"
	"github.com/livetemplate/codelesson/internal/progress"
	"github.com/livetemplate/codelesson/internal/server"
)

// Serve serves the lessons below rootPath in contentFS on addr until the
// process receives SIGINT or SIGTERM.
//
// Example usage:
//
//	//go:embed lessons
//	var lessonsFS embed.FS
//
//	func main() {
//	    embedded.Serve(lessonsFS, "lessons", "localhost:8080")
//	}
func Serve(contentFS fs.FS, rootPath string, addr string) error {
	return ServeWithOptions(Options{
		ContentFS: contentFS,
		RootPath:  rootPath,
		Addr:      addr,
	})
}

// Options provides configuration for the embedded server.
type Options struct {
	// ContentFS holds the lesson files and an optional codelesson.yaml
	ContentFS fs.FS

	// RootPath is the directory within ContentFS holding the lessons
	RootPath string

	// Addr is the address to listen on (e.g., "localhost:8080")
	Addr string

	// Config overrides the embedded config (optional)
	Config *config.Config

	// Logger defaults to a disabled logger
	Logger *zerolog.Logger

	// Context stops the server when done (optional)
	Context context.Context

	// OnReady is called with the listen address once the server accepts
	// connections (optional)
	OnReady func(addr string)
}

// New loads the embedded lessons and returns a server ready to be
// mounted. The caller closes it.
func New(opts Options) (*server.Server, error) {
	srcFS := opts.ContentFS
	if srcFS == nil {
		return nil, errors.New("no content filesystem")
	}
	if opts.RootPath != "" && opts.RootPath != "." {
		sub, err := fs.Sub(srcFS, opts.RootPath)
		if err != nil {
			return nil, fmt.Errorf("failed to get sub-filesystem at %q: %w", opts.RootPath, err)
		}
		srcFS = sub
	}

	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.LoadFS(srcFS); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	store, err := progress.Open(contextOrBackground(opts.Context), progress.Options{
		Driver: cfg.Progress.GetDriver(),
		DSN:    cfg.Progress.GetDSN(),
		Retry: progress.RetryConfig{
			MaxRetries: cfg.Progress.GetRetryMaxRetries(),
			BaseDelay:  cfg.Progress.GetRetryBaseDelay(),
			MaxDelay:   cfg.Progress.GetRetryMaxDelay(),
		},
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	srv := server.NewFS(srcFS, cfg, server.WithLogger(log), server.WithProgressStore(store))
	if err := srv.Discover(); err != nil {
		_ = srv.Close()
		return nil, fmt.Errorf("failed to discover lessons: %w", err)
	}
	return srv, nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// ServeWithOptions starts a server with more configuration options.
func ServeWithOptions(opts Options) error {
	srv, err := New(opts)
	if err != nil {
		return err
	}
	defer srv.Close()

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(opts.Context), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := opts.Addr
	if addr == "" {
		addr = srv.Config().Server.Addr()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
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

	log.Info().Str("addr", ln.Addr().String()).Int("lessons", len(srv.Lessons(true))).Msg("serving embedded lessons")
	if opts.OnReady != nil {
		opts.OnReady(ln.Addr().String())
	}

	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
