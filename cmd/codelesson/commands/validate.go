package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/livetemplate/codelesson"
	"github.com/livetemplate/codelesson/internal/browser"
	"github.com/livetemplate/codelesson/internal/config"
	"github.com/livetemplate/codelesson/internal/server"
)

type ValidateCmd struct {
	flags *Flags

	// flags
	configPath string
	render     bool
	chromeURL  string
}

// NewValidateCmd creates a new validate command
func NewValidateCmd(flags *Flags) *ValidateCmd {
	return &ValidateCmd{flags: flags}
}

// Register adds the validate command to the application
func (cmd *ValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "validate",
		Usage:     "Check the lessons in a directory",
		UsageText: "codelesson validate [options] [directory]",
		Description: `Parses and validates every lesson below the directory. Validation
catches duplicate ids, code lines pointing at missing blocks or descriptions,
unknown block types and actions, and unsafe media URLs.

With --render every step is also opened in a headless Chrome to catch
script errors and empty panes.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file (default: <directory>/codelesson.yaml)",
				Sources:     cli.EnvVars("CODELESSON_CONFIG"),
				Destination: &cmd.configPath,
			},
			&cli.BoolFlag{
				Name:        "render",
				Usage:       "walk every step in a headless Chrome",
				Destination: &cmd.render,
			},
			&cli.StringFlag{
				Name:        "chrome-url",
				Usage:       "DevTools URL of a running Chrome (default: launch one)",
				Sources:     cli.EnvVars("CODELESSON_CHROME_URL"),
				Destination: &cmd.chromeURL,
			},
		},
		Action: cmd.run,
	})

	return app
}

type fileProblem struct {
	file    string
	message string
}

func (cmd *ValidateCmd) run(ctx context.Context, c *cli.Command) error {
	dir, err := lessonsDir(c.Args().First())
	if err != nil {
		return err
	}
	cfg, err := loadConfig(dir, cmd.configPath)
	if err != nil {
		return err
	}

	fmt.Printf("Validating lessons in: %s\n\n", dir)

	lessons, errs := codelesson.LoadDir(os.DirFS(dir), cfg.IsIgnored)

	var problems []fileProblem
	for _, err := range errs {
		var pe *codelesson.ParseError
		if errors.As(err, &pe) {
			problems = append(problems, fileProblem{file: pe.File, message: pe.Format()})
			continue
		}
		problems = append(problems, fileProblem{file: "", message: err.Error()})
	}

	var valid []*codelesson.Lesson
	for _, l := range lessons {
		if err := l.Validate(); err != nil {
			problems = append(problems, fileProblem{file: l.SourceFile, message: err.Error()})
			continue
		}
		valid = append(valid, l)
		fmt.Printf("✓ %s (%s, %d steps)\n", l.SourceFile, l.ID, l.StepCount())
	}

	if cmd.render && len(valid) > 0 {
		found, err := cmd.renderCheck(ctx, dir, cfg, valid)
		if err != nil {
			return err
		}
		problems = append(problems, found...)
	}

	if len(problems) > 0 {
		fmt.Printf("\n")
		for _, p := range problems {
			if p.file != "" {
				fmt.Printf("✗ %s:\n", p.file)
			} else {
				fmt.Printf("✗\n")
			}
			for _, line := range strings.Split(p.message, "\n") {
				if line != "" {
					fmt.Printf("  %s\n", line)
				}
			}
			fmt.Printf("\n")
		}
	}

	separator := "\n" + strings.Repeat("─", 60) + "\n"
	fmt.Print(separator)
	fmt.Println("Summary:")
	fmt.Printf("  Lessons: %d\n", len(lessons))
	fmt.Printf("  Valid:   %d\n", len(valid))
	fmt.Printf("  Errors:  %d\n", len(problems))
	fmt.Printf("\n")

	if len(problems) > 0 {
		fmt.Printf("✗ Validation failed with %d error(s)\n", len(problems))
		return fmt.Errorf("validation failed")
	}

	fmt.Printf("✓ All checks passed!\n")
	return nil
}

// renderCheck serves the lessons on a loopback port and walks them in
// Chrome.
func (cmd *ValidateCmd) renderCheck(ctx context.Context, dir string, cfg *config.Config, lessons []*codelesson.Lesson) ([]fileProblem, error) {
	log := cmd.flags.Logger

	cfg.Lessons.Validation = string(codelesson.ValidationOff)
	srv := server.New(dir, cfg, server.WithLogger(log))
	defer srv.Close()
	if err := srv.Discover(); err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	httpServer := &http.Server{Handler: srv.Handler()}
	go func() { _ = httpServer.Serve(ln) }()
	defer httpServer.Close()

	checker, err := browser.New(ctx, browser.Options{
		RemoteURL: cmd.chromeURL,
		Logger:    log.With().Str("component", "browser").Logger(),
	})
	if err != nil {
		return nil, err
	}
	defer checker.Close()

	baseURL := "http://" + ln.Addr().String()
	var out []fileProblem
	for _, l := range lessons {
		fmt.Printf("  rendering %s...\n", l.ID)
		found, err := checker.CheckLesson(baseURL, l.ID)
		if err != nil {
			out = append(out, fileProblem{file: l.SourceFile, message: err.Error()})
			continue
		}
		for _, p := range found {
			out = append(out, fileProblem{file: l.SourceFile, message: p.String()})
		}
	}
	return out, nil
}
