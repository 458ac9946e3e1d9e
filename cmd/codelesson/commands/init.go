package commands

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/urfave/cli/v3"

	"github.com/livetemplate/codelesson/internal/config"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

type InitCmd struct {
	flags *Flags

	// flags
	title string
}

// NewInitCmd creates a new init command
func NewInitCmd(flags *Flags) *InitCmd {
	return &InitCmd{flags: flags}
}

// Register adds the init command to the application
func (cmd *InitCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "init",
		Usage:     "Create a lessons directory with a config and a starter lesson",
		UsageText: "codelesson init [--title TITLE] <directory>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "title",
				Usage:       "site title (default: derived from the directory name)",
				Destination: &cmd.title,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *InitCmd) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("directory required\n\nUsage: codelesson init [--title TITLE] <directory>")
	}
	dir := c.Args().First()

	configPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	name := filepath.Base(dir)
	title := cmd.title
	if title == "" {
		title = toTitle(name)
	}

	cfg := config.DefaultConfig()
	cfg.Title = title
	if err := cfg.Save(configPath); err != nil {
		return err
	}

	id := slug(name) + "-intro"
	lessonPath := filepath.Join(dir, id+".yaml")
	if err := writeStarterLesson(lessonPath, id, "Introduction to "+title); err != nil {
		return err
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Printf("Created %s\n\n", lessonPath)
	fmt.Println("Next steps:")
	fmt.Printf("  codelesson validate %s\n", dir)
	fmt.Printf("  codelesson serve %s\n", dir)
	return nil
}

func writeStarterLesson(path, id, title string) error {
	content, err := templatesFS.ReadFile("templates/lesson.yaml.tmpl")
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}
	// [[ ]] keeps lesson content free to contain {{ }}.
	tmpl, err := template.New("lesson").Delims("[[", "]]").Parse(string(content))
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	return tmpl.Execute(f, map[string]string{"ID": id, "Title": title})
}

// toTitle turns "web-basics" into "Web Basics".
func toTitle(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		return "lesson"
	}
	return s
}
