package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

type VersionCmd struct {
	version string
}

// NewVersionCmd creates a new version command
func NewVersionCmd(version string) *VersionCmd {
	return &VersionCmd{version: version}
}

// Register adds the version command to the application
func (cmd *VersionCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "version",
		Usage: "Print the version",
		Action: func(ctx context.Context, c *cli.Command) error {
			fmt.Printf("codelesson %s\n", cmd.version)
			return nil
		},
	})
	return app
}
