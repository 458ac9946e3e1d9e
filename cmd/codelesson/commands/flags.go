package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/livetemplate/codelesson/internal/config"
)

// Flags holds the global options shared by every command.
type Flags struct {
	LogLevel string
	LogFile  string

	// Logger is set up in the Before hook
	Logger zerolog.Logger
}

// lessonsDir resolves the directory argument of a command, defaulting to
// the working directory.
func lessonsDir(arg string) (string, error) {
	if arg == "" {
		arg = "."
	}
	info, err := os.Stat(arg)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("directory does not exist: %s", arg)
		}
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", arg)
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return abs, nil
}

// loadConfig reads configPath, or codelesson.yaml in dir when configPath
// is empty.
func loadConfig(dir, configPath string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromDir(dir)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
