package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/errors"
)

// GlobalConfigDir returns the path to the global SmartSpec configuration
// directory, typically ~/.smartspec on Unix systems. The SMARTSPEC_HOME
// environment variable overrides the location.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigDir() (string, error) {
	if custom := os.Getenv(constants.HomeEnvVar); custom != "" {
		return custom, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.SmartSpecHome), nil
}

// ProjectConfigDir returns the relative path to the project configuration
// directory. This is always .spec relative to the repository root.
func ProjectConfigDir() string {
	return constants.RuntimeDir
}

// GlobalConfigPath returns the full path to the global configuration file,
// typically ~/.smartspec/config.yaml on Unix systems.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get global config path: %w", err)
	}
	return filepath.Join(dir, constants.GlobalConfigName), nil
}

// ProjectConfigPath returns the relative path to the project configuration
// file. This is always .spec/config.yaml relative to the repository root.
func ProjectConfigPath() string {
	return filepath.Join(ProjectConfigDir(), constants.ProjectConfigName)
}
