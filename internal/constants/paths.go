package constants

// Log file names.
const (
	// CLILogFileName is the name of the global CLI log file for host operations.
	// This file is located in ~/.smartspec/logs/smartspec.log
	CLILogFileName = "smartspec.log"
)

// Configuration file names.
const (
	// GlobalConfigName is the name of the global SmartSpec configuration file.
	// This file is located in the SmartSpec home directory.
	GlobalConfigName = "config.yaml"

	// ProjectConfigName is the name of the project configuration file.
	// This file is located under the repository's runtime directory (.spec/).
	ProjectConfigName = "config.yaml"
)

// EnvPrefix is the environment variable prefix for configuration overrides.
const EnvPrefix = "SMARTSPEC"

// HomeEnvVar overrides the SmartSpec home directory when set.
const HomeEnvVar = "SMARTSPEC_HOME"
