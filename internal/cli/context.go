// Package cli provides the command-line interface for SmartSpec.
// This file resolves the execution context commands operate in: the
// repository root, the layered configuration, and the assembled system.
package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mrz1836/smartspec/internal/config"
	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/metrics"
	"github.com/mrz1836/smartspec/internal/orchestrator"
)

// ExecutionContext holds the resolved root and config for command execution.
type ExecutionContext struct {
	// Root is the repository root every relative path resolves against.
	Root string

	// Config is the merged configuration (flags → env → project → global →
	// defaults).
	Config *config.Config
}

// ResolveExecutionContext resolves the repository root and loads layered
// configuration. An explicit --root wins; otherwise the nearest ancestor of
// the working directory containing a specs/ or .spec/ tree is used, falling
// back to the working directory itself (generate_spec bootstraps the trees).
func ResolveExecutionContext(ctx context.Context, flags *GlobalFlags) (*ExecutionContext, error) {
	root, err := resolveRoot(flags.Root)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(ctx, root, flags.Config)
	if err != nil {
		return nil, err
	}

	return &ExecutionContext{Root: root, Config: cfg}, nil
}

// resolveRoot picks the repository root.
func resolveRoot(explicit string) (string, error) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", errors.Wrapf(err, "resolving root %s", explicit)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", errors.Wrapf(err, "root %s", abs)
		}
		if !info.IsDir() {
			return "", errors.Wrapf(errors.ErrInvalidArgument, "root %s is not a directory", abs)
		}
		return abs, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "resolving working directory")
	}
	return DiscoverRoot(cwd), nil
}

// DiscoverRoot walks from start toward the filesystem root looking for a
// directory that contains specs/ or .spec/. When neither exists anywhere
// above, start itself is the root.
func DiscoverRoot(start string) string {
	dir := start
	for {
		if hasWorkspaceMarker(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// hasWorkspaceMarker reports whether dir contains a SmartSpec tree.
func hasWorkspaceMarker(dir string) bool {
	for _, marker := range []string{constants.SpecsDir, constants.RuntimeDir} {
		if info, err := os.Stat(filepath.Join(dir, marker)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

// loadConfig loads configuration for the resolved root. An explicit --config
// bypasses discovery entirely.
func loadConfig(ctx context.Context, root, explicit string) (*config.Config, error) {
	if explicit != "" {
		return config.LoadFromFile(ctx, explicit)
	}

	globalPath, err := config.GlobalConfigPath()
	if err != nil {
		// No resolvable home directory; project config still applies.
		globalPath = ""
	}
	projectPath := filepath.Join(root, config.ProjectConfigPath())
	return config.LoadFromPaths(ctx, projectPath, globalPath)
}

// system assembles the full orchestrator for the resolved context. The
// caller owns the result and must Close it when the command finishes.
func system(ctx context.Context, ec *ExecutionContext, m *metrics.Metrics) (*orchestrator.Orchestrator, error) {
	opts := []orchestrator.Option{
		orchestrator.WithLogger(GetLogger()),
	}
	if m != nil {
		opts = append(opts, orchestrator.WithMetrics(m))
	}
	return orchestrator.New(ctx, ec.Root, ec.Config, opts...)
}

// systemFor resolves the execution context and assembles the orchestrator
// in one step, for commands with no extra wiring.
func systemFor(ctx context.Context, flags *GlobalFlags) (*orchestrator.Orchestrator, error) {
	ec, err := ResolveExecutionContext(ctx, flags)
	if err != nil {
		return nil, err
	}
	return system(ctx, ec, nil)
}
