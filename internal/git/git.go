// Package git shells out to the git CLI for the narrow slice SmartSpec
// needs: annotated release tags and the commit they point at. The release
// workflow and the recommendation router are the only consumers; both reach
// the package through small interfaces so tests can stub it.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors,
//     standard library
//   - MUST NOT import: any other internal packages
package git

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// Client runs git commands inside one repository working directory.
type Client struct {
	dir string
}

// NewClient returns a Client rooted at dir, normally the repository root the
// bundle layout resolves against.
func NewClient(dir string) *Client {
	return &Client{dir: dir}
}

// run executes one git command and returns its trimmed stdout. Failures wrap
// ErrGitOperation with the command name and stderr.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...) //#nosec G204 -- args are constructed internally, not user input
	cmd.Dir = c.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", sserrors.Wrapf(sserrors.ErrGitOperation, "git %s: %s", args[0], detail)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// IsRepo reports whether the client's directory is inside a git work tree.
func (c *Client) IsRepo(ctx context.Context) bool {
	out, err := c.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// TagExists reports whether the named tag exists.
func (c *Client) TagExists(ctx context.Context, name string) (bool, error) {
	out, err := c.run(ctx, "tag", "--list", name)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// CreateTag creates an annotated tag at HEAD.
func (c *Client) CreateTag(ctx context.Context, name, message string) error {
	_, err := c.run(ctx, "tag", "-a", name, "-m", message)
	return err
}

// Head returns the abbreviated commit hash of HEAD.
func (c *Client) Head(ctx context.Context) (string, error) {
	return c.run(ctx, "rev-parse", "--short", "HEAD")
}

// HasReleaseTag reports whether the release tag for a spec bundle exists.
// A directory that is not a git repository has no tags, which keeps
// recommendation working in unversioned workspaces; the tagging workflow
// itself will fail there with a git error.
func (c *Client) HasReleaseTag(ctx context.Context, specID domain.SpecID) (bool, error) {
	if !c.IsRepo(ctx) {
		return false, nil
	}
	return c.TagExists(ctx, constants.ReleaseTagPrefix+specID.String())
}
