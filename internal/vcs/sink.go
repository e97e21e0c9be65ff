// Package vcs provides the best-effort version-control sink the engine
// notifies after successful metadata writes. The tool itself is a black box;
// failures are logged by callers and never propagate.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Sink receives commit notifications for metadata changes.
type Sink interface {
	// CommitChanges records a commit with the given message, optionally
	// scoped to specific files.
	CommitChanges(ctx context.Context, message string, files ...string) error
}

// Noop discards all commit requests.
type Noop struct{}

func (Noop) CommitChanges(context.Context, string, ...string) error { return nil }

// Git commits through the git command-line tool in the repository at Dir.
type Git struct {
	Dir     string
	Timeout time.Duration
}

// NewGit returns a Git sink for the repository rooted at dir.
func NewGit(dir string) *Git {
	return &Git{Dir: dir, Timeout: 30 * time.Second}
}

// CommitChanges stages files (everything when none are given) and commits.
// A clean tree is not an error.
func (g *Git) CommitChanges(ctx context.Context, message string, files ...string) error {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	addArgs := []string{"add", "--"}
	if len(files) == 0 {
		addArgs = []string{"add", "-A"}
	} else {
		addArgs = append(addArgs, files...)
	}
	if out, err := g.run(ctx, addArgs...); err != nil {
		return fmt.Errorf("vcs: git add: %w: %s", err, out)
	}

	out, err := g.run(ctx, "commit", "-m", message)
	if err != nil {
		if strings.Contains(out, "nothing to commit") {
			return nil
		}
		return fmt.Errorf("vcs: git commit: %w: %s", err, out)
	}
	return nil
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}
