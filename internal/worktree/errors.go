// Package worktree manages git worktrees that isolate a peasant run's
// workspace from the repository the council/CLI layer runs in.
package worktree

import "errors"

var (
	// ErrRepoNotGit is returned when the repository path is not a git
	// repository.
	ErrRepoNotGit = errors.New("worktree: repository is not a git repository")

	// ErrInvalidBaseBranch is returned when the requested base branch
	// does not exist in the repository.
	ErrInvalidBaseBranch = errors.New("worktree: base branch does not exist")

	// ErrGitCommandFailed wraps a non-zero exit from a git subcommand.
	ErrGitCommandFailed = errors.New("worktree: git command failed")

	// ErrNotFound is returned when no worktree is registered for a
	// thread id.
	ErrNotFound = errors.New("worktree: not found")
)
