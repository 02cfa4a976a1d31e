package worktree

import "time"

// Worktree is one isolated checkout created for a peasant run. ID is a
// generated handle distinct from ThreadID, grounded on the teacher's
// internal/worktree.Manager assigning each worktree its own
// uuid.New().String() rather than reusing the caller's id — useful here
// too since a thread can in principle be re-run against a replacement
// worktree after the original is removed, and log lines that key on ID
// then unambiguously pick out one lifetime instance.
type Worktree struct {
	ID             string
	ThreadID       string
	RepositoryPath string
	Path           string
	Branch         string
	BaseBranch     string
	CreatedAt      time.Time
}

// CreateRequest describes the worktree a peasant run needs.
type CreateRequest struct {
	ThreadID       string
	RepositoryPath string
	BaseBranch     string // defaults to "main" if empty
	BranchPrefix   string // defaults to "kingdom/" if empty
}
