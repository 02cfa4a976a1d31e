package worktree

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jbohnslav/kingdom/internal/common/logger"
)

const defaultBaseBranch = "main"
const defaultBranchPrefix = "kingdom/"

// Manager creates and removes git worktrees for peasant runs, keyed by
// thread id. Adapted from the teacher's internal/worktree.Manager: same
// Create/Remove shape and the same per-repository-path lock so two
// concurrent worktree operations against the same repo never race on
// `git worktree add`, but with the teacher's DB-backed Store interface
// replaced by an in-memory map — a peasant run's worktree lifetime never
// outlives the harness process that created it, so there is nothing to
// persist across restarts.
type Manager struct {
	logger *logger.Logger
	baseDir string

	mu         sync.RWMutex
	worktrees  map[string]*Worktree // threadID -> worktree

	repoLockMu sync.Mutex
	repoLocks  map[string]*sync.Mutex
}

// NewManager returns a Manager that creates worktrees under baseDir
// (created lazily on first Create call if missing).
func NewManager(baseDir string, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Default()
	}
	return &Manager{
		logger:    log.With(zap.String("component", "worktree-manager")),
		baseDir:   baseDir,
		worktrees: make(map[string]*Worktree),
		repoLocks: make(map[string]*sync.Mutex),
	}
}

// Get returns the worktree registered for threadID, if any.
func (m *Manager) Get(threadID string) (*Worktree, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wt, ok := m.worktrees[threadID]
	return wt, ok
}

// Create returns the existing worktree for req.ThreadID if one is
// registered and still present on disk, or creates a fresh one via `git
// worktree add`.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Worktree, error) {
	if existing, ok := m.Get(req.ThreadID); ok && m.isValid(existing.Path) {
		return existing, nil
	}

	if !m.isGitRepo(req.RepositoryPath) {
		return nil, ErrRepoNotGit
	}

	baseBranch := req.BaseBranch
	if baseBranch == "" {
		baseBranch = defaultBaseBranch
	}
	prefix := req.BranchPrefix
	if prefix == "" {
		prefix = defaultBranchPrefix
	}

	lock := m.repoLock(req.RepositoryPath)
	lock.Lock()
	defer lock.Unlock()

	if !m.branchExists(req.RepositoryPath, baseBranch) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBaseBranch, baseBranch)
	}

	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("worktree: create base dir: %w", err)
	}

	branchName := prefix + req.ThreadID
	worktreePath := filepath.Join(m.baseDir, req.ThreadID)

	cmd := exec.CommandContext(ctx, "git", "worktree", "add", "-b", branchName, worktreePath, baseBranch)
	cmd.Dir = req.RepositoryPath
	if output, err := cmd.CombinedOutput(); err != nil {
		m.logger.Error("git worktree add failed", zap.String("output", string(output)), zap.Error(err))
		return nil, fmt.Errorf("%w: %s", ErrGitCommandFailed, string(output))
	}

	wt := &Worktree{
		ID:             uuid.New().String(),
		ThreadID:       req.ThreadID,
		RepositoryPath: req.RepositoryPath,
		Path:           worktreePath,
		Branch:         branchName,
		BaseBranch:     baseBranch,
		CreatedAt:      time.Now().UTC(),
	}

	m.mu.Lock()
	m.worktrees[req.ThreadID] = wt
	m.mu.Unlock()

	m.logger.Info("created worktree", zap.String("thread_id", req.ThreadID), zap.String("path", worktreePath), zap.String("branch", branchName))
	return wt, nil
}

// Remove runs `git worktree remove` and, if removeBranch is set, deletes
// the branch from the main repository, then drops the in-memory record.
func (m *Manager) Remove(ctx context.Context, threadID string, removeBranch bool) error {
	wt, ok := m.Get(threadID)
	if !ok {
		return ErrNotFound
	}

	lock := m.repoLock(wt.RepositoryPath)
	lock.Lock()
	defer lock.Unlock()

	cmd := exec.CommandContext(ctx, "git", "worktree", "remove", "--force", wt.Path)
	cmd.Dir = wt.RepositoryPath
	if output, err := cmd.CombinedOutput(); err != nil {
		m.logger.Warn("git worktree remove failed", zap.String("output", string(output)), zap.Error(err))
	}

	if removeBranch {
		cmd := exec.CommandContext(ctx, "git", "branch", "-D", wt.Branch)
		cmd.Dir = wt.RepositoryPath
		if output, err := cmd.CombinedOutput(); err != nil {
			m.logger.Warn("git branch -D failed", zap.String("branch", wt.Branch), zap.String("output", string(output)), zap.Error(err))
		}
	}

	m.mu.Lock()
	delete(m.worktrees, threadID)
	m.mu.Unlock()

	m.logger.Info("removed worktree", zap.String("thread_id", threadID), zap.Bool("branch_removed", removeBranch))
	return nil
}

func (m *Manager) repoLock(repoPath string) *sync.Mutex {
	m.repoLockMu.Lock()
	defer m.repoLockMu.Unlock()
	lock, ok := m.repoLocks[repoPath]
	if !ok {
		lock = &sync.Mutex{}
		m.repoLocks[repoPath] = lock
	}
	return lock
}

func (m *Manager) isValid(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (m *Manager) isGitRepo(path string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = path
	return cmd.Run() == nil
}

func (m *Manager) branchExists(repoPath, branch string) bool {
	cmd := exec.Command("git", "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	cmd.Dir = repoPath
	if cmd.Run() == nil {
		return true
	}
	// also accept a remote-tracking branch name (e.g. "main" on a fresh clone)
	cmd = exec.Command("git", "rev-parse", "--verify", branch)
	cmd.Dir = repoPath
	return cmd.Run() == nil
}
