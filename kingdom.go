// Package kingdom is the root facade over every internal component:
// config, backend registry, thread store, session store, council
// orchestrator, retry engine, watch loop, and the peasant/worktree
// workspace harness. Core exposes the seven logical operations spec.md
// §6 names as the CLI layer's contract (Ask, Watch, Status, Retry, Show,
// List, ResetSession) plus RunPeasant for the workspace harness, which
// has no CLI surface of its own but still needs a caller-facing entry
// point. cmd/kingdom is a thin flag-based CLI over exactly this type.
package kingdom

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jbohnslav/kingdom/internal/backend"
	"github.com/jbohnslav/kingdom/internal/common/logger"
	"github.com/jbohnslav/kingdom/internal/config"
	"github.com/jbohnslav/kingdom/internal/council"
	"github.com/jbohnslav/kingdom/internal/member"
	"github.com/jbohnslav/kingdom/internal/peasant"
	"github.com/jbohnslav/kingdom/internal/retry"
	"github.com/jbohnslav/kingdom/internal/session"
	"github.com/jbohnslav/kingdom/internal/thread"
	"github.com/jbohnslav/kingdom/internal/watch"
	"github.com/jbohnslav/kingdom/internal/worker"
	"github.com/jbohnslav/kingdom/internal/worktree"
	"github.com/jbohnslav/kingdom/pkg/streamframe"
)

const (
	stateDirName  = ".kingdom"
	configFile    = "config.json"
	workerBinName = "kingdom-worker"
)

// Core is one project-and-branch's worth of Kingdom state.
type Core struct {
	ProjectRoot string
	Branch      string
	Config      *config.Config
	Registry    *backend.Registry
	Store       *thread.Store
	Sessions    *session.Store
	Worktrees   *worktree.Manager

	logger *logger.Logger
}

// NewCore loads config.json from projectRoot's state directory and
// returns a Core scoped to branch. A missing config file is not an
// error — config.Load returns the empty-but-valid default.
func NewCore(projectRoot, branch string) (*Core, error) {
	registry := backend.DefaultRegistry()
	cfg, err := config.Load(filepath.Join(projectRoot, stateDirName, configFile), registry)
	if err != nil {
		return nil, err
	}

	branchDir := filepath.Join(projectRoot, stateDirName, "branches", branch)
	return &Core{
		ProjectRoot: projectRoot,
		Branch:      branch,
		Config:      cfg,
		Registry:    registry,
		Store:       thread.NewStore(filepath.Join(branchDir, "threads")),
		Sessions:    session.NewStore(filepath.Join(branchDir, "sessions.json")),
		Worktrees:   worktree.NewManager(filepath.Join(projectRoot, stateDirName, "worktrees"), nil),
		logger:      logger.Default().With(zap.String("component", "kingdom"), zap.String("branch", branch)),
	}, nil
}

// AskRequest is one Ask invocation's parameters.
type AskRequest struct {
	Prompt    string
	Members   []string // empty means config.Council.Members
	ThreadID  string    // empty starts a fresh thread
	Phase     string    // empty means config.PhaseCouncil
	Timeout   time.Duration
	Background bool
}

// Ask implements the `ask` operation: start or continue a thread and
// fan req.Prompt out to its members, synchronously or via a detached
// worker. Once the thread exists it returns the thread id, even on a
// later error and even when Background is set and the orchestration
// hasn't finished yet; if target resolution or thread creation fails,
// the returned id is empty.
func (c *Core) Ask(req AskRequest) (string, error) {
	phase := req.Phase
	if phase == "" {
		phase = config.PhaseCouncil
	}
	members := req.Members
	if len(members) == 0 {
		members = c.Config.Council.Members
	}

	targets, err := council.ResolveTargets(members, c.Config.Agents, c.Registry)
	if err != nil {
		return "", err
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID, err = c.Store.CreateThread(members, phase)
		if err != nil {
			return "", err
		}
	}
	if _, err := c.Store.AddMessage(threadID, thread.Message{
		From: thread.KingSender,
		To:   thread.AllSentinel,
		Body: req.Prompt,
	}); err != nil {
		return threadID, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = time.Duration(c.Config.Council.Timeout) * time.Second
	}
	resumeTokens := c.resumeTokens(members)

	if req.Background {
		binary, err := workerBinaryPath()
		if err != nil {
			return threadID, fmt.Errorf("kingdom: locate %s: %w", workerBinName, err)
		}
		pid, err := worker.Spawn(worker.SpawnRequest{
			BinaryPath: binary,
			Job: worker.Job{
				ProjectRoot:  c.ProjectRoot,
				Branch:       c.Branch,
				ThreadID:     threadID,
				Phase:        phase,
				Members:      members,
				Prompt:       req.Prompt,
				ResumeTokens: resumeTokens,
			},
		})
		if err != nil {
			return threadID, err
		}
		c.markRunning(members, pid)
		return threadID, nil
	}

	orch := council.NewOrchestrator(c.Store)
	responses, err := orch.Run(council.RunRequest{
		ThreadID:      threadID,
		Phase:         phase,
		UserPrompt:    req.Prompt,
		Targets:       targets,
		GlobalPrompts: c.Config.Prompts,
		ResumeTokens:  resumeTokens,
		Timeout:       timeout,
		WorkDir:       c.ProjectRoot,
		StreamDir:     c.Store.ThreadRoot(threadID),
	})
	if err != nil {
		return threadID, err
	}
	c.persistSessions(responses)
	return threadID, nil
}

// WatchRequest configures a Watch call.
type WatchRequest struct {
	ThreadID  string
	Timeout   time.Duration
	OnMessage func(thread.Message)
	OnFrame   func(member string, frame streamframe.Frame)
}

// Watch implements the `watch` operation: tail a thread's stream files
// and message directory until every declared member has answered the
// current turn, the context is cancelled, or the timeout elapses.
func (c *Core) Watch(ctx context.Context, req WatchRequest) (watch.Outcome, error) {
	meta, err := c.Store.ReadMetadata(req.ThreadID)
	if err != nil {
		return "", err
	}

	targets := make([]watch.Target, 0, len(meta.Members))
	for _, name := range meta.Members {
		def, ok := c.Config.Agents[name]
		if !ok {
			continue
		}
		family, err := c.Registry.Lookup(def.Backend)
		if err != nil {
			continue
		}
		targets = append(targets, watch.Target{
			Name:       name,
			Family:     family,
			StreamPath: council.StreamPath(c.Store.ThreadRoot(req.ThreadID), council.MemberTarget{Name: name, Family: family}),
		})
	}

	return watch.Run(ctx, watch.Request{
		Store:           c.Store,
		ThreadID:        req.ThreadID,
		DeclaredMembers: meta.Members,
		Targets:         targets,
		Timeout:         req.Timeout,
		OnMessage:       req.OnMessage,
		OnFrame:         req.OnFrame,
	})
}

// staleStreamWindow bounds how long a stream file's last write can be
// before Status stops treating it as evidence the member is still
// running, per spec.md §4.10 item 4's "growing" clause. This is the
// fallback used when no session record reports a live pid — e.g. a
// synchronous (non-background) Ask never records one, since the calling
// process itself is the one running the member.
const staleStreamWindow = 5 * time.Second

// Status implements the `status` operation for a single thread.
func (c *Core) Status(threadID string) (map[string]thread.MemberState, error) {
	meta, err := c.Store.ReadMetadata(threadID)
	if err != nil {
		return nil, err
	}
	messages, err := c.Store.ListMessages(threadID)
	if err != nil {
		return nil, err
	}

	root := c.Store.ThreadRoot(threadID)
	live := func(name string) bool {
		if sess, ok, err := c.Sessions.GetAgent(name); err == nil && ok && sess.Status == session.StatusRunning && sess.Alive() {
			return true
		}

		def, ok := c.Config.Agents[name]
		if !ok {
			return false
		}
		family, err := c.Registry.Lookup(def.Backend)
		if err != nil {
			return false
		}
		path := council.StreamPath(root, council.MemberTarget{Name: name, Family: family})
		info, err := os.Stat(path)
		return err == nil && time.Since(info.ModTime()) < staleStreamWindow
	}

	return thread.DeriveStatus(messages, meta.Members, live), nil
}

// StatusAll implements the `status(all)` form: every thread on this
// branch, keyed by thread id.
func (c *Core) StatusAll() (map[string]map[string]thread.MemberState, error) {
	ids, err := c.Store.ListThreadIDs()
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]thread.MemberState, len(ids))
	for _, id := range ids {
		st, err := c.Status(id)
		if err != nil {
			c.logger.Warn("status failed for thread", zap.String("thread_id", id), zap.Error(err))
			continue
		}
		out[id] = st
	}
	return out, nil
}

// Retry implements the `retry` operation: re-run only the current
// turn's members with no successful reply yet, preserving the original
// prompt and each member's session token.
func (c *Core) Retry(threadID string) ([]member.MemberResponse, error) {
	meta, err := c.Store.ReadMetadata(threadID)
	if err != nil {
		return nil, err
	}
	messages, err := c.Store.ListMessages(threadID)
	if err != nil {
		return nil, err
	}

	resolved, err := council.ResolveTargets(meta.Members, c.Config.Agents, c.Registry)
	if err != nil {
		return nil, err
	}
	targets := make(map[string]council.MemberTarget, len(resolved))
	for _, t := range resolved {
		targets[t.Name] = t
	}

	orch := council.NewOrchestrator(c.Store)
	responses, err := retry.Run(orch, messages, retry.Request{
		ThreadID:        threadID,
		DeclaredMembers: meta.Members,
		Targets:         targets,
		GlobalPrompts:   c.Config.Prompts,
		Phase:           meta.Phase,
		Timeout:         time.Duration(c.Config.Council.Timeout) * time.Second,
		WorkDir:         c.ProjectRoot,
		StreamDir:       c.Store.ThreadRoot(threadID),
		Sessions:        c.Sessions,
	})
	if err != nil {
		return nil, err
	}
	c.persistSessions(responses)
	return responses, nil
}

// Show implements the `show` operation: the full message list for a
// thread, in sequence order.
func (c *Core) Show(threadID string) ([]thread.Message, error) {
	return c.Store.ListMessages(threadID)
}

// ThreadSummary is one List entry.
type ThreadSummary struct {
	ID           string
	Phase        string
	Members      []string
	CreatedAt    time.Time
	MessageCount int
}

// List implements the `list` operation: every thread on this branch.
func (c *Core) List() ([]ThreadSummary, error) {
	ids, err := c.Store.ListThreadIDs()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	out := make([]ThreadSummary, 0, len(ids))
	for _, id := range ids {
		meta, err := c.Store.ReadMetadata(id)
		if err != nil {
			c.logger.Warn("skipping unreadable thread metadata", zap.String("thread_id", id), zap.Error(err))
			continue
		}
		messages, err := c.Store.ListMessages(id)
		if err != nil {
			c.logger.Warn("skipping unreadable thread messages", zap.String("thread_id", id), zap.Error(err))
			continue
		}
		out = append(out, ThreadSummary{
			ID:           id,
			Phase:        meta.Phase,
			Members:      meta.Members,
			CreatedAt:    meta.CreatedAt,
			MessageCount: len(messages),
		})
	}
	return out, nil
}

// ResetSession implements the `reset_session` operation.
func (c *Core) ResetSession(agent string) error {
	return c.Sessions.ResetAgent(agent)
}

// PeasantRequest configures one RunPeasant invocation.
type PeasantRequest struct {
	ThreadID       string
	TicketBody     string
	RepositoryPath string
	BaseBranch     string
}

// RunPeasant drives the workspace harness per spec.md §4.12: create (or
// reuse) an isolated worktree for the ticket's thread, then loop the
// configured peasant agent against it until a stop sentinel fires or
// peasant.max_iterations is spent.
func (c *Core) RunPeasant(ctx context.Context, req PeasantRequest) (peasant.Result, error) {
	agentName := c.Config.Peasant.Agent
	def, ok := c.Config.Agents[agentName]
	if !ok {
		return peasant.Result{}, fmt.Errorf("kingdom: peasant agent %q is not declared", agentName)
	}
	family, err := c.Registry.Lookup(def.Backend)
	if err != nil {
		return peasant.Result{}, fmt.Errorf("kingdom: peasant agent %q: %w", agentName, err)
	}

	wt, err := c.Worktrees.Create(ctx, worktree.CreateRequest{
		ThreadID:       req.ThreadID,
		RepositoryPath: req.RepositoryPath,
		BaseBranch:     req.BaseBranch,
	})
	if err != nil {
		return peasant.Result{}, err
	}

	harness := peasant.NewHarness(c.Store)
	return harness.Run(peasant.Request{
		ThreadID:      req.ThreadID,
		TicketBody:    req.TicketBody,
		Agent:         member.AgentConfig{Name: agentName, Family: family, Model: def.Model, ExtraArgs: def.ExtraArgs},
		AgentDef:      def,
		GlobalPrompts: c.Config.Prompts,
		Timeout:       time.Duration(c.Config.Peasant.Timeout) * time.Second,
		MaxIterations: c.Config.Peasant.MaxIterations,
		WorkDir:       wt.Path,
		StreamDir:     c.Store.ThreadRoot(req.ThreadID),
	})
}

func (c *Core) resumeTokens(members []string) map[string]string {
	out := make(map[string]string, len(members))
	for _, name := range members {
		if sess, ok, err := c.Sessions.GetAgent(name); err == nil && ok {
			out[name] = sess.SessionToken
		}
	}
	return out
}

// markRunning records that the given members' next reply is coming from
// the detached worker process pid, so Status can honor spec.md §4.10
// item 4's live-pid branch instead of relying solely on stream-file
// mtime. A single kingdom-worker process runs every member in the job
// concurrently as goroutines, not as separate OS processes, so all of
// them share the same recorded pid.
func (c *Core) markRunning(members []string, pid int) {
	now := time.Now().UTC()
	for _, name := range members {
		if err := c.Sessions.UpdateAgent(name, func(s session.AgentSession) session.AgentSession {
			s.Pid = pid
			s.Status = session.StatusRunning
			s.StartedAt = now
			return s
		}); err != nil {
			c.logger.Warn("failed to record running session", zap.String("agent", name), zap.Error(err))
		}
	}
}

func (c *Core) persistSessions(responses []member.MemberResponse) {
	for _, resp := range responses {
		resp := resp
		status := session.StatusIdle
		switch {
		case resp.TimedOut:
			status = session.StatusTimedOut
		case resp.Error != nil:
			status = session.StatusErrored
		}
		if err := c.Sessions.UpdateAgent(resp.Name, func(s session.AgentSession) session.AgentSession {
			if resp.SessionToken != "" {
				s.SessionToken = resp.SessionToken
			}
			s.Pid = 0
			s.Status = status
			s.LastActivityAt = time.Now().UTC()
			return s
		}); err != nil {
			c.logger.Warn("failed to persist session state", zap.String("agent", resp.Name), zap.Error(err))
		}
	}
}

// workerBinaryPath locates the kingdom-worker binary next to the
// current executable, falling back to $PATH.
func workerBinaryPath() (string, error) {
	name := workerBinName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), name)
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, nil
		}
	}
	return exec.LookPath(name)
}
