package worker

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/jbohnslav/kingdom/internal/backend"
	"github.com/jbohnslav/kingdom/internal/common/logger"
	"github.com/jbohnslav/kingdom/internal/config"
	"github.com/jbohnslav/kingdom/internal/council"
	"github.com/jbohnslav/kingdom/internal/session"
	"github.com/jbohnslav/kingdom/internal/thread"
)

// stateDirName and configFileName mirror the layout kingdom.NewCore
// builds in the root package: <ProjectRoot>/.kingdom/config.json, with
// each branch's threads and sessions under
// <ProjectRoot>/.kingdom/branches/<branch>/. A spawned worker and the
// synchronous Core.Ask path must agree on this layout byte-for-byte, or
// a backgrounded job would read a different config than the one that
// queued it.
const stateDirName = ".kingdom"
const configFileName = "config.json"

// RunJob loads the project config, resolves job.Members against it, and
// runs one synchronous council invocation against the thread named in
// job.ThreadID. It is the whole of what a spawned kingdom-worker process
// does before exiting.
func RunJob(job Job) error {
	log := logger.Default().With(zap.String("component", "worker"), zap.String("thread_id", job.ThreadID))

	registry := backend.DefaultRegistry()
	cfg, err := config.Load(filepath.Join(job.ProjectRoot, stateDirName, configFileName), registry)
	if err != nil {
		return fmt.Errorf("worker: load config: %w", err)
	}

	members := job.Members
	if len(members) == 0 {
		members = cfg.Council.Members
	}

	targets, err := council.ResolveTargets(members, cfg.Agents, registry)
	if err != nil {
		return fmt.Errorf("worker: resolve targets: %w", err)
	}

	stateDir := filepath.Join(job.ProjectRoot, stateDirName, "branches", job.Branch)
	store := thread.NewStore(filepath.Join(stateDir, "threads"))
	sessions := session.NewStore(filepath.Join(stateDir, "sessions.json"))

	resumeTokens := job.ResumeTokens
	if resumeTokens == nil {
		resumeTokens = make(map[string]string, len(targets))
		for _, t := range targets {
			if sess, ok, err := sessions.GetAgent(t.Name); err == nil && ok {
				resumeTokens[t.Name] = sess.SessionToken
			}
		}
	}

	orch := council.NewOrchestrator(store)
	responses, err := orch.Run(council.RunRequest{
		ThreadID:      job.ThreadID,
		Phase:         job.Phase,
		UserPrompt:    job.Prompt,
		Targets:       targets,
		GlobalPrompts: cfg.Prompts,
		ResumeTokens:  resumeTokens,
		Timeout:       time.Duration(cfg.Council.Timeout) * time.Second,
		WorkDir:       job.ProjectRoot,
		StreamDir:     store.ThreadRoot(job.ThreadID),
	})
	if err != nil {
		return fmt.Errorf("worker: run council: %w", err)
	}

	for _, resp := range responses {
		resp := resp
		status := session.StatusIdle
		switch {
		case resp.TimedOut:
			status = session.StatusTimedOut
		case resp.Error != nil:
			status = session.StatusErrored
		}
		if err := sessions.UpdateAgent(resp.Name, func(s session.AgentSession) session.AgentSession {
			if resp.SessionToken != "" {
				s.SessionToken = resp.SessionToken
			}
			s.Pid = 0
			s.Status = status
			s.LastActivityAt = time.Now().UTC()
			return s
		}); err != nil {
			log.Warn("failed to persist session state", zap.String("agent", resp.Name), zap.Error(err))
		}
	}

	log.Info("worker job complete", zap.Int("responses", len(responses)))
	return nil
}
