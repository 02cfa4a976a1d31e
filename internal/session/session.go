// Package session is the per-branch agent session state store: one JSON
// file recording each agent's resumable session token, guarded by an
// advisory exclusive file lock so the driver CLI and a detached worker
// (separate PIDs per spec.md §4.11) never interleave a read-modify-write.
package session

import (
	"encoding/json"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/jbohnslav/kingdom/internal/common/fsatomic"
)

// Status is a session record's coarse run state, distinct from
// thread.MemberState: it tracks the agent's process across runs rather
// than one turn's outcome.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusErrored  Status = "errored"
	StatusTimedOut Status = "timed_out"
)

// AgentSession is one agent's persisted session state, per spec.md §6's
// `{resume_token, pid, status, started_at, last_activity_at}` schema.
type AgentSession struct {
	SessionToken   string    `json:"resume_token,omitempty"`
	Pid            int       `json:"pid,omitempty"`
	Status         Status    `json:"status,omitempty"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	LastActivityAt time.Time `json:"last_activity_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Alive reports whether s.Pid names a process that is still running.
// Used by DeriveStatus's live check per spec.md §4.10 item 4, ahead of
// its stream-file-mtime fallback.
func (s AgentSession) Alive() bool {
	if s.Pid <= 0 {
		return false
	}
	return processAlive(s.Pid)
}

// State is the full on-disk document: every agent with recorded state.
type State struct {
	Agents map[string]AgentSession `json:"agents"`
}

// Store reads and writes one session JSON file.
type Store struct {
	path string
}

// NewStore returns a Store backed by the file at path. The file need not
// exist yet; Load returns an empty State until the first Update call
// creates it.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the current state without acquiring the write lock. It is a
// best-effort snapshot: a concurrent writer may supersede it immediately
// after return, which is fine for read-only callers (status displays,
// the retry engine picking up a resume token to pass to a fresh run).
func (s *Store) Load() (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{Agents: map[string]AgentSession{}}, nil
		}
		return State{}, err
	}
	return decode(data)
}

// GetAgent returns the named agent's session state, or ok=false if none
// is recorded.
func (s *Store) GetAgent(name string) (AgentSession, bool, error) {
	state, err := s.Load()
	if err != nil {
		return AgentSession{}, false, err
	}
	agent, ok := state.Agents[name]
	return agent, ok, nil
}

// UpdateAgent performs an exclusive-locked read-modify-write: it loads
// the current state, applies patch to the named agent's current entry
// (zero value if absent), and atomically commits the result. The lock
// plus the load-inside-the-lock (rather than trusting a Load taken
// before acquiring it) is what makes concurrent callers from different
// PIDs safe per spec.md §4.11.
func (s *Store) UpdateAgent(name string, patch func(AgentSession) AgentSession) error {
	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	state, err := s.loadLocked()
	if err != nil {
		return err
	}
	if state.Agents == nil {
		state.Agents = map[string]AgentSession{}
	}
	current := state.Agents[name]
	updated := patch(current)
	updated.UpdatedAt = time.Now().UTC()
	state.Agents[name] = updated

	return s.writeLocked(state)
}

// ResetAgent clears a named agent's session token, the explicit
// per-member session reset operation spec.md §4.7's "Session
// preservation" note calls out as a distinct command from retry.
func (s *Store) ResetAgent(name string) error {
	return s.UpdateAgent(name, func(AgentSession) AgentSession {
		return AgentSession{}
	})
}

func (s *Store) loadLocked() (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{Agents: map[string]AgentSession{}}, nil
		}
		return State{}, err
	}
	return decode(data)
}

func (s *Store) writeLocked(state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return fsatomic.WriteFile(s.path, data, 0o644)
}

func decode(data []byte) (State, error) {
	var state State
	if len(data) == 0 {
		return State{Agents: map[string]AgentSession{}}, nil
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, err
	}
	if state.Agents == nil {
		state.Agents = map[string]AgentSession{}
	}
	return state, nil
}
