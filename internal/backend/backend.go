// Package backend holds the process-wide registry mapping a backend-family
// name to its CLI invocation shape and streaming/final-response parsers.
package backend

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jbohnslav/kingdom/pkg/streamframe"
)

// ErrUnknownFamily is returned by Lookup for an unregistered family name.
var ErrUnknownFamily = errors.New("backend: unknown family")

// ParseFinalFunc consumes a member run's full captured stdout/stderr and
// exit code, and extracts the canonical reply text and (if the vendor
// reported one) a resumable session token.
type ParseFinalFunc func(stdout, stderr []byte, exitCode int) (text, sessionToken string, err error)

// ExtractFrameFunc consumes one line of a family's live stream output and
// returns a normalized frame, or ok=false to skip the line silently.
type ExtractFrameFunc func(line []byte) (*streamframe.Frame, bool)

// Family is a backend family's complete record: how to invoke it, how to
// resume it, and how to parse both its live stream and its final output.
type Family struct {
	Name string

	// BaseArgv is the vendor command plus non-negotiable flags (e.g.
	// non-interactive mode, JSON output format).
	BaseArgv []string

	// StreamingBaseArgv overrides BaseArgv when the caller wants
	// token-level streaming. Empty means BaseArgv is used for both.
	StreamingBaseArgv []string

	// ResumeFlag is the CLI flag name used to resume a prior session
	// (e.g. "--resume"). Empty means the family does not support resume.
	ResumeFlag string

	// VersionProbe is argv that prints a version string and exits zero.
	VersionProbe []string

	// InstallHint is shown to the user when VersionProbe fails.
	InstallHint string

	// StreamExt is the file extension used for this family's stream
	// file: ".jsonl" for NDJSON families, ".json" otherwise.
	StreamExt string

	ParseFinal   ParseFinalFunc
	ExtractFrame ExtractFrameFunc
}

// EffectiveArgv returns BaseArgv, or StreamingBaseArgv when streaming is
// requested and the family has one.
func (f Family) EffectiveArgv(streaming bool) []string {
	if streaming && len(f.StreamingBaseArgv) > 0 {
		out := make([]string, len(f.StreamingBaseArgv))
		copy(out, f.StreamingBaseArgv)
		return out
	}
	out := make([]string, len(f.BaseArgv))
	copy(out, f.BaseArgv)
	return out
}

// SupportsResume reports whether a session token can be passed to this
// family on the next invocation.
func (f Family) SupportsResume() bool {
	return f.ResumeFlag != ""
}

// Registry is a process-wide map from family name to its Family record.
// Safe for concurrent reads once populated; Register is intended to be
// called only during startup.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Family
}

// NewRegistry returns an empty registry. Most callers want DefaultRegistry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Family)}
}

// Register adds or overwrites a family record.
func (r *Registry) Register(f Family) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[f.Name] = f
}

// Lookup returns the family record for name.
func (r *Registry) Lookup(name string) (Family, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byID[name]
	if !ok {
		return Family{}, fmt.Errorf("%w: %q", ErrUnknownFamily, name)
	}
	return f, nil
}

// Has reports whether name is registered, without constructing an error.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[name]
	return ok
}

// Names returns the registered family names in sorted order, for
// deterministic error messages and listings.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byID))
	for name := range r.byID {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
