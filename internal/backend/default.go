package backend

import (
	"github.com/jbohnslav/kingdom/pkg/acpstream"
	"github.com/jbohnslav/kingdom/pkg/claudestream"
	"github.com/jbohnslav/kingdom/pkg/codexstream"
	"github.com/jbohnslav/kingdom/pkg/cursorstream"
)

// Family name constants for the registered backends. Registering a fifth
// family requires no change outside this package.
const (
	Claude = "claude"
	Codex  = "codex"
	Cursor = "cursor"
	ACP    = "acp"
)

// DefaultRegistry returns the registry populated with the three
// spec-mandated built-in families (claude, codex, cursor) plus the acp
// family enrichment.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(Family{
		Name:              Claude,
		BaseArgv:          []string{"claude", "--print", "--output-format", "stream-json", "--verbose"},
		StreamingBaseArgv: []string{"claude", "--print", "--output-format", "stream-json", "--verbose", "--include-partial-messages"},
		ResumeFlag:        "--resume",
		VersionProbe:      []string{"claude", "--version"},
		InstallHint:       "install the Claude Code CLI: https://docs.anthropic.com/claude-code",
		StreamExt:         ".jsonl",
		ParseFinal:        claudestream.ParseFinal,
		ExtractFrame:      claudestream.ExtractFrame,
	})

	r.Register(Family{
		Name:         Codex,
		BaseArgv:     []string{"codex", "exec", "--json"},
		ResumeFlag:   "resume",
		VersionProbe: []string{"codex", "--version"},
		InstallHint:  "install the Codex CLI",
		StreamExt:    ".jsonl",
		ParseFinal:   codexstream.ParseFinal,
		ExtractFrame: codexstream.ExtractFrame,
	})

	r.Register(Family{
		Name:         Cursor,
		BaseArgv:     []string{"cursor-agent", "--print", "--output-format", "stream-json"},
		ResumeFlag:   "--resume",
		VersionProbe: []string{"cursor-agent", "--version"},
		InstallHint:  "install the Cursor CLI agent",
		StreamExt:    ".jsonl",
		ParseFinal:   cursorstream.ParseFinal,
		ExtractFrame: cursorstream.ExtractFrame,
	})

	r.Register(Family{
		Name:         ACP,
		BaseArgv:     []string{"acp-agent"},
		VersionProbe: []string{"acp-agent", "--version"},
		InstallHint:  "install an Agent Client Protocol-compatible agent binary",
		StreamExt:    ".jsonl",
		ParseFinal:   acpstream.ParseFinal,
		ExtractFrame: acpstream.ExtractFrame,
	})

	return r
}
