package council

import (
	"strings"

	"github.com/jbohnslav/kingdom/internal/config"
)

// SafetyPreamble is the hard-coded prefix prepended to every composed
// prompt. It is owned by code and cannot be overridden by config.json
// per spec.md §4.5.
const SafetyPreamble = "You are one voice among several independent agents advising a single human. " +
	"Answer only what is asked; never impersonate the human or the other agents."

// ComposePrompt builds the final prompt string a Member runner receives,
// per spec.md §4.5's fixed-order composition contract:
//
//  1. the hard-coded safety preamble;
//  2. the phase prompt for this run — the agent's override if set, else
//     the global phase prompt;
//  3. the agent's persona prompt;
//  4. the caller's user prompt.
//
// Parts are joined with a single newline, and every slot is kept even
// when empty — an empty persona still occupies part 3, so the join
// reads SAFE\nPHASE\n\nUSER rather than collapsing to SAFE\nPHASE\nUSER.
// This ordering is a testable invariant: changing only an agent's
// phase-prompt override must change part 2 only, and a change to any
// single input must change exactly its own span of the result.
func ComposePrompt(phase string, agent config.AgentDef, globalPrompts map[string]string, userPrompt string) string {
	parts := []string{SafetyPreamble, phasePrompt(phase, agent, globalPrompts), agent.Prompt, userPrompt}
	return strings.Join(parts, "\n")
}

// phasePrompt resolves the per-run phase prompt: an agent-specific
// override wins over the global phase prompt.
func phasePrompt(phase string, agent config.AgentDef, globalPrompts map[string]string) string {
	if override, ok := agent.Prompts[phase]; ok && override != "" {
		return override
	}
	return globalPrompts[phase]
}
