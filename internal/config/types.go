// Package config loads and validates the Kingdom project config.json:
// agent definitions, backend-family mapping, phase prompts, council and
// peasant settings.
package config

// Phase names the fixed prompt-composition slots a config may supply an
// override for. The set is closed per spec.md §3.
const (
	PhaseCouncil = "council"
	PhaseDesign  = "design"
	PhaseReview  = "review"
	PhasePeasant = "peasant"
)

// Phases lists the closed phase set in a stable order, for validation
// and iteration.
var Phases = []string{PhaseCouncil, PhaseDesign, PhaseReview, PhasePeasant}

// Config is the fully decoded, validated project configuration.
type Config struct {
	Agents  map[string]AgentDef `mapstructure:"agents"`
	Prompts map[string]string   `mapstructure:"prompts"`
	Council CouncilConfig       `mapstructure:"council"`
	Peasant PeasantConfig       `mapstructure:"peasant"`
}

// AgentDef is the config-layer agent definition: a named handle mapping
// to a backend family plus optional overrides. All fields are optional
// except Backend.
type AgentDef struct {
	Backend   string            `mapstructure:"backend"`
	Model     string            `mapstructure:"model"`
	Prompt    string            `mapstructure:"prompt"`
	Prompts   map[string]string `mapstructure:"prompts"`
	ExtraArgs []string          `mapstructure:"extra_args"`
}

// CouncilConfig configures the default council invocation.
type CouncilConfig struct {
	Members []string `mapstructure:"members"`
	Timeout int      `mapstructure:"timeout"`
}

// PeasantConfig configures the workspace harness.
type PeasantConfig struct {
	Agent         string `mapstructure:"agent"`
	Timeout       int    `mapstructure:"timeout"`
	MaxIterations int    `mapstructure:"max_iterations"`
}

// defaultCouncilTimeoutSeconds and friends back the "empty-but-valid"
// default config returned when no config.json exists. Spec.md §4.2
// names the shape of the default ("no named agents, default timeouts,
// default phase prompts empty") but not the concrete numbers; chosen
// here and recorded in DESIGN.md as an implementation decision.
const (
	defaultCouncilTimeoutSeconds = 300
	defaultPeasantTimeoutSeconds = 1800
	defaultPeasantMaxIterations  = 10
)

// Default returns the "empty-but-valid" config used when no config file
// is present: no named agents, default timeouts, empty phase prompts.
func Default() *Config {
	return &Config{
		Agents:  map[string]AgentDef{},
		Prompts: map[string]string{},
		Council: CouncilConfig{
			Members: nil,
			Timeout: defaultCouncilTimeoutSeconds,
		},
		Peasant: PeasantConfig{
			Timeout:       defaultPeasantTimeoutSeconds,
			MaxIterations: defaultPeasantMaxIterations,
		},
	}
}
