package config

import (
	"fmt"
	"sort"

	"github.com/jbohnslav/kingdom/internal/backend"
)

// validate checks cross-references and numeric sanity on an already
// schema-clean, decoded Config. registry supplies the set of known
// backend families; every agent's Backend must name one of them.
func validate(cfg *Config, registry *backend.Registry) error {
	var errs []*ConfigError

	agentNames := make(map[string]bool, len(cfg.Agents))
	for name := range cfg.Agents {
		agentNames[name] = true
	}

	for name, def := range cfg.Agents {
		path := "agents." + name
		if def.Backend == "" {
			errs = append(errs, newConfigError(path+".backend", "is required"))
			continue
		}
		if registry != nil && !registry.Has(def.Backend) {
			errs = append(errs, newConfigError(path+".backend",
				fmt.Sprintf("unknown backend family %q (known: %v)", def.Backend, registry.Names())))
		}
	}

	for i, member := range cfg.Council.Members {
		if !agentNames[member] {
			errs = append(errs, newConfigError(fmt.Sprintf("council.members[%d]", i),
				fmt.Sprintf("references undefined agent %q", member)))
		}
	}

	if cfg.Council.Timeout <= 0 {
		errs = append(errs, newConfigError("council.timeout", "must be a positive integer"))
	}

	if cfg.Peasant.Agent != "" && !agentNames[cfg.Peasant.Agent] {
		errs = append(errs, newConfigError("peasant.agent", fmt.Sprintf("references undefined agent %q", cfg.Peasant.Agent)))
	}
	if cfg.Peasant.Timeout <= 0 {
		errs = append(errs, newConfigError("peasant.timeout", "must be a positive integer"))
	}
	if cfg.Peasant.MaxIterations <= 0 {
		errs = append(errs, newConfigError("peasant.max_iterations", "must be a positive integer"))
	}

	for phase := range cfg.Prompts {
		if !isKnownPhase(phase) {
			errs = append(errs, newConfigError("prompts."+phase, fmt.Sprintf("unknown phase (known: %v)", Phases)))
		}
	}
	for name, def := range cfg.Agents {
		for phase := range def.Prompts {
			if !isKnownPhase(phase) {
				errs = append(errs, newConfigError(fmt.Sprintf("agents.%s.prompts.%s", name, phase),
					fmt.Sprintf("unknown phase (known: %v)", Phases)))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Path < errs[j].Path })
	if len(errs) == 1 {
		return errs[0]
	}
	return &ConfigErrors{Errors: errs}
}

func isKnownPhase(phase string) bool {
	for _, p := range Phases {
		if p == phase {
			return true
		}
	}
	return false
}
