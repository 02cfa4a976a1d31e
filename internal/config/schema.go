package config

import (
	"fmt"
	"sort"
)

// checkUnknownKeys walks the raw decoded JSON document and fails on any
// key, at any depth, that the schema does not recognize — named by its
// full dotted path (spec.md §4.2: "timout" must produce
// "council.timout", not silent acceptance).
func checkUnknownKeys(raw map[string]any) []*ConfigError {
	var errs []*ConfigError

	errs = append(errs, checkKnownKeys(raw, "", []string{"agents", "prompts", "council", "peasant"})...)

	if agentsRaw, ok := raw["agents"]; ok {
		agents, ok := agentsRaw.(map[string]any)
		if !ok {
			errs = append(errs, newConfigError("agents", "must be an object"))
		} else {
			for name, v := range agents {
				path := "agents." + name
				def, ok := v.(map[string]any)
				if !ok {
					errs = append(errs, newConfigError(path, "must be an object"))
					continue
				}
				errs = append(errs, checkKnownKeys(def, path, []string{"backend", "model", "prompt", "prompts", "extra_args"})...)
				if promptsRaw, ok := def["prompts"]; ok {
					if prompts, ok := promptsRaw.(map[string]any); ok {
						errs = append(errs, checkKnownKeys(prompts, path+".prompts", Phases)...)
					} else {
						errs = append(errs, newConfigError(path+".prompts", "must be an object"))
					}
				}
			}
		}
	}

	if promptsRaw, ok := raw["prompts"]; ok {
		if prompts, ok := promptsRaw.(map[string]any); ok {
			errs = append(errs, checkKnownKeys(prompts, "prompts", Phases)...)
		} else {
			errs = append(errs, newConfigError("prompts", "must be an object"))
		}
	}

	if councilRaw, ok := raw["council"]; ok {
		if council, ok := councilRaw.(map[string]any); ok {
			errs = append(errs, checkKnownKeys(council, "council", []string{"members", "timeout"})...)
		} else {
			errs = append(errs, newConfigError("council", "must be an object"))
		}
	}

	if peasantRaw, ok := raw["peasant"]; ok {
		if peasant, ok := peasantRaw.(map[string]any); ok {
			errs = append(errs, checkKnownKeys(peasant, "peasant", []string{"agent", "timeout", "max_iterations"})...)
		} else {
			errs = append(errs, newConfigError("peasant", "must be an object"))
		}
	}

	return errs
}

func checkKnownKeys(obj map[string]any, prefix string, known []string) []*ConfigError {
	knownSet := make(map[string]bool, len(known))
	for _, k := range known {
		knownSet[k] = true
	}

	var unknown []string
	for k := range obj {
		if !knownSet[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)

	var errs []*ConfigError
	for _, k := range unknown {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		errs = append(errs, newConfigError(path, fmt.Sprintf("unknown key (known: %v)", known)))
	}
	return errs
}
