package config

import (
	"encoding/json"
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/jbohnslav/kingdom/internal/backend"
)

// EnvPrefix is the prefix for environment-variable config overrides,
// matching the teacher's KANDEV_-prefix convention adapted to this
// project's name.
const EnvPrefix = "KINGDOM"

// Load reads config.json at path, validates it, and returns the decoded
// Config. A missing file is not an error: Load returns Default().
// registry is used to validate agents.backend against the set of known
// backend families; pass nil to skip that check (e.g. in tests that
// only exercise schema validation).
func Load(path string, registry *backend.Registry) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, &ConfigError{Msg: "cannot read config file: " + err.Error()}
	}
	return LoadBytes(data, registry)
}

// LoadBytes validates and decodes a JSON config document already read
// into memory. Exposed separately so tests and embedders can validate a
// document without touching the filesystem.
func LoadBytes(data []byte, registry *backend.Registry) (*Config, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Msg: "invalid JSON: " + err.Error()}
	}

	if errs := checkUnknownKeys(raw); len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Path < errs[j].Path })
		if len(errs) == 1 {
			return nil, errs[0]
		}
		return nil, &ConfigErrors{Errors: errs}
	}

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(strings.NewReader(string(data))); err != nil {
		return nil, &ConfigError{Msg: "invalid JSON: " + err.Error()}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Msg: "cannot decode config: " + err.Error()}
	}

	if err := validate(&cfg, registry); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("council.timeout", defaultCouncilTimeoutSeconds)
	v.SetDefault("peasant.timeout", defaultPeasantTimeoutSeconds)
	v.SetDefault("peasant.max_iterations", defaultPeasantMaxIterations)
}
