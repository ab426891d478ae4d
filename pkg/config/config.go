// Package config loads the session-level configuration that drives a
// boardroom run: which agents sit on the panel, how sharp their
// questioning is, what the presenter's focus areas are, and how long
// the session is expected to run.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lokutor-ai/boardroom-runtime/pkg/agent"
)

// AgentConfig selects one panelist and its questioning posture.
type AgentConfig struct {
	PersonaID string `yaml:"persona_id"`
	Intensity string `yaml:"intensity"`
}

// Config is the full session configuration, loaded once at session
// start. Field names and defaults match SPEC_FULL.md §6's config table.
type Config struct {
	InteractionMode  string         `yaml:"interaction_mode"`
	Intensity        string         `yaml:"intensity"`
	Agents           []AgentConfig  `yaml:"agents"`
	FocusAreas       []string       `yaml:"focus_areas"`
	DurationSecs     float64        `yaml:"duration_secs"`
	AgentWarmupWords int            `yaml:"agent_warmup_words"`
}

// Default returns the config used when no file is supplied: a
// moderate, three-panelist, 30-minute (1800s) session.
func Default() Config {
	return Config{
		InteractionMode: "reactive",
		Intensity:       "moderate",
		Agents: []AgentConfig{
			{PersonaID: "skeptic", Intensity: "moderate"},
			{PersonaID: "analyst", Intensity: "moderate"},
			{PersonaID: "contrarian", Intensity: "moderate"},
		},
		DurationSecs:     1800,
		AgentWarmupWords: 50,
	}
}

// Load reads a YAML session config from path, filling any unset fields
// from Default(). An empty path returns Default() unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading session config: %w", err)
	}

	// Decode into a fresh zero-value so we can tell which top-level
	// fields the file actually set, then overlay only those onto the
	// defaults rather than clobbering them with YAML's zero values.
	var fromFile Config
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return Config{}, fmt.Errorf("parsing session config: %w", err)
	}

	if fromFile.InteractionMode != "" {
		cfg.InteractionMode = fromFile.InteractionMode
	}
	if fromFile.Intensity != "" {
		cfg.Intensity = fromFile.Intensity
	}
	if len(fromFile.Agents) > 0 {
		cfg.Agents = fromFile.Agents
	}
	if len(fromFile.FocusAreas) > 0 {
		cfg.FocusAreas = fromFile.FocusAreas
	}
	if fromFile.DurationSecs > 0 {
		cfg.DurationSecs = fromFile.DurationSecs
	}
	if fromFile.AgentWarmupWords > 0 {
		cfg.AgentWarmupWords = fromFile.AgentWarmupWords
	}

	return cfg, nil
}

// ResolveIntensity maps an agent's configured intensity string (falling
// back to the session-level default) to agent.Intensity.
func (c Config) ResolveIntensity(a AgentConfig) agent.Intensity {
	s := a.Intensity
	if s == "" {
		s = c.Intensity
	}
	switch s {
	case string(agent.IntensityFriendly):
		return agent.IntensityFriendly
	case string(agent.IntensityAdversarial):
		return agent.IntensityAdversarial
	default:
		return agent.IntensityModerate
	}
}
