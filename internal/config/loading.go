package config

import "time"

// LoadingConfig configures the loading orchestrator: the shared per-step
// display floor, the fallback check timeout, the animation cadence, and
// per-condition tweaks. Durations are strings ("1200ms", "2s") so the yaml
// stays human-editable; the Get* accessors parse with safe fallbacks.
type LoadingConfig struct {
	// MinStepDisplay is the floor duration each step is shown regardless
	// of how fast its check resolves.
	MinStepDisplay string `yaml:"min_step_display"`

	// DefaultCheckTimeout applies to conditions without their own timeout.
	DefaultCheckTimeout string `yaml:"default_check_timeout"`

	// TickInterval is the progress animation cadence.
	TickInterval string `yaml:"tick_interval"`

	// Timeouts maps condition IDs to per-condition timeout overrides.
	Timeouts map[string]string `yaml:"timeouts,omitempty"`

	// Disabled lists condition IDs to skip entirely.
	Disabled []string `yaml:"disabled,omitempty"`
}

// DefaultLoadingConfig returns sensible loading defaults, matching the
// canonical four-condition sequence.
func DefaultLoadingConfig() LoadingConfig {
	return LoadingConfig{
		MinStepDisplay:      "1200ms",
		DefaultCheckTimeout: "2s",
		TickInterval:        "16ms",
	}
}

// GetMinStepDisplay returns the per-step display floor as a duration.
func (c *LoadingConfig) GetMinStepDisplay() time.Duration {
	d, err := time.ParseDuration(c.MinStepDisplay)
	if err != nil {
		return 1200 * time.Millisecond
	}
	return d
}

// GetDefaultCheckTimeout returns the fallback check timeout as a duration.
func (c *LoadingConfig) GetDefaultCheckTimeout() time.Duration {
	d, err := time.ParseDuration(c.DefaultCheckTimeout)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetTickInterval returns the animation cadence as a duration.
func (c *LoadingConfig) GetTickInterval() time.Duration {
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		return 16 * time.Millisecond
	}
	return d
}

// GetTimeout returns the timeout override for a condition ID, or zero when
// none is configured (the orchestrator then falls back to the default).
func (c *LoadingConfig) GetTimeout(conditionID string) time.Duration {
	if c.Timeouts == nil {
		return 0
	}
	v, ok := c.Timeouts[conditionID]
	if !ok {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

// IsDisabled reports whether a condition ID is configured off.
func (c *LoadingConfig) IsDisabled(conditionID string) bool {
	for _, id := range c.Disabled {
		if id == conditionID {
			return true
		}
	}
	return false
}
