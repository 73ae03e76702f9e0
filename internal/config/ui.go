package config

// UIConfig holds user interface configuration.
type UIConfig struct {
	// Theme selects the color scheme: "light", "dark", or "auto".
	Theme string `yaml:"theme"`

	// ReducedMotion disables the spinner and the smooth progress
	// animation; the loader then only updates on step boundaries.
	ReducedMotion bool `yaml:"reduced_motion"`

	// ThemeFile, when set, is watched for changes so a theme swap can
	// restart the loading sequence. Relative to the workspace.
	ThemeFile string `yaml:"theme_file,omitempty"`
}

// DefaultUIConfig returns sensible UI defaults.
func DefaultUIConfig() UIConfig {
	return UIConfig{
		Theme:         "auto",
		ReducedMotion: false,
	}
}

// KnownTheme reports whether the configured theme name is one Fumo can
// resolve.
func (c *UIConfig) KnownTheme() bool {
	switch c.Theme {
	case "light", "dark", "auto":
		return true
	}
	return false
}
