package host

import "github.com/macropower/rulelimits/api"

// Config selects where host state is read from.
type Config struct {
	// StatePath is the YAML file holding the rule engine state.
	StatePath string `json:"statePath,omitempty" jsonschema:"title=State Path"`
}

// NewConfig returns a [Config] with default values.
func NewConfig() *Config {
	c := &Config{}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults sets unset fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.StatePath == "" {
		c.StatePath = api.GetStatePath("host.yaml")
	}
}
