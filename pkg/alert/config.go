package alert

import "fmt"

// Config holds the alert rules.
type Config struct {
	// Rules are evaluated in addition to the built-in rules.
	Rules []*Rule `json:"rules,omitempty" jsonschema:"title=Rules"`
	// DisableDefaults turns off the built-in rules.
	DisableDefaults bool `json:"disableDefaults,omitempty" jsonschema:"title=Disable Defaults"`
}

// NewConfig returns an empty [Config].
func NewConfig() *Config {
	return &Config{}
}

// EnsureDefaults is a no-op; the built-in rules are added by [Config.All].
func (c *Config) EnsureDefaults() {}

// Compile compiles every configured rule.
func (c *Config) Compile() error {
	for i, r := range c.Rules {
		err := r.Compile()
		if err != nil {
			return fmt.Errorf("rules[%d] %q: %w", i, r.Name, err)
		}
	}

	return nil
}

// All returns the built-in rules, unless disabled, followed by the
// configured rules.
func (c *Config) All() []*Rule {
	var rules []*Rule
	if !c.DisableDefaults {
		rules = append(rules, DefaultRules()...)
	}

	return append(rules, c.Rules...)
}
