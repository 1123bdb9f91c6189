// Package configs provides the Configuration type for rulelimits.
package configs

import (
	"fmt"

	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/macropower/rulelimits/api"
	"github.com/macropower/rulelimits/api/v1beta1"
	"github.com/macropower/rulelimits/pkg/alert"
	"github.com/macropower/rulelimits/pkg/filter"
	"github.com/macropower/rulelimits/pkg/host"
	"github.com/macropower/rulelimits/pkg/kv"
	"github.com/macropower/rulelimits/pkg/yaml"
)

//go:generate go run ../../../internal/schemagen/main.go -o configs.v1beta1.json

// Kind is the kind of a [Config] document.
const Kind = "Configuration"

var (
	//go:embed config.yaml
	defaultConfigYAML []byte

	//go:embed configs.v1beta1.json
	schemaJSON []byte

	// ValidKinds contains the valid kind values for configurations.
	ValidKinds = []string{Kind}

	// DefaultValidator validates configuration against the JSON schema.
	DefaultValidator = yaml.MustNewValidator("/configs.v1beta1.json", schemaJSON)

	// Compile-time interface checks.
	_ v1beta1.Object = (*Config)(nil)
)

// Config represents the rulelimits configuration.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type Config struct {
	// Limits overrides the platform ceilings of the rule engine.
	Limits *host.Limits `json:"limits,omitempty" jsonschema:"title=Limits"`
	// Filters describes the filter catalog.
	Filters *filter.Config `json:"filters,omitempty" jsonschema:"title=Filters"`
	// Storage configures where divergence records and filter state live.
	Storage *kv.Config `json:"storage,omitempty" jsonschema:"title=Storage"`
	// Host configures where the rule engine state is read from.
	Host *host.Config `json:"host,omitempty" jsonschema:"title=Host"`
	// Alerts configures the alert rules evaluated against each snapshot.
	Alerts           *alert.Config `json:"alerts,omitempty" jsonschema:"title=Alerts"`
	v1beta1.TypeMeta `json:",inline"`
}

// New creates a new [Config] with default values.
func New() *Config {
	c := &Config{
		TypeMeta: v1beta1.TypeMeta{
			APIVersion: v1beta1.APIVersion,
			Kind:       Kind,
		},
	}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults initializes nil fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.Limits == nil {
		l := host.DefaultLimits()
		c.Limits = &l
	} else {
		l := c.Limits.WithDefaults()
		c.Limits = &l
	}

	if c.Filters == nil {
		c.Filters = filter.NewConfig()
	} else {
		c.Filters.EnsureDefaults()
	}

	if c.Storage == nil {
		c.Storage = kv.NewConfig()
	} else {
		c.Storage.EnsureDefaults()
	}

	if c.Host == nil {
		c.Host = host.NewConfig()
	} else {
		c.Host.EnsureDefaults()
	}

	if c.Alerts == nil {
		c.Alerts = alert.NewConfig()
	} else {
		c.Alerts.EnsureDefaults()
	}
}

// Validate validates the configuration and compiles its alert rules.
func (c *Config) Validate() error {
	err := c.TypeMeta.Check(ValidKinds...)
	if err != nil {
		return fmt.Errorf("validate type: %w", err)
	}

	if c.Filters != nil {
		err = c.Filters.Validate()
		if err != nil {
			return fmt.Errorf("validate filters: %w", err)
		}
	}

	if c.Alerts != nil {
		err = c.Alerts.Compile()
		if err != nil {
			return fmt.Errorf("validate alerts: %w", err)
		}
	}

	return nil
}

func (c Config) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, ValidKinds)
}

// MarshalYAML serializes the config to YAML.
func (c Config) MarshalYAML() ([]byte, error) {
	type alias Config

	b, err := api.MarshalYAML(alias(c))
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return b, nil
}

// WriteDefault writes the embedded default config.yaml to the specified path.
func WriteDefault(path string, force bool) error {
	err := api.WriteDefaultFile(path, defaultConfigYAML, force, "configuration")
	if err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	return nil
}

// GetPath returns the path to the configuration file.
func GetPath() string {
	return api.GetConfigPath("config.yaml")
}
