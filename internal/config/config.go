package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

const (
	TenantModeNone     = "none"
	TenantModeLabel    = "label"
	TenantModeProperty = "property"

	TransformIdentity = "identity"
	TransformInt      = "int"
	TransformFloat    = "float"
	TransformBool     = "bool"
	TransformString   = "string"
	TransformDrop     = "drop"

	DefaultBatchSize   = 1000
	DefaultSampleSize  = 1000
	DefaultConcurrency = 1
)

// PropertyRule maps one source property key. An empty Target keeps the key,
// an empty Transform passes the value through unchanged.
type PropertyRule struct {
	Target    string `toml:"target,omitempty"`
	Transform string `toml:"transform,omitempty" validate:"omitempty,oneof=identity int float bool string drop"`
	Fallback  string `toml:"fallback,omitempty"`
}

// ScopeMapping covers one source label or relationship type.
type ScopeMapping struct {
	Target     string                  `toml:"target,omitempty"`
	Skip       bool                    `toml:"skip,omitempty"`
	Properties map[string]PropertyRule `toml:"properties,omitempty" validate:"dive"`
}

type TenantConfig struct {
	Mode   string `toml:"mode,omitempty" validate:"omitempty,oneof=none label property"`
	Filter string `toml:"filter,omitempty"`
}

type AnalysisConfig struct {
	SampleSize int `toml:"sample_size,omitempty" validate:"gte=0"`
}

type BatchConfig struct {
	Size        int `toml:"size,omitempty" validate:"gte=0"`
	Concurrency int `toml:"concurrency,omitempty" validate:"gte=0"`
}

// Config is the immutable migration mapping for one run.
type Config struct {
	Tenant        TenantConfig            `toml:"tenant,omitempty"`
	Analysis      AnalysisConfig          `toml:"analysis,omitempty"`
	Batch         BatchConfig             `toml:"batch,omitempty"`
	Labels        map[string]ScopeMapping `toml:"labels,omitempty" validate:"dive"`
	Relationships map[string]ScopeMapping `toml:"relationships,omitempty" validate:"dive"`
}

// ValidationError names the scope and key that made the document unusable.
type ValidationError struct {
	Scope  string
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("invalid config: %s in %s.%s", e.Reason, e.Scope, e.Key)
	}
	return fmt.Sprintf("invalid config: %s in %s", e.Reason, e.Scope)
}

// Default returns the identity configuration used when no document is given:
// everything passes through unchanged, no tenant partitioning.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load parses and validates a TOML migration config. Validation is
// all-or-nothing: an invalid document is never partially applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Tenant.Mode == "" {
		c.Tenant.Mode = TenantModeNone
	}
	if c.Analysis.SampleSize == 0 {
		c.Analysis.SampleSize = DefaultSampleSize
	}
	if c.Batch.Size == 0 {
		c.Batch.Size = DefaultBatchSize
	}
	if c.Batch.Concurrency == 0 {
		c.Batch.Concurrency = DefaultConcurrency
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return &ValidationError{Scope: "document", Reason: err.Error()}
	}

	if c.Tenant.Mode != TenantModeNone && c.Tenant.Filter == "" {
		return &ValidationError{Scope: "tenant", Key: "filter",
			Reason: fmt.Sprintf("filter is required when tenant mode is %q", c.Tenant.Mode)}
	}

	if err := checkRenames("labels", c.Labels); err != nil {
		return err
	}
	return checkRenames("relationships", c.Relationships)
}

// checkRenames enforces that renamed keys stay unique within their scope.
func checkRenames(kind string, scopes map[string]ScopeMapping) error {
	for scope, mapping := range scopes {
		seen := make(map[string]string, len(mapping.Properties))
		for key, rule := range mapping.Properties {
			if rule.Transform == TransformDrop {
				continue
			}
			final := rule.Target
			if final == "" {
				final = key
			}
			if prev, dup := seen[final]; dup {
				return &ValidationError{
					Scope:  fmt.Sprintf("%s.%s", kind, scope),
					Key:    key,
					Reason: fmt.Sprintf("renamed key %q collides with %q", final, prev),
				}
			}
			seen[final] = key
		}
	}
	return nil
}

// LabelTarget resolves the target label for a source label.
func (c *Config) LabelTarget(label string) string {
	if m, ok := c.Labels[label]; ok && m.Target != "" {
		return m.Target
	}
	return label
}

// TypeTarget resolves the target relationship type for a source type.
func (c *Config) TypeTarget(relType string) string {
	if m, ok := c.Relationships[relType]; ok && m.Target != "" {
		return m.Target
	}
	return relType
}

func (c *Config) SkipLabel(label string) bool {
	m, ok := c.Labels[label]
	return ok && m.Skip
}

func (c *Config) SkipType(relType string) bool {
	m, ok := c.Relationships[relType]
	return ok && m.Skip
}

// LabelRules returns the property rules for a label, nil when unconfigured.
func (c *Config) LabelRules(label string) map[string]PropertyRule {
	return c.Labels[label].Properties
}

func (c *Config) TypeRules(relType string) map[string]PropertyRule {
	return c.Relationships[relType].Properties
}
