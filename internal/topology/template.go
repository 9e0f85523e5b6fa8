package topology

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/graphport/graphport/internal/config"
)

// Template seeds a migration config from the summary: identity mappings for
// every discovered label, type and property, with empty transformation rules
// for the operator to fill in.
func (s *Summary) Template() *config.Config {
	cfg := config.Default()
	cfg.Labels = make(map[string]config.ScopeMapping, len(s.Labels))
	cfg.Relationships = make(map[string]config.ScopeMapping, len(s.RelationshipTypes))

	for _, label := range s.Labels {
		mapping := config.ScopeMapping{
			Target:     label,
			Properties: make(map[string]config.PropertyRule, len(s.LabelKeys[label])),
		}
		for _, key := range s.LabelKeys[label] {
			mapping.Properties[key] = config.PropertyRule{Target: key}
		}
		cfg.Labels[label] = mapping
	}

	for _, relType := range s.RelationshipTypes {
		mapping := config.ScopeMapping{
			Target:     relType,
			Properties: make(map[string]config.PropertyRule, len(s.TypeKeys[relType])),
		}
		for _, key := range s.TypeKeys[relType] {
			mapping.Properties[key] = config.PropertyRule{Target: key}
		}
		cfg.Relationships[relType] = mapping
	}

	return cfg
}

// WriteTemplate serializes the template config as TOML.
func (s *Summary) WriteTemplate(path string) error {
	data, err := toml.Marshal(s.Template())
	if err != nil {
		return fmt.Errorf("failed to serialize template: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write template '%s': %w", path, err)
	}
	return nil
}
