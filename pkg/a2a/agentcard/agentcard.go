// Package agentcard builds and publishes the agent's capability card.
package agentcard

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/foodscout/foodscout/pkg/a2a"
)

// A2AProtocolVersion is the task-protocol revision the card declares.
const A2AProtocolVersion = "0.3.0"

// Config describes card fields derived from runtime settings.
type Config struct {
	Name        string
	Description string
	URL         string
	Version     string
	Streaming   bool
	BearerAuth  bool
	Skills      []a2a.AgentSkill
}

// Build assembles the card from the provided config. The card is
// constructed once at startup and never mutated.
func Build(cfg Config) *a2a.AgentCard {
	card := &a2a.AgentCard{
		ProtocolVersion:    A2AProtocolVersion,
		Name:               cfg.Name,
		Description:        cfg.Description,
		URL:                cfg.URL,
		Version:            cfg.Version,
		Capabilities:       a2a.AgentCapabilities{Streaming: cfg.Streaming},
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Skills:             cfg.Skills,
	}
	if cfg.BearerAuth {
		card.SecuritySchemes = map[string]any{
			"bearer": map[string]string{"type": "http", "scheme": "bearer"},
		}
		card.Security = []map[string][]string{{"bearer": {}}}
	}
	return card
}

// DefaultSkills is the built-in skill catalog, used when no skills
// file is configured.
func DefaultSkills() []a2a.AgentSkill {
	return []a2a.AgentSkill{
		{
			ID:          "product-lookup",
			Name:        "Product lookup",
			Description: "Look up a food product by barcode and report its ingredients, nutrition facts, Nutri-Score and NOVA group.",
			Tags:        []string{"food", "barcode", "nutrition"},
			Examples:    []string{"What is in the product with barcode 3017620422003?"},
		},
		{
			ID:          "product-search",
			Name:        "Product search",
			Description: "Search the food catalog by keywords or browse a category.",
			Tags:        []string{"food", "search"},
			Examples:    []string{"Find me some breakfast cereals without palm oil."},
		},
		{
			ID:          "product-comparison",
			Name:        "Product comparison",
			Description: "Compare two or more products side by side on their nutritional profile.",
			Tags:        []string{"food", "nutrition", "comparison"},
			Examples:    []string{"Compare 3017620422003 and 737628064502."},
		},
		{
			ID:          "allergen-check",
			Name:        "Allergen check",
			Description: "Report declared allergens and possible traces for a product.",
			Tags:        []string{"food", "allergens", "safety"},
			Examples:    []string{"Does barcode 3017620422003 contain nuts?"},
		},
	}
}

// LoadSkills reads a YAML skill catalog. The file holds a top-level
// "skills" list mirroring the AgentSkill shape.
func LoadSkills(path string) ([]a2a.AgentSkill, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skills file: %w", err)
	}
	var doc struct {
		Skills []struct {
			ID          string   `yaml:"id"`
			Name        string   `yaml:"name"`
			Description string   `yaml:"description"`
			Tags        []string `yaml:"tags"`
			Examples    []string `yaml:"examples"`
		} `yaml:"skills"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse skills file: %w", err)
	}
	if len(doc.Skills) == 0 {
		return nil, fmt.Errorf("skills file %s declares no skills", path)
	}

	out := make([]a2a.AgentSkill, 0, len(doc.Skills))
	for _, s := range doc.Skills {
		if s.ID == "" || s.Name == "" {
			return nil, fmt.Errorf("skills file %s: every skill needs an id and a name", path)
		}
		out = append(out, a2a.AgentSkill{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Tags:        s.Tags,
			Examples:    s.Examples,
		})
	}
	return out, nil
}
