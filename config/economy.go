package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"
)

//go:embed economy.yaml
var defaultEconomy []byte

// Source families that carry a diminishing-returns tier table.
const (
	FamilyPrimary   = "primary"
	FamilySecondary = "secondary"
)

// Economy is the static catalog: action sources, tier tables, level titles,
// rewards and achievements.
type Economy struct {
	Sources      []SourceConfig      `yaml:"sources"`
	Diminishing  DiminishingConfig   `yaml:"diminishing"`
	Levels       LevelConfig         `yaml:"levels"`
	Rewards      []RewardConfig      `yaml:"rewards"`
	Achievements []AchievementConfig `yaml:"achievements"`
	Milestones   []string            `yaml:"milestones"`
}

// SourceConfig maps an action kind (as reported by the collaborator) to a
// ledger source tag and base amount.
type SourceConfig struct {
	Kind       string `yaml:"kind"`
	Tag        string `yaml:"tag"`
	BaseAmount int64  `yaml:"base_amount"`
	Family     string `yaml:"family"`
}

type TierConfig struct {
	MinCount   int64   `yaml:"min_count"`
	Multiplier float64 `yaml:"multiplier"`
}

type DiminishingConfig struct {
	Primary   []TierConfig `yaml:"primary"`
	Secondary []TierConfig `yaml:"secondary"`
}

type LevelConfig struct {
	Titles   []string `yaml:"titles"`
	Fallback string   `yaml:"fallback"`
}

type RewardConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	Value       string `yaml:"value"`
	Active      *bool  `yaml:"active"`
}

type AchievementConfig struct {
	ID            string         `yaml:"id"`
	Name          string         `yaml:"name"`
	Description   string         `yaml:"description"`
	Type          string         `yaml:"type"`
	EssenceReward int64          `yaml:"essence_reward"`
	Rewards       []string       `yaml:"rewards"`
	Criteria      CriteriaConfig `yaml:"criteria"`
	Active        *bool          `yaml:"active"`
}

// CriteriaConfig is the serialized form of an unlock predicate.
type CriteriaConfig struct {
	Kind      string `yaml:"kind"`
	Source    string `yaml:"source"`
	Threshold int64  `yaml:"threshold"`
}

func (r RewardConfig) IsActive() bool      { return r.Active == nil || *r.Active }
func (a AchievementConfig) IsActive() bool { return a.Active == nil || *a.Active }

// LoadEconomy reads the catalog at path, or the embedded default when path is empty.
func LoadEconomy(path string) (*Economy, error) {
	raw := defaultEconomy
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read economy file: %w", err)
		}
		raw = b
	}
	return ParseEconomy(raw)
}

// ParseEconomy decodes and validates a YAML catalog.
func ParseEconomy(raw []byte) (*Economy, error) {
	var e Economy
	if err := yaml.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode economy: %w", err)
	}
	e.normalize()
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// catalogID derives a stable id from a display name ("Bronze Border" -> "bronze_border").
func catalogID(name string) string {
	return strings.ReplaceAll(slug.Make(name), "-", "_")
}

func (e *Economy) normalize() {
	for i := range e.Rewards {
		if e.Rewards[i].ID == "" {
			e.Rewards[i].ID = catalogID(e.Rewards[i].Name)
		}
		e.Rewards[i].Type = strings.ToUpper(strings.TrimSpace(e.Rewards[i].Type))
	}
	for i := range e.Achievements {
		if e.Achievements[i].ID == "" {
			e.Achievements[i].ID = catalogID(e.Achievements[i].Name)
		}
		e.Achievements[i].Type = strings.ToUpper(strings.TrimSpace(e.Achievements[i].Type))
		e.Achievements[i].Criteria.Kind = strings.ToLower(strings.TrimSpace(e.Achievements[i].Criteria.Kind))
	}
}

// Validate checks structural consistency. Criteria kinds are checked later,
// when the criteria registry is built.
func (e *Economy) Validate() error {
	kinds := make(map[string]bool, len(e.Sources))
	for _, s := range e.Sources {
		if s.Kind == "" || s.Tag == "" {
			return fmt.Errorf("economy: source needs kind and tag (got kind=%q tag=%q)", s.Kind, s.Tag)
		}
		if kinds[s.Kind] {
			return fmt.Errorf("economy: duplicate source kind %q", s.Kind)
		}
		kinds[s.Kind] = true
		if s.BaseAmount < 0 {
			return fmt.Errorf("economy: source %q has negative base amount", s.Kind)
		}
		switch s.Family {
		case "", FamilyPrimary, FamilySecondary:
		default:
			return fmt.Errorf("economy: source %q has unknown family %q", s.Kind, s.Family)
		}
	}

	if len(e.Levels.Titles) == 0 {
		return fmt.Errorf("economy: at least one level title is required")
	}
	if e.Levels.Fallback == "" {
		return fmt.Errorf("economy: levels.fallback is required")
	}

	rewards := make(map[string]bool, len(e.Rewards))
	for _, r := range e.Rewards {
		if r.ID == "" {
			return fmt.Errorf("economy: reward without id or name")
		}
		if rewards[r.ID] {
			return fmt.Errorf("economy: duplicate reward id %q", r.ID)
		}
		rewards[r.ID] = true
	}

	achievements := make(map[string]bool, len(e.Achievements))
	for _, a := range e.Achievements {
		if a.ID == "" {
			return fmt.Errorf("economy: achievement without id or name")
		}
		if achievements[a.ID] {
			return fmt.Errorf("economy: duplicate achievement id %q", a.ID)
		}
		achievements[a.ID] = true
		for _, rid := range a.Rewards {
			if !rewards[rid] {
				return fmt.Errorf("economy: achievement %q links unknown reward %q", a.ID, rid)
			}
		}
	}

	for _, id := range e.Milestones {
		if !achievements[id] {
			return fmt.Errorf("economy: milestone %q is not a known achievement", id)
		}
	}
	return nil
}

// SourceByKind returns the source mapping for an action kind.
func (e *Economy) SourceByKind(kind string) (SourceConfig, bool) {
	for _, s := range e.Sources {
		if s.Kind == kind {
			return s, true
		}
	}
	return SourceConfig{}, false
}
