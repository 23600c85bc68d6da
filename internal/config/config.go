package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models wishline.yml.
type Config struct {
	Allocation struct {
		// CycleDays is the default period length for a cycle.
		CycleDays int `yaml:"cycle_days"`
	} `yaml:"allocation"`
	Rankings struct {
		Limit int `yaml:"limit"`
	} `yaml:"rankings"`
	// Categories is the seed catalog loaded by `wishline category seed`.
	Categories []SeedCategory `yaml:"categories"`
}

type SeedCategory struct {
	Name               string `yaml:"name"`
	Description        string `yaml:"description"`
	IsAdult            bool   `yaml:"is_adult"`
	MaxWishesPerPeriod int    `yaml:"max_wishes_per_period"`
	MinDaysToComplete  int    `yaml:"min_days_to_complete"`
	MaxDaysToComplete  int    `yaml:"max_days_to_complete"`
}

// Default returns the built-in configuration, including the starter
// category catalog used by `wishline category seed`.
func Default() *Config {
	c := &Config{}
	c.Allocation.CycleDays = 30
	c.Rankings.Limit = 100
	c.Categories = []SeedCategory{
		{Name: "romantic", Description: "Dates, surprises and gestures", MaxWishesPerPeriod: 3, MinDaysToComplete: 1, MaxDaysToComplete: 30},
		{Name: "household", Description: "Chores and home projects", MaxWishesPerPeriod: 5, MinDaysToComplete: 1, MaxDaysToComplete: 14},
		{Name: "wellness", Description: "Health, sport and self-care", MaxWishesPerPeriod: 3, MinDaysToComplete: 1, MaxDaysToComplete: 21},
		{Name: "intimate", Description: "Adults only", IsAdult: true, MaxWishesPerPeriod: 2, MinDaysToComplete: 1, MaxDaysToComplete: 30},
	}
	return c
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with wishline config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Allocation.CycleDays == 0 {
		cfg.Allocation.CycleDays = 30
	}
	if cfg.Rankings.Limit == 0 {
		cfg.Rankings.Limit = 100
	}
	return &cfg, cfg.Validate()
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Allocation.CycleDays < 1 {
		return fmt.Errorf("config.allocation.cycle_days must be >= 1")
	}
	if c.Rankings.Limit < 1 {
		return fmt.Errorf("config.rankings.limit must be >= 1")
	}
	seen := map[string]bool{}
	for _, sc := range c.Categories {
		if sc.Name == "" {
			return fmt.Errorf("config.categories contains category with empty name")
		}
		if seen[sc.Name] {
			return fmt.Errorf("config.categories contains duplicate category %s", sc.Name)
		}
		seen[sc.Name] = true
		if sc.MaxWishesPerPeriod < 1 {
			return fmt.Errorf("category %s: max_wishes_per_period must be >= 1", sc.Name)
		}
		if sc.MinDaysToComplete < 1 || sc.MaxDaysToComplete < 1 {
			return fmt.Errorf("category %s: completion day bounds must be >= 1", sc.Name)
		}
		if sc.MinDaysToComplete > sc.MaxDaysToComplete {
			return fmt.Errorf("category %s: min_days_to_complete exceeds max_days_to_complete", sc.Name)
		}
	}
	return nil
}

// ToYAML serializes the config.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "wishline.yml")
}
