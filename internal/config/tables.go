package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
)

type zoneAliasFile struct {
	Version string            `yaml:"version"`
	Aliases map[string]string `yaml:"aliases"`
}

type dangerScaleFile struct {
	Version string         `yaml:"version"`
	Scale   map[string]int `yaml:"scale"`
}

// LoadTables reads and validates the zone alias and danger scale tables
// named by cfg. Every alias target must be a known canonical zone and
// every scale value must be on the 0-5 ordinal; violations fail the
// load, since a bad table corrupts every record systematically.
func LoadTables(cfg *Config) (domain.Tables, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return domain.Tables{}, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	var zones zoneAliasFile
	if err := readYAML(cfg.ZoneAliasPath, &zones); err != nil {
		return domain.Tables{}, fmt.Errorf("zone alias table: %w", err)
	}
	if len(zones.Aliases) == 0 {
		return domain.Tables{}, fmt.Errorf("zone alias table %s: no aliases", cfg.ZoneAliasPath)
	}

	aliases := make(map[string]domain.Zone, len(zones.Aliases))
	for raw, target := range zones.Aliases {
		zone := domain.Zone(target)
		if !zone.IsValid() {
			return domain.Tables{}, fmt.Errorf("zone alias table %s: alias %q targets unknown zone %q", cfg.ZoneAliasPath, raw, target)
		}
		key := domain.AliasKey(raw)
		if existing, ok := aliases[key]; ok && existing != zone {
			return domain.Tables{}, fmt.Errorf("zone alias table %s: alias %q maps to both %q and %q", cfg.ZoneAliasPath, raw, existing, zone)
		}
		aliases[key] = zone
	}

	var scale dangerScaleFile
	if err := readYAML(cfg.DangerScalePath, &scale); err != nil {
		return domain.Tables{}, fmt.Errorf("danger scale table: %w", err)
	}
	if len(scale.Scale) == 0 {
		return domain.Tables{}, fmt.Errorf("danger scale table %s: no entries", cfg.DangerScalePath)
	}

	ratings := make(map[string]int, len(scale.Scale))
	for raw, value := range scale.Scale {
		if value < domain.DangerNone || value > domain.DangerMax {
			return domain.Tables{}, fmt.Errorf("danger scale table %s: %q maps to %d, outside 0-5", cfg.DangerScalePath, raw, value)
		}
		key := domain.AliasKey(raw)
		if existing, ok := ratings[key]; ok && existing != value {
			return domain.Tables{}, fmt.Errorf("danger scale table %s: %q maps to both %d and %d", cfg.DangerScalePath, raw, existing, value)
		}
		ratings[key] = value
	}

	return domain.Tables{
		ZoneAliases:  aliases,
		ZoneVersion:  zones.Version,
		DangerScale:  ratings,
		ScaleVersion: scale.Version,
		DateLayouts:  cfg.DateLayouts,
		Location:     loc,
	}, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
