// Package settings loads the seed file that populates the in-memory stores
// at startup.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/replybot/app/blacklist"
	"github.com/lysyi3m/replybot/app/reply"
)

type Settings struct {
	Instructions string            `yaml:"instructions"`
	PersonaNames []string          `yaml:"persona_names"`
	Presets      []reply.Preset    `yaml:"presets"`
	Blacklist    []blacklist.Entry `yaml:"blacklist"`
}

// Stores is the set of mutable stores shared by the API and the triage passes.
type Stores struct {
	Blacklist    *blacklist.Registry
	Presets      *reply.Presets
	Instructions *reply.Instructions
}

// Load reads the seed file. A missing file yields the default preset table.
// Omitting the presets key also keeps the defaults; an explicit empty list
// starts with no presets.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("Settings file not found, using defaults", "path", path)
		return &Settings{Presets: reply.DefaultPresets()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if s.Presets == nil {
		s.Presets = reply.DefaultPresets()
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}

	slog.Debug("Settings loaded", "path", path, "presets", len(s.Presets), "blacklist", len(s.Blacklist), "persona_names", len(s.PersonaNames))
	return &s, nil
}

func (s *Settings) validate() error {
	for i, p := range s.Presets {
		if !p.Valid() {
			return fmt.Errorf("preset at index %d: %w", i, reply.ErrEmptyPreset)
		}
	}
	for i, e := range s.Blacklist {
		if e.Blank() {
			return fmt.Errorf("blacklist entry at index %d: %w", i, blacklist.ErrEmptyEntry)
		}
	}
	return nil
}

// Stores builds fresh stores seeded from the settings.
func (s *Settings) Stores() (*Stores, error) {
	registry, err := blacklist.NewRegistry(s.Blacklist...)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Blacklist:    registry,
		Presets:      reply.NewPresets(s.Presets...),
		Instructions: reply.NewInstructions(s.Instructions),
	}, nil
}
