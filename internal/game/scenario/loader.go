// Package scenario loads battle set-ups (grid layout and rosters) from YAML.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/battlegrid/internal/game/character"
	"github.com/cory-johannsen/battlegrid/internal/game/grid"
)

// Scenario is a loaded battle set-up ready to hand to a battle.Controller.
type Scenario struct {
	ID   string
	Name string
	Grid *grid.Grid
}

// yamlFile is the top-level YAML structure for scenario files.
type yamlFile struct {
	Scenario yamlScenario `yaml:"scenario"`
}

type yamlScenario struct {
	ID        string          `yaml:"id"`
	Name      string          `yaml:"name"`
	Grid      []string        `yaml:"grid"`
	Players   []yamlCharacter `yaml:"players"`
	Opponents []yamlCharacter `yaml:"opponents"`
}

type yamlCharacter struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Titles    []string `yaml:"titles"`
	Level     int      `yaml:"level"`
	Health    int      `yaml:"health"`
	MaxHealth int      `yaml:"max_health"`
	Attack    int      `yaml:"attack"`
	Shield    int      `yaml:"shield"`
	Agility   int      `yaml:"agility"`
	Statuses  []string `yaml:"statuses"`
	Equipment []string `yaml:"equipment"`
	NoCorpse  bool     `yaml:"no_corpse"`
}

// Load reads and validates a scenario YAML file.
//
// Precondition: path must point to a scenario YAML file.
// Postcondition: Returns a Scenario with a validated Grid or a non-nil error.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading scenario %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a scenario from YAML bytes.
//
// Postcondition: Returns a Scenario with a validated Grid or a non-nil error.
func Parse(data []byte) (*Scenario, error) {
	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}
	ys := file.Scenario
	if ys.ID == "" {
		return nil, errors.New("scenario id must not be empty")
	}
	if len(ys.Grid) == 0 {
		return nil, fmt.Errorf("scenario %q has no grid rows", ys.ID)
	}

	players, err := buildRoster(ys.Players)
	if err != nil {
		return nil, fmt.Errorf("scenario %q players: %w", ys.ID, err)
	}
	opponents, err := buildRoster(ys.Opponents)
	if err != nil {
		return nil, fmt.Errorf("scenario %q opponents: %w", ys.ID, err)
	}

	rows := make([][]string, len(ys.Grid))
	for i, line := range ys.Grid {
		rows[i] = strings.Fields(line)
	}
	g, err := grid.New(rows, players, opponents)
	if err != nil {
		return nil, fmt.Errorf("scenario %q grid: %w", ys.ID, err)
	}

	name := ys.Name
	if name == "" {
		name = ys.ID
	}
	return &Scenario{ID: ys.ID, Name: name, Grid: g}, nil
}

func buildRoster(entries []yamlCharacter) ([]*character.Character, error) {
	out := make([]*character.Character, 0, len(entries))
	for _, e := range entries {
		c, err := character.New(e.ID, e.Name, character.Stats{
			Titles:    e.Titles,
			Level:     e.Level,
			Health:    e.Health,
			MaxHealth: e.MaxHealth,
			Attack:    e.Attack,
			Shield:    e.Shield,
			Agility:   e.Agility,
			Statuses:  e.Statuses,
			Equipment: e.Equipment,
			NoCorpse:  e.NoCorpse,
		})
		if err != nil {
			return nil, fmt.Errorf("character %q: %w", e.ID, err)
		}
		out = append(out, c)
	}
	return out, nil
}
