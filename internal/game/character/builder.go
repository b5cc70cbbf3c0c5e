package character

import (
	"errors"
	"fmt"
)

// IDWidth is the number of characters an ID occupies inside a packed tile record.
const IDWidth = 2

// Stats are the starting values a character is built from at army setup.
type Stats struct {
	Titles    []string
	Level     int
	Health    int
	MaxHealth int
	Attack    int
	Shield    int
	Agility   int
	Statuses  []string
	Equipment []string
	NoCorpse  bool
}

// New constructs a Character from stats.
//
// Precondition: id must be IDWidth characters and contain neither '_' nor '#';
// name must be non-empty.
// Postcondition: Returns a Character satisfying every stat invariant, or a non-nil error.
// Living characters start turn-eligible.
// A character built with Health <= 0 starts dead.
func New(id, name string, s Stats) (*Character, error) {
	if len(id) != IDWidth {
		return nil, fmt.Errorf("character id %q must be %d characters", id, IDWidth)
	}
	for i := 0; i < len(id); i++ {
		if id[i] == '_' || id[i] == '#' {
			return nil, fmt.Errorf("character id %q must not contain '_' or '#'", id)
		}
	}
	if name == "" {
		return nil, errors.New("character name must not be empty")
	}
	if s.MaxHealth < 1 {
		return nil, fmt.Errorf("character %q: max health must be >= 1, got %d", id, s.MaxHealth)
	}
	if s.Health > s.MaxHealth {
		return nil, fmt.Errorf("character %q: health %d exceeds max health %d", id, s.Health, s.MaxHealth)
	}
	if s.Attack < 0 {
		return nil, fmt.Errorf("character %q: attack must be >= 0, got %d", id, s.Attack)
	}
	if s.Agility < 1 {
		return nil, fmt.Errorf("character %q: agility must be >= 1, got %d", id, s.Agility)
	}
	if s.Shield < 0 {
		return nil, fmt.Errorf("character %q: shield must be >= 0, got %d", id, s.Shield)
	}
	level := s.Level
	if level < 1 {
		level = 1
	}

	c := &Character{
		Titles:        append([]string(nil), s.Titles...),
		Name:          name,
		ID:            id,
		Level:         level,
		CurrentHealth: s.Health,
		MaxHealth:     s.MaxHealth,
		Attack:        s.Attack,
		Shield:        s.Shield,
		Agility:       s.Agility,
		HasTurn:       s.Health > 0,
		NoCorpse:      s.NoCorpse,
		Dead:          s.Health <= 0,
	}
	for _, st := range s.Statuses {
		c.AddStatus(st)
	}
	for _, item := range s.Equipment {
		c.Equip(item)
	}
	return c, nil
}
