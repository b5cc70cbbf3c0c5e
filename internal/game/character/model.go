// Package character defines the combat entity that fights on the battle grid
// and the bounded rules for mutating its stats.
package character

// Character is a combatant in one battle.
//
// Invariants: CurrentHealth <= MaxHealth; MaxHealth >= 1; Attack >= 0;
// Agility >= 1; Shield >= 0. Mutate stats only through the methods below.
type Character struct {
	Titles []string
	Name   string
	// ID is the roster key embedded in tile records.
	ID string

	Level         int
	CurrentHealth int
	MaxHealth     int
	Attack        int
	// Shield is a depletable buffer consumed before health.
	Shield  int
	Agility int

	// Statuses holds active status effect ids in application order.
	Statuses  []string
	Equipment []string

	// Dead is set once health reaches zero and never cleared.
	Dead bool
	// HasTurn reports whether the character may still act this round.
	HasTurn bool
	// NoCorpse removes the unit from the grid on death instead of leaving a corpse marker.
	NoCorpse bool
}

// IsDead reports whether the character has been defeated.
func (c *Character) IsDead() bool { return c.Dead }

// LevelUp increments the level. Stat growth is applied separately through
// the Increase* mutators.
func (c *Character) LevelUp() {
	c.Level++
}

// TakeDamage applies amount to the shield first and spills any excess onto health.
//
// Precondition: amount >= 0.
// Postcondition: if amount <= old Shield, Shield decreases by amount and health is unchanged;
// otherwise Shield == 0 and CurrentHealth decreases by amount-oldShield.
// Dead is true iff CurrentHealth <= 0.
func (c *Character) TakeDamage(amount int) {
	if amount <= c.Shield {
		c.Shield -= amount
		return
	}
	excess := amount - c.Shield
	c.Shield = 0
	c.CurrentHealth -= excess
	if c.CurrentHealth <= 0 {
		c.Dead = true
	}
}

// ReceiveHealing raises health by amount without exceeding MaxHealth.
//
// Precondition: amount >= 0.
// Postcondition: CurrentHealth <= MaxHealth.
func (c *Character) ReceiveHealing(amount int) {
	c.CurrentHealth += amount
	if c.CurrentHealth > c.MaxHealth {
		c.CurrentHealth = c.MaxHealth
	}
}

// IncreaseMaxHealth raises MaxHealth by n. Current health is not refilled.
func (c *Character) IncreaseMaxHealth(n int) { c.MaxHealth += n }

// IncreaseAttack raises Attack by n.
func (c *Character) IncreaseAttack(n int) { c.Attack += n }

// IncreaseAgility raises Agility by n.
func (c *Character) IncreaseAgility(n int) { c.Agility += n }

// IncreaseShield raises Shield by n.
func (c *Character) IncreaseShield(n int) { c.Shield += n }

// DecreaseMaxHealth lowers MaxHealth by n, never below 1, and pulls
// CurrentHealth down with it when it would exceed the new maximum.
//
// Postcondition: MaxHealth >= 1; CurrentHealth <= MaxHealth.
func (c *Character) DecreaseMaxHealth(n int) {
	c.MaxHealth -= n
	if c.MaxHealth < 1 {
		c.MaxHealth = 1
	}
	if c.CurrentHealth > c.MaxHealth {
		c.CurrentHealth = c.MaxHealth
	}
}

// DecreaseAttack lowers Attack by n, never below 0.
func (c *Character) DecreaseAttack(n int) {
	c.Attack -= n
	if c.Attack < 0 {
		c.Attack = 0
	}
}

// DecreaseAgility lowers Agility by n, never below 1.
func (c *Character) DecreaseAgility(n int) {
	c.Agility -= n
	if c.Agility < 1 {
		c.Agility = 1
	}
}

// DecreaseShield lowers Shield by n, never below 0.
func (c *Character) DecreaseShield(n int) {
	c.Shield -= n
	if c.Shield < 0 {
		c.Shield = 0
	}
}

// AddStatus records a status effect. Re-adding an active status is a no-op.
func (c *Character) AddStatus(id string) {
	if c.HasStatus(id) {
		return
	}
	c.Statuses = append(c.Statuses, id)
}

// RemoveStatus drops a status effect if present.
//
// Postcondition: Returns true iff the status was active.
func (c *Character) RemoveStatus(id string) bool {
	for i, s := range c.Statuses {
		if s == id {
			c.Statuses = append(c.Statuses[:i], c.Statuses[i+1:]...)
			return true
		}
	}
	return false
}

// HasStatus reports whether the status effect is active.
func (c *Character) HasStatus(id string) bool {
	for _, s := range c.Statuses {
		if s == id {
			return true
		}
	}
	return false
}

// Equip adds an item id to the equipment list. Duplicate items are ignored.
func (c *Character) Equip(item string) {
	if c.IsEquipped(item) {
		return
	}
	c.Equipment = append(c.Equipment, item)
}

// Unequip removes an item id.
//
// Postcondition: Returns true iff the item was equipped.
func (c *Character) Unequip(item string) bool {
	for i, e := range c.Equipment {
		if e == item {
			c.Equipment = append(c.Equipment[:i], c.Equipment[i+1:]...)
			return true
		}
	}
	return false
}

// IsEquipped reports whether the item is in the equipment list.
func (c *Character) IsEquipped(item string) bool {
	for _, e := range c.Equipment {
		if e == item {
			return true
		}
	}
	return false
}
