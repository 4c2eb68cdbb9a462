package world

import "github.com/wct097/saintaveline/internal/faction"

// Body is a plain damageable entity: the player character, a training dummy,
// anything without its own behaviour.
type Body struct {
	EntityID  EntityID
	Name      string
	Pose      Pose
	Cat       Category
	Team      faction.ID
	Health    float64
	MaxHealth float64
	removed   bool
}

// NewBody creates a body at full health.
func NewBody(id EntityID, name string, cat Category, pos Vec3, health float64) *Body {
	return &Body{
		EntityID:  id,
		Name:      name,
		Pose:      Pose{Position: pos},
		Cat:       cat,
		Health:    health,
		MaxHealth: health,
	}
}

func (b *Body) ID() EntityID       { return b.EntityID }
func (b *Body) Position() Vec3     { return b.Pose.Position }
func (b *Body) Category() Category { return b.Cat }
func (b *Body) Faction() faction.ID { return b.Team }

// Alive reports whether the body still has health and has not been removed.
func (b *Body) Alive() bool {
	return !b.removed && b.Health > 0
}

// TakeDamage reduces health, clamped at zero, and returns the remainder.
func (b *Body) TakeDamage(amount float64) float64 {
	b.Health -= amount
	if b.Health < 0 {
		b.Health = 0
	}
	return b.Health
}

// Heal restores health up to MaxHealth.
func (b *Body) Heal(amount float64) float64 {
	b.Health += amount
	if b.Health > b.MaxHealth {
		b.Health = b.MaxHealth
	}
	return b.Health
}

// MoveTo teleports the body. The player is driven by input, not navigation.
func (b *Body) MoveTo(p Vec3) {
	b.Pose.Position = p
}

// Remove marks the body destroyed. References held elsewhere observe it as
// not alive.
func (b *Body) Remove() {
	b.removed = true
}

// Damageable is implemented by entities that can be hurt.
type Damageable interface {
	TakeDamage(amount float64) float64
}
