package world

import (
	"fmt"
	"math"
)

// EntityID identifies anything that can be sensed or targeted.
type EntityID uint64

// Category is a bitmask used by spatial queries to select candidates and
// obstructions, the way a physics engine uses layer masks.
type Category uint32

const (
	CategoryPlayer   Category = 1 << iota // The player character
	CategoryFriendly                      // Allied NPCs
	CategoryEnemy                         // Hostile NPCs
	CategoryGeometry                      // Walls, pillars, props that block sight

	CategoryNone Category = 0
	CategoryAll  Category = ^Category(0)
)

// Has reports whether any bit of mask is set in c.
func (c Category) Has(mask Category) bool {
	return c&mask != 0
}

// Entity is the minimal view of a world object needed by perception and by
// states that track a target.
type Entity interface {
	ID() EntityID
	Position() Vec3
	Category() Category
	Alive() bool
}

// Spatial is the black-box query service consumed by the perception scanner.
type Spatial interface {
	// Overlap returns entities whose position lies within radius of origin
	// and whose category intersects mask, in the index's natural order.
	Overlap(origin Vec3, radius float64, mask Category) []Entity
	// LineOfSight reports whether the segment a→b is free of obstacles whose
	// category intersects mask.
	LineOfSight(a, b Vec3, mask Category) bool
}

// Obstacle is an axis-aligned box that can block line of sight.
type Obstacle struct {
	Min      Vec3     `json:"min"`
	Max      Vec3     `json:"max"`
	Category Category `json:"category"`
}

// Contains reports whether p lies inside the box.
func (o Obstacle) Contains(p Vec3) bool {
	return p.X >= o.Min.X && p.X <= o.Max.X &&
		p.Y >= o.Min.Y && p.Y <= o.Max.Y &&
		p.Z >= o.Min.Z && p.Z <= o.Max.Z
}

// Space is an in-memory Spatial implementation. Entities are returned in
// registration order; obstacles are tested with a slab intersection.
type Space struct {
	entities  []Entity
	index     map[EntityID]int
	Obstacles []Obstacle
}

// NewSpace creates an empty space.
func NewSpace() *Space {
	return &Space{index: make(map[EntityID]int)}
}

// Add registers an entity. Adding an ID twice replaces the earlier entry in
// place, keeping its order.
func (s *Space) Add(e Entity) {
	if i, ok := s.index[e.ID()]; ok {
		s.entities[i] = e
		return
	}
	s.index[e.ID()] = len(s.entities)
	s.entities = append(s.entities, e)
}

// Remove drops an entity. Unknown IDs are ignored.
func (s *Space) Remove(id EntityID) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	s.entities = append(s.entities[:i], s.entities[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.entities); j++ {
		s.index[s.entities[j].ID()] = j
	}
}

// Get returns the entity with the given ID.
func (s *Space) Get(id EntityID) (Entity, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.entities[i], true
}

// Entities returns a copy of the registered entities in order.
func (s *Space) Entities() []Entity {
	out := make([]Entity, len(s.entities))
	copy(out, s.entities)
	return out
}

// AddObstacle adds a sight-blocking box.
func (s *Space) AddObstacle(o Obstacle) {
	if o.Category == CategoryNone {
		o.Category = CategoryGeometry
	}
	s.Obstacles = append(s.Obstacles, o)
}

// Overlap implements Spatial.
func (s *Space) Overlap(origin Vec3, radius float64, mask Category) []Entity {
	var out []Entity
	r2 := radius * radius
	for _, e := range s.entities {
		if !e.Category().Has(mask) {
			continue
		}
		if e.Position().Sub(origin).SqrLen() <= r2 {
			out = append(out, e)
		}
	}
	return out
}

// LineOfSight implements Spatial.
func (s *Space) LineOfSight(a, b Vec3, mask Category) bool {
	for _, o := range s.Obstacles {
		if !o.Category.Has(mask) {
			continue
		}
		if segmentHitsBox(a, b, o) {
			return false
		}
	}
	return true
}

// segmentHitsBox is the slab test restricted to t in [0, 1].
func segmentHitsBox(a, b Vec3, o Obstacle) bool {
	d := b.Sub(a)
	tmin, tmax := 0.0, 1.0

	axes := [3][4]float64{
		{a.X, d.X, o.Min.X, o.Max.X},
		{a.Y, d.Y, o.Min.Y, o.Max.Y},
		{a.Z, d.Z, o.Min.Z, o.Max.Z},
	}
	for _, ax := range axes {
		start, dir, lo, hi := ax[0], ax[1], ax[2], ax[3]
		if math.Abs(dir) < 1e-12 {
			if start < lo || start > hi {
				return false
			}
			continue
		}
		t1 := (lo - start) / dir
		t2 := (hi - start) / dir
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return false
		}
	}
	return true
}

// String returns a summary of the space.
func (s *Space) String() string {
	return fmt.Sprintf("Space(entities=%d, obstacles=%d)", len(s.entities), len(s.Obstacles))
}
