// Package perception decides which entities an agent can see.
package perception

import (
	"iter"

	"github.com/wct097/saintaveline/internal/world"
)

// PoseSource supplies the observer's pose. ok is false while the pose is
// unavailable, for example mid-teardown.
type PoseSource func() (pose world.Pose, ok bool)

// Scanner tests candidates against a range, a view cone, and line of sight.
type Scanner struct {
	Source       PoseSource
	Self         world.EntityID // Never yielded
	EyeOffset    world.Vec3
	ViewDistance float64
	ViewAngle    float64 // Full cone angle in degrees
	TargetMask   world.Category
	ObstacleMask world.Category
	Spatial      world.Spatial
}

// Eye returns the eye position for a pose.
func (s *Scanner) Eye(p world.Pose) world.Vec3 {
	return p.Position.Add(s.EyeOffset)
}

// Scan lazily yields visible entities in the spatial index's order, stopping
// after max results (0 means no limit). Each call to the returned sequence
// runs a fresh query.
func (s *Scanner) Scan(max int) iter.Seq[world.Entity] {
	return func(yield func(world.Entity) bool) {
		if s.Source == nil || s.Spatial == nil {
			return
		}
		pose, ok := s.Source()
		if !ok {
			return
		}
		eye := s.Eye(pose)
		forward := pose.Forward()

		n := 0
		for _, c := range s.Spatial.Overlap(eye, s.ViewDistance, s.TargetMask) {
			if !s.Visible(eye, forward, c) {
				continue
			}
			if !yield(c) {
				return
			}
			n++
			if max > 0 && n >= max {
				return
			}
		}
	}
}

// Visible applies the per-candidate tests from a given eye and facing.
func (s *Scanner) Visible(eye, forward world.Vec3, c world.Entity) bool {
	if c == nil || c.ID() == s.Self {
		return false
	}
	pos := c.Position()
	if eye.Dist(pos) > s.ViewDistance {
		return false
	}
	if world.AngleBetween(forward, pos.Sub(eye)) > s.ViewAngle/2 {
		return false
	}
	return s.Spatial.LineOfSight(eye, pos, s.ObstacleMask)
}

// First returns the first visible entity that satisfies accept. A nil accept
// takes any candidate.
func (s *Scanner) First(accept func(world.Entity) bool) (world.Entity, bool) {
	for e := range s.Scan(0) {
		if accept == nil || accept(e) {
			return e, true
		}
	}
	return nil, false
}
