// Package world provides the spatial vocabulary shared by the NPC core:
// vectors, poses, entity categories, and the spatial query and line-of-sight
// services that perception consumes. The host uses the in-memory Space and
// Mover implementations; a game engine would supply its own.
package world

import "math"

// Vec3 is a point or direction in world space. Y is up.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Zero is the origin.
var Zero = Vec3{}

// V3 is shorthand for building a Vec3.
func V3(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Len returns the Euclidean length.
func (v Vec3) Len() float64 {
	return math.Sqrt(v.Dot(v))
}

// SqrLen returns the squared length.
func (v Vec3) SqrLen() float64 {
	return v.Dot(v)
}

// Dist returns the distance between two points.
func (v Vec3) Dist(o Vec3) float64 {
	return v.Sub(o).Len()
}

// Normalize returns the unit vector in the direction of v, or Zero when v has
// no length.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-9 {
		return Zero
	}
	return v.Scale(1 / l)
}

// Flat drops the vertical component. Turning is always done on the ground
// plane.
func (v Vec3) Flat() Vec3 {
	return Vec3{X: v.X, Z: v.Z}
}

// AngleBetween returns the unsigned angle between two directions in degrees.
// A zero-length input yields 0.
func AngleBetween(a, b Vec3) float64 {
	la, lb := a.Len(), b.Len()
	if la < 1e-9 || lb < 1e-9 {
		return 0
	}
	cos := a.Dot(b) / (la * lb)
	if cos > 1 {
		cos = 1
	}
	if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi
}

// Pose is a position plus a heading. Yaw is in degrees clockwise from +Z, so
// yaw 0 faces +Z and yaw 90 faces +X.
type Pose struct {
	Position Vec3    `json:"position"`
	Yaw      float64 `json:"yaw"`
}

// Forward returns the unit facing direction on the ground plane.
func (p Pose) Forward() Vec3 {
	rad := p.Yaw * math.Pi / 180
	return Vec3{X: math.Sin(rad), Z: math.Cos(rad)}
}

// YawTowards returns the yaw that faces along dir. The vertical component is
// ignored; a vertical or zero dir returns fallback.
func YawTowards(dir Vec3, fallback float64) float64 {
	flat := dir.Flat()
	if flat.SqrLen() <= 0.001 {
		return fallback
	}
	return NormalizeYaw(math.Atan2(flat.X, flat.Z) * 180 / math.Pi)
}

// NormalizeYaw wraps an angle into [0, 360).
func NormalizeYaw(yaw float64) float64 {
	yaw = math.Mod(yaw, 360)
	if yaw < 0 {
		yaw += 360
	}
	return yaw
}

// DeltaYaw returns the signed shortest rotation from one yaw to another, in
// (-180, 180].
func DeltaYaw(from, to float64) float64 {
	d := math.Mod(to-from, 360)
	if d > 180 {
		d -= 360
	}
	if d <= -180 {
		d += 360
	}
	return d
}

// RotateTowards turns from current toward target by at most maxDelta degrees.
func RotateTowards(current, target, maxDelta float64) float64 {
	if maxDelta <= 0 {
		return NormalizeYaw(current)
	}
	d := DeltaYaw(current, target)
	if math.Abs(d) <= maxDelta {
		return NormalizeYaw(target)
	}
	if d > 0 {
		return NormalizeYaw(current + maxDelta)
	}
	return NormalizeYaw(current - maxDelta)
}
