// Arena generation: scatters sight-blocking pillars over a square floor so
// the host has geometry for line-of-sight queries. Deterministic from seed.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// ArenaConfig holds arena generation parameters.
type ArenaConfig struct {
	Seed        int64   `json:"seed" yaml:"seed"`
	HalfExtent  float64 `json:"half_extent" yaml:"half_extent"`   // Floor spans [-HalfExtent, HalfExtent] on X and Z
	Cell        float64 `json:"cell" yaml:"cell"`                 // Grid spacing for candidate pillars
	Threshold   float64 `json:"threshold" yaml:"threshold"`       // Noise value above which a pillar is placed (0–1)
	PillarSize  float64 `json:"pillar_size" yaml:"pillar_size"`   // Pillar footprint edge length
	PillarHigh  float64 `json:"pillar_height" yaml:"pillar_height"`
	ClearRadius float64 `json:"clear_radius" yaml:"clear_radius"` // No pillar within this distance of a KeepClear point
}

// DefaultArenaConfig returns a medium courtyard with sparse cover.
func DefaultArenaConfig() ArenaConfig {
	return ArenaConfig{
		Seed:        0,
		HalfExtent:  40,
		Cell:        6,
		Threshold:   0.68,
		PillarSize:  1.5,
		PillarHigh:  3,
		ClearRadius: 3,
	}
}

// GenerateArena returns the pillars for cfg. Points in keepClear (spawn
// positions, waypoints) never end up inside cover.
func GenerateArena(cfg ArenaConfig, keepClear []Vec3) []Obstacle {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if cfg.Cell <= 0 || cfg.HalfExtent <= 0 {
		return nil
	}

	density := opensimplex.NewNormalized(seed)
	jitter := opensimplex.NewNormalized(seed + 1)

	var out []Obstacle
	half := cfg.PillarSize / 2
	for x := -cfg.HalfExtent + cfg.Cell/2; x < cfg.HalfExtent; x += cfg.Cell {
		for z := -cfg.HalfExtent + cfg.Cell/2; z < cfg.HalfExtent; z += cfg.Cell {
			if octaveNoise(density, x, z, 3, 0.05, 0.5) < cfg.Threshold {
				continue
			}

			// Nudge the pillar off the lattice so the courtyard does not look gridded.
			ox := (jitter.Eval2(x*0.3, z*0.3) - 0.5) * cfg.Cell * 0.5
			oz := (jitter.Eval2(z*0.3, x*0.3) - 0.5) * cfg.Cell * 0.5
			center := Vec3{X: x + ox, Z: z + oz}

			if nearAny(center, keepClear, cfg.ClearRadius+half) {
				continue
			}

			out = append(out, Obstacle{
				Min:      Vec3{X: center.X - half, Y: 0, Z: center.Z - half},
				Max:      Vec3{X: center.X + half, Y: cfg.PillarHigh, Z: center.Z + half},
				Category: CategoryGeometry,
			})
		}
	}
	return out
}

func nearAny(p Vec3, points []Vec3, radius float64) bool {
	for _, q := range points {
		if p.Sub(q).Flat().Len() < radius {
			return true
		}
	}
	return false
}

// octaveNoise sums several noise octaves and normalises back to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return math.Max(0, math.Min(1, total/maxVal))
}
