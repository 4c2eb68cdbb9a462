package agents

import "github.com/wct097/saintaveline/internal/world"

// Config holds per-agent tuning. Distances are in world units, angles in
// degrees, times in seconds.
type Config struct {
	DetectionDistance float64      `json:"detection_distance" yaml:"detection_distance"`
	ViewAngle         float64      `json:"view_angle" yaml:"view_angle"`
	EyeOffset         world.Vec3   `json:"eye_offset" yaml:"eye_offset"`
	StopDistance      float64      `json:"stop_distance" yaml:"stop_distance"`
	RotationSpeed     float64      `json:"rotation_speed" yaml:"rotation_speed"` // Degrees per second
	MoveSpeed         float64      `json:"move_speed" yaml:"move_speed"`
	ArrivalThreshold  float64      `json:"arrival_threshold" yaml:"arrival_threshold"`
	Waypoints         []world.Vec3 `json:"waypoints,omitempty" yaml:"waypoints,omitempty"`
	ScanInterval      float64      `json:"scan_interval" yaml:"scan_interval"`

	HomeTolerance float64 `json:"home_tolerance" yaml:"home_tolerance"` // Idle walks back when displaced further
	SwayAngle     float64 `json:"sway_angle" yaml:"sway_angle"`
	SwaySpeed     float64 `json:"sway_speed" yaml:"sway_speed"`

	FireCooldownMin float64 `json:"fire_cooldown_min" yaml:"fire_cooldown_min"`
	FireCooldownMax float64 `json:"fire_cooldown_max" yaml:"fire_cooldown_max"`
	ShoutRange      float64 `json:"shout_range" yaml:"shout_range"`

	InvestigateLinger  float64 `json:"investigate_linger" yaml:"investigate_linger"`
	InvestigateTimeout float64 `json:"investigate_timeout" yaml:"investigate_timeout"`

	DeathDelay   float64 `json:"death_delay" yaml:"death_delay"`
	FadeDuration float64 `json:"fade_duration" yaml:"fade_duration"`
}

// DefaultConfig returns the stock NPC tuning.
func DefaultConfig() Config {
	return Config{
		DetectionDistance: 5,
		ViewAngle:         120,
		EyeOffset:         world.V3(0, 1.6, 0),
		StopDistance:      1,
		RotationSpeed:     90,
		MoveSpeed:         3.5,
		ArrivalThreshold:  0.5,
		ScanInterval:      0.5,

		HomeTolerance: 1,
		SwayAngle:     45,
		SwaySpeed:     0.5,

		FireCooldownMin: 0.5,
		FireCooldownMax: 1.5,
		ShoutRange:      20,

		InvestigateLinger:  3,
		InvestigateTimeout: 20,

		DeathDelay:   10,
		FadeDuration: 2,
	}
}

// Merge copies every non-zero field of o over c.
func (c Config) Merge(o Config) Config {
	set := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	set(&c.DetectionDistance, o.DetectionDistance)
	set(&c.ViewAngle, o.ViewAngle)
	if o.EyeOffset != (world.Vec3{}) {
		c.EyeOffset = o.EyeOffset
	}
	set(&c.StopDistance, o.StopDistance)
	set(&c.RotationSpeed, o.RotationSpeed)
	set(&c.MoveSpeed, o.MoveSpeed)
	set(&c.ArrivalThreshold, o.ArrivalThreshold)
	if len(o.Waypoints) > 0 {
		c.Waypoints = append([]world.Vec3(nil), o.Waypoints...)
	}
	set(&c.ScanInterval, o.ScanInterval)
	set(&c.HomeTolerance, o.HomeTolerance)
	set(&c.SwayAngle, o.SwayAngle)
	set(&c.SwaySpeed, o.SwaySpeed)
	set(&c.FireCooldownMin, o.FireCooldownMin)
	set(&c.FireCooldownMax, o.FireCooldownMax)
	set(&c.ShoutRange, o.ShoutRange)
	set(&c.InvestigateLinger, o.InvestigateLinger)
	set(&c.InvestigateTimeout, o.InvestigateTimeout)
	set(&c.DeathDelay, o.DeathDelay)
	set(&c.FadeDuration, o.FadeDuration)
	return c
}
