// Package stimulus propagates sounds to registered hearing sensors.
package stimulus

import (
	"fmt"
	"strings"

	"github.com/wct097/saintaveline/internal/world"
)

// Kind classifies a stimulus.
type Kind uint8

const (
	Gunshot Kind = iota
	Explosion
	Shout
	Footstep
)

var kindNames = [...]string{"gunshot", "explosion", "shout", "footstep"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind resolves a kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("stimulus: unknown kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Stimulus is an immutable record of something audible happening.
type Stimulus struct {
	Position     world.Vec3     `json:"position"`
	Kind         Kind           `json:"kind"`
	HearingRange float64        `json:"hearing_range"`
	Source       world.EntityID `json:"source,omitempty"` // Zero when anonymous
}

// New builds a stimulus.
func New(kind Kind, pos world.Vec3, hearingRange float64, source world.EntityID) Stimulus {
	return Stimulus{Position: pos, Kind: kind, HearingRange: hearingRange, Source: source}
}

// InRange reports whether a listener at p is within hearing range.
func (s Stimulus) InRange(p world.Vec3) bool {
	return p.Dist(s.Position) <= s.HearingRange
}

func (s Stimulus) String() string {
	return fmt.Sprintf("%s@(%.1f,%.1f,%.1f) r=%.1f", s.Kind, s.Position.X, s.Position.Y, s.Position.Z, s.HearingRange)
}
