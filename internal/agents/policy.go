package agents

import (
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Decision is the outcome of asking an agent to do something.
type Decision uint8

const (
	Refuse Decision = iota
	Obey
)

func (d Decision) String() string {
	if d == Obey {
		return "obey"
	}
	return "refuse"
}

// Policy decides whether an agent complies with a request. weightA scales
// the personality score, weightB the relationship score.
type Policy interface {
	Evaluate(weightA, weightB float64, p Personality, r RelationshipTraits) Decision
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(weightA, weightB float64, p Personality, r RelationshipTraits) Decision

func (f PolicyFunc) Evaluate(weightA, weightB float64, p Personality, r RelationshipTraits) Decision {
	return f(weightA, weightB, p, r)
}

// WeightedPolicy scores personality and relationship separately, blends them
// by the caller's weights, and obeys at or above Threshold.
type WeightedPolicy struct {
	Agreeableness float64 `json:"agreeableness" yaml:"agreeableness"`
	Bravery       float64 `json:"bravery" yaml:"bravery"`
	Independence  float64 `json:"independence" yaml:"independence"` // Subtracted
	Trust         float64 `json:"trust" yaml:"trust"`
	Love          float64 `json:"love" yaml:"love"`
	Fear          float64 `json:"fear" yaml:"fear"` // Subtracted
	Threshold     float64 `json:"threshold" yaml:"threshold"`
}

// DefaultPolicy is the weighting used when a scenario does not name one.
func DefaultPolicy() WeightedPolicy {
	return WeightedPolicy{
		Agreeableness: 0.4,
		Bravery:       0.2,
		Independence:  0.3,
		Trust:         0.5,
		Love:          0.4,
		Fear:          0.3,
		Threshold:     0.4,
	}
}

// Score returns the blended score before thresholding.
func (w WeightedPolicy) Score(weightA, weightB float64, p Personality, r RelationshipTraits) float64 {
	weightA = max(weightA, 0)
	weightB = max(weightB, 0)
	if weightA+weightB == 0 {
		return 0
	}
	personality := p.Agreeableness*w.Agreeableness + p.Bravery*w.Bravery - p.Independence*w.Independence
	relationship := r.Trust*w.Trust + r.Love*w.Love - r.Fear*w.Fear
	return (weightA*personality + weightB*relationship) / (weightA + weightB)
}

func (w WeightedPolicy) Evaluate(weightA, weightB float64, p Personality, r RelationshipTraits) Decision {
	if weightA <= 0 && weightB <= 0 {
		return Refuse
	}
	if w.Score(weightA, weightB, p, r) >= w.Threshold {
		return Obey
	}
	return Refuse
}

// ExprPolicy evaluates a boolean expression over the traits. Variables:
// weight_a, weight_b, agreeableness, bravery, independence, trust, love, fear.
type ExprPolicy struct {
	Source  string
	program *vm.Program
}

func policyEnv(weightA, weightB float64, p Personality, r RelationshipTraits) map[string]any {
	return map[string]any{
		"weight_a":      weightA,
		"weight_b":      weightB,
		"agreeableness": p.Agreeableness,
		"bravery":       p.Bravery,
		"independence":  p.Independence,
		"trust":         r.Trust,
		"love":          r.Love,
		"fear":          r.Fear,
	}
}

// NewExprPolicy compiles src once. The expression must yield a bool.
func NewExprPolicy(src string) (*ExprPolicy, error) {
	program, err := expr.Compile(src,
		expr.Env(policyEnv(0, 0, Personality{}, RelationshipTraits{})),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid policy expression: %w", err)
	}
	return &ExprPolicy{Source: src, program: program}, nil
}

// Evaluate runs the compiled expression. A runtime error refuses.
func (e *ExprPolicy) Evaluate(weightA, weightB float64, p Personality, r RelationshipTraits) Decision {
	out, err := vm.Run(e.program, policyEnv(weightA, weightB, p, r))
	if err != nil {
		slog.Warn("policy evaluation failed", "expr", e.Source, "error", err)
		return Refuse
	}
	if ok, _ := out.(bool); ok {
		return Obey
	}
	return Refuse
}
