// Package skills defines the skill contract and the built-in registration
// table. A skill is a stateless transformation of structured input to
// structured output; the gateway never interprets its financial semantics.
package skills

import (
	"context"
	"fmt"

	"github.com/org/skillgate/pkg/models"
)

// Handler is the callable behind a skill descriptor. It returns the data
// half of the wire envelope; the gateway wraps it with status and timestamp.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Registration pairs a descriptor with its handler. Skills are registered
// through an explicit table rather than runtime discovery, so a broken
// import can never take down the catalog build.
type Registration struct {
	Descriptor models.SkillDescriptor
	Handler    Handler
}

// Builtin returns the registration table of skills shipped with the gateway.
func Builtin() []Registration {
	return []Registration{
		loanAmortizationCalculator(),
		compoundInterestCalculator(),
		npvCalculator(),
		fxOptionPricer(),
		portfolioStressTester(),
		optionsStrategyAnalyzer(),
	}
}

// --- argument helpers ---

func floatArg(args map[string]any, name string) (float64, error) {
	v, ok := args[name]
	if !ok {
		return 0, fmt.Errorf("missing required argument %q", name)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("argument %q must be a number", name)
	}
}

func floatArgDefault(args map[string]any, name string, def float64) (float64, error) {
	if _, ok := args[name]; !ok {
		return def, nil
	}
	return floatArg(args, name)
}

func intArg(args map[string]any, name string) (int, error) {
	f, err := floatArg(args, name)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", name)
	}
	return s, nil
}

func round2(v float64) float64 {
	return roundN(v, 2)
}

func roundN(v float64, places int) float64 {
	p := 1.0
	for i := 0; i < places; i++ {
		p *= 10
	}
	if v >= 0 {
		return float64(int64(v*p+0.5)) / p
	}
	return float64(int64(v*p-0.5)) / p
}
