package skills

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/org/skillgate/pkg/models"
)

// fxOptionPricer prices a European FX option under Garman-Kohlhagen.
func fxOptionPricer() Registration {
	return Registration{
		Descriptor: models.SkillDescriptor{
			Name:        "fx_option_pricer",
			Description: "Prices European FX options (Garman-Kohlhagen) with greeks.",
			Tier:        models.TierPremium,
			ParameterSchema: map[string]models.ParameterSpec{
				"spot":          {Type: "number", Required: true},
				"strike":        {Type: "number", Required: true},
				"domestic_rate": {Type: "number", Required: true},
				"foreign_rate":  {Type: "number", Required: true},
				"volatility":    {Type: "number", Required: true},
				"years":         {Type: "number", Required: true},
				"option_type":   {Type: "string", Required: true},
			},
		},
		Handler: func(_ context.Context, args map[string]any) (map[string]any, error) {
			spot, err := floatArg(args, "spot")
			if err != nil {
				return nil, err
			}
			strike, err := floatArg(args, "strike")
			if err != nil {
				return nil, err
			}
			rd, err := floatArg(args, "domestic_rate")
			if err != nil {
				return nil, err
			}
			rf, err := floatArg(args, "foreign_rate")
			if err != nil {
				return nil, err
			}
			vol, err := floatArg(args, "volatility")
			if err != nil {
				return nil, err
			}
			years, err := floatArg(args, "years")
			if err != nil {
				return nil, err
			}
			optType, err := stringArg(args, "option_type")
			if err != nil {
				return nil, err
			}
			if spot <= 0 || strike <= 0 || vol <= 0 || years <= 0 {
				return nil, errors.New("spot, strike, volatility, and years must be positive")
			}
			if optType != "call" && optType != "put" {
				return nil, errors.New("option_type must be call or put")
			}

			sqrtT := math.Sqrt(years)
			d1 := (math.Log(spot/strike) + (rd-rf+vol*vol/2)*years) / (vol * sqrtT)
			d2 := d1 - vol*sqrtT
			dfDom := math.Exp(-rd * years)
			dfFor := math.Exp(-rf * years)

			var price, delta float64
			if optType == "call" {
				price = spot*dfFor*normCDF(d1) - strike*dfDom*normCDF(d2)
				delta = dfFor * normCDF(d1)
			} else {
				price = strike*dfDom*normCDF(-d2) - spot*dfFor*normCDF(-d1)
				delta = -dfFor * normCDF(-d1)
			}
			vega := spot * dfFor * normPDF(d1) * sqrtT

			return map[string]any{
				"price":       roundN(price, 6),
				"delta":       roundN(delta, 6),
				"vega":        roundN(vega, 6),
				"d1":          roundN(d1, 6),
				"d2":          roundN(d2, 6),
				"option_type": optType,
			}, nil
		},
	}
}

// portfolioStressTester applies named shock scenarios to a position list.
func portfolioStressTester() Registration {
	scenarios := map[string]map[string]float64{
		"gfc_2008":   {"equity": -0.45, "bond": 0.05, "commodity": -0.35, "cash": 0},
		"covid_2020": {"equity": -0.30, "bond": 0.03, "commodity": -0.25, "cash": 0},
		"rate_shock": {"equity": -0.12, "bond": -0.15, "commodity": 0.05, "cash": 0},
	}
	return Registration{
		Descriptor: models.SkillDescriptor{
			Name:        "portfolio_stress_tester",
			Description: "Stress-tests a portfolio against historical shock scenarios.",
			Tier:        models.TierPremium,
			ParameterSchema: map[string]models.ParameterSpec{
				"positions": {Type: "array", Required: true},
				"scenario":  {Type: "string", Required: true},
			},
		},
		Handler: func(_ context.Context, args map[string]any) (map[string]any, error) {
			scenario, err := stringArg(args, "scenario")
			if err != nil {
				return nil, err
			}
			shocks, ok := scenarios[scenario]
			if !ok {
				return nil, fmt.Errorf("unknown scenario %q", scenario)
			}
			raw, ok := args["positions"].([]any)
			if !ok || len(raw) == 0 {
				return nil, errors.New("positions must be a non-empty array")
			}

			totalBefore := 0.0
			totalAfter := 0.0
			detail := make([]map[string]any, 0, len(raw))
			for _, p := range raw {
				pos, ok := p.(map[string]any)
				if !ok {
					return nil, errors.New("each position must be an object")
				}
				class, err := stringArg(pos, "asset_class")
				if err != nil {
					return nil, err
				}
				value, err := floatArg(pos, "value")
				if err != nil {
					return nil, err
				}
				shock, ok := shocks[class]
				if !ok {
					return nil, fmt.Errorf("unsupported asset class %q", class)
				}
				after := value * (1 + shock)
				totalBefore += value
				totalAfter += after
				detail = append(detail, map[string]any{
					"asset_class":   class,
					"value_before":  round2(value),
					"value_after":   round2(after),
					"shock_applied": shock,
				})
			}

			drawdown := 0.0
			if totalBefore != 0 {
				drawdown = (totalAfter - totalBefore) / totalBefore
			}
			return map[string]any{
				"scenario":     scenario,
				"value_before": round2(totalBefore),
				"value_after":  round2(totalAfter),
				"drawdown_pct": roundN(drawdown*100, 2),
				"positions":    detail,
			}, nil
		},
	}
}

// optionsStrategyAnalyzer evaluates a multi-leg option strategy payoff at
// expiry across a spot range.
func optionsStrategyAnalyzer() Registration {
	return Registration{
		Descriptor: models.SkillDescriptor{
			Name:        "options_strategy_analyzer",
			Description: "Computes expiry payoff profile, breakevens, and max gain/loss of a multi-leg option strategy.",
			Tier:        models.TierPremium,
			ParameterSchema: map[string]models.ParameterSpec{
				"legs":       {Type: "array", Required: true},
				"spot_range": {Type: "array"},
			},
		},
		Handler: func(_ context.Context, args map[string]any) (map[string]any, error) {
			raw, ok := args["legs"].([]any)
			if !ok || len(raw) == 0 {
				return nil, errors.New("legs must be a non-empty array")
			}

			type leg struct {
				kind     string
				strike   float64
				premium  float64
				quantity float64
			}
			legs := make([]leg, 0, len(raw))
			minStrike, maxStrike := math.Inf(1), math.Inf(-1)
			for _, l := range raw {
				obj, ok := l.(map[string]any)
				if !ok {
					return nil, errors.New("each leg must be an object")
				}
				kind, err := stringArg(obj, "type")
				if err != nil {
					return nil, err
				}
				if kind != "call" && kind != "put" {
					return nil, errors.New("leg type must be call or put")
				}
				strike, err := floatArg(obj, "strike")
				if err != nil {
					return nil, err
				}
				premium, err := floatArg(obj, "premium")
				if err != nil {
					return nil, err
				}
				qty, err := floatArgDefault(obj, "quantity", 1)
				if err != nil {
					return nil, err
				}
				legs = append(legs, leg{kind, strike, premium, qty})
				minStrike = math.Min(minStrike, strike)
				maxStrike = math.Max(maxStrike, strike)
			}

			lo, hi := minStrike*0.5, maxStrike*1.5
			if r, ok := args["spot_range"].([]any); ok && len(r) == 2 {
				if v, ok := r[0].(float64); ok {
					lo = v
				}
				if v, ok := r[1].(float64); ok {
					hi = v
				}
			}
			if lo >= hi {
				return nil, errors.New("spot_range lower bound must be below upper bound")
			}

			const steps = 100
			payoffAt := func(spot float64) float64 {
				total := 0.0
				for _, l := range legs {
					intrinsic := 0.0
					if l.kind == "call" {
						intrinsic = math.Max(spot-l.strike, 0)
					} else {
						intrinsic = math.Max(l.strike-spot, 0)
					}
					// quantity < 0 means a written leg
					total += l.quantity * (intrinsic - l.premium)
				}
				return total
			}

			profile := make([]map[string]any, 0, steps+1)
			maxGain, maxLoss := math.Inf(-1), math.Inf(1)
			var breakevens []float64
			prev := payoffAt(lo)
			for i := 0; i <= steps; i++ {
				spot := lo + (hi-lo)*float64(i)/steps
				pay := payoffAt(spot)
				maxGain = math.Max(maxGain, pay)
				maxLoss = math.Min(maxLoss, pay)
				if i > 0 && prev*pay < 0 {
					// linear interpolation of the zero crossing
					prevSpot := lo + (hi-lo)*float64(i-1)/steps
					breakevens = append(breakevens, round2(prevSpot+(spot-prevSpot)*prev/(prev-pay)))
				}
				profile = append(profile, map[string]any{
					"spot":   round2(spot),
					"payoff": round2(pay),
				})
				prev = pay
			}

			return map[string]any{
				"payoff_profile": profile,
				"max_gain":       round2(maxGain),
				"max_loss":       round2(maxLoss),
				"breakevens":     breakevens,
				"legs_analyzed":  len(legs),
			}, nil
		},
	}
}

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// normPDF is the standard normal probability density function.
func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
