package skills

import (
	"context"
	"errors"
	"math"

	"github.com/org/skillgate/pkg/models"
)

// loanAmortizationCalculator computes a monthly payment and full
// amortization schedule with optional extra principal payments.
func loanAmortizationCalculator() Registration {
	return Registration{
		Descriptor: models.SkillDescriptor{
			Name:        "loan_amortization_calculator",
			Description: "Computes monthly payment, amortization schedule, and payoff projections.",
			Tier:        models.TierFree,
			ParameterSchema: map[string]models.ParameterSpec{
				"principal":             {Type: "number", Required: true},
				"annual_rate":           {Type: "number", Required: true},
				"term_months":           {Type: "integer", Required: true},
				"extra_monthly_payment": {Type: "number"},
			},
		},
		Handler: func(_ context.Context, args map[string]any) (map[string]any, error) {
			principal, err := floatArg(args, "principal")
			if err != nil {
				return nil, err
			}
			annualRate, err := floatArg(args, "annual_rate")
			if err != nil {
				return nil, err
			}
			termMonths, err := intArg(args, "term_months")
			if err != nil {
				return nil, err
			}
			extra, err := floatArgDefault(args, "extra_monthly_payment", 0)
			if err != nil {
				return nil, err
			}
			if principal <= 0 || annualRate <= 0 || termMonths <= 0 {
				return nil, errors.New("principal, rate, and term must be positive")
			}

			monthlyRate := annualRate / 12
			growth := math.Pow(1+monthlyRate, float64(termMonths))
			payment := principal*(monthlyRate*growth)/(growth-1) + extra

			balance := principal
			totalInterest := 0.0
			schedule := make([]map[string]any, 0, termMonths)
			for month := 1; month <= termMonths; month++ {
				interest := balance * monthlyRate
				principalPaid := math.Min(payment-interest, balance)
				balance -= principalPaid
				totalInterest += interest
				schedule = append(schedule, map[string]any{
					"month":             month,
					"payment":           round2(payment),
					"principal":         round2(principalPaid),
					"interest":          round2(interest),
					"remaining_balance": round2(math.Max(balance, 0)),
				})
				if balance <= 0 {
					break
				}
			}

			return map[string]any{
				"monthly_payment":     round2(payment),
				"schedule":            schedule,
				"total_interest_paid": round2(totalInterest),
				"months_to_payoff":    len(schedule),
			}, nil
		},
	}
}

// compoundInterestCalculator projects growth of a principal with periodic
// compounding and optional recurring contributions.
func compoundInterestCalculator() Registration {
	return Registration{
		Descriptor: models.SkillDescriptor{
			Name:        "compound_interest_calculator",
			Description: "Projects compound growth with optional periodic contributions.",
			Tier:        models.TierFree,
			ParameterSchema: map[string]models.ParameterSpec{
				"principal":             {Type: "number", Required: true},
				"annual_rate":           {Type: "number", Required: true},
				"years":                 {Type: "number", Required: true},
				"compounds_per_year":    {Type: "integer"},
				"periodic_contribution": {Type: "number"},
			},
		},
		Handler: func(_ context.Context, args map[string]any) (map[string]any, error) {
			principal, err := floatArg(args, "principal")
			if err != nil {
				return nil, err
			}
			annualRate, err := floatArg(args, "annual_rate")
			if err != nil {
				return nil, err
			}
			years, err := floatArg(args, "years")
			if err != nil {
				return nil, err
			}
			n, err := floatArgDefault(args, "compounds_per_year", 12)
			if err != nil {
				return nil, err
			}
			contribution, err := floatArgDefault(args, "periodic_contribution", 0)
			if err != nil {
				return nil, err
			}
			if principal < 0 || annualRate < 0 || years <= 0 || n <= 0 {
				return nil, errors.New("inputs must be positive")
			}

			periods := n * years
			ratePerPeriod := annualRate / n
			futureValue := principal * math.Pow(1+ratePerPeriod, periods)
			if contribution > 0 && ratePerPeriod > 0 {
				futureValue += contribution * (math.Pow(1+ratePerPeriod, periods) - 1) / ratePerPeriod
			} else if contribution > 0 {
				futureValue += contribution * periods
			}
			contributed := principal + contribution*periods

			return map[string]any{
				"future_value":       round2(futureValue),
				"total_contributed":  round2(contributed),
				"total_interest":     round2(futureValue - contributed),
				"effective_annual":   roundN(math.Pow(1+ratePerPeriod, n)-1, 6),
				"compounding_events": int(periods),
			}, nil
		},
	}
}

// npvCalculator discounts a cash flow series and reports NPV alongside a
// simple profitability index.
func npvCalculator() Registration {
	return Registration{
		Descriptor: models.SkillDescriptor{
			Name:        "npv_calculator",
			Description: "Computes net present value and profitability index of a cash flow series.",
			Tier:        models.TierFree,
			ParameterSchema: map[string]models.ParameterSpec{
				"discount_rate":      {Type: "number", Required: true},
				"initial_investment": {Type: "number", Required: true},
				"cash_flows":         {Type: "array", Required: true},
			},
		},
		Handler: func(_ context.Context, args map[string]any) (map[string]any, error) {
			rate, err := floatArg(args, "discount_rate")
			if err != nil {
				return nil, err
			}
			initial, err := floatArg(args, "initial_investment")
			if err != nil {
				return nil, err
			}
			raw, ok := args["cash_flows"].([]any)
			if !ok || len(raw) == 0 {
				return nil, errors.New("cash_flows must be a non-empty array of numbers")
			}
			if rate <= -1 {
				return nil, errors.New("discount_rate must be greater than -1")
			}

			pv := 0.0
			discounted := make([]map[string]any, 0, len(raw))
			for i, v := range raw {
				cf, ok := v.(float64)
				if !ok {
					return nil, errors.New("cash_flows must contain only numbers")
				}
				d := cf / math.Pow(1+rate, float64(i+1))
				pv += d
				discounted = append(discounted, map[string]any{
					"period":           i + 1,
					"cash_flow":        round2(cf),
					"discounted_value": round2(d),
				})
			}
			npv := pv - initial

			result := map[string]any{
				"npv":              round2(npv),
				"present_value":    round2(pv),
				"discounted_flows": discounted,
				"accept":           npv > 0,
			}
			if initial != 0 {
				result["profitability_index"] = roundN(pv/initial, 4)
			}
			return result, nil
		},
	}
}
