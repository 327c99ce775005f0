package skills

import (
	"context"
	"math"
	"testing"
)

func handlerByName(t *testing.T, name string) Handler {
	t.Helper()
	for _, reg := range Builtin() {
		if reg.Descriptor.Name == name {
			return reg.Handler
		}
	}
	t.Fatalf("builtin skill %q not found", name)
	return nil
}

func TestBuiltinDescriptorsWellFormed(t *testing.T) {
	seen := map[string]bool{}
	for _, reg := range Builtin() {
		d := reg.Descriptor
		if d.Name == "" || d.Description == "" {
			t.Errorf("descriptor %+v missing name or description", d)
		}
		if !d.Tier.Valid() {
			t.Errorf("skill %q has invalid tier %q", d.Name, d.Tier)
		}
		if len(d.ParameterSchema) == 0 {
			t.Errorf("skill %q has empty parameter schema", d.Name)
		}
		if seen[d.Name] {
			t.Errorf("duplicate builtin skill name %q", d.Name)
		}
		seen[d.Name] = true
		if reg.Handler == nil {
			t.Errorf("skill %q has nil handler", d.Name)
		}
	}
}

func TestLoanAmortization(t *testing.T) {
	h := handlerByName(t, "loan_amortization_calculator")

	data, err := h(context.Background(), map[string]any{
		"principal":   float64(100000),
		"annual_rate": 0.06,
		"term_months": float64(360),
	})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	// Standard 30y/6% mortgage payment is ~599.55.
	payment := data["monthly_payment"].(float64)
	if math.Abs(payment-599.55) > 0.05 {
		t.Errorf("monthly_payment = %v, want ~599.55", payment)
	}
	schedule := data["schedule"].([]map[string]any)
	if len(schedule) != 360 {
		t.Errorf("expected 360 schedule rows, got %d", len(schedule))
	}
	last := schedule[len(schedule)-1]
	if bal := last["remaining_balance"].(float64); bal > 1 {
		t.Errorf("final balance should be ~0, got %v", bal)
	}
}

func TestLoanAmortizationRejectsNonPositive(t *testing.T) {
	h := handlerByName(t, "loan_amortization_calculator")
	_, err := h(context.Background(), map[string]any{
		"principal":   float64(-1),
		"annual_rate": 0.06,
		"term_months": float64(12),
	})
	if err == nil {
		t.Error("expected validation error for negative principal")
	}
}

func TestCompoundInterest(t *testing.T) {
	h := handlerByName(t, "compound_interest_calculator")

	data, err := h(context.Background(), map[string]any{
		"principal":          float64(1000),
		"annual_rate":        0.12,
		"years":              float64(1),
		"compounds_per_year": float64(12),
	})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	// 1000 * (1.01)^12 ≈ 1126.83
	fv := data["future_value"].(float64)
	if math.Abs(fv-1126.83) > 0.01 {
		t.Errorf("future_value = %v, want ~1126.83", fv)
	}
}

func TestNPV(t *testing.T) {
	h := handlerByName(t, "npv_calculator")

	data, err := h(context.Background(), map[string]any{
		"discount_rate":      0.1,
		"initial_investment": float64(1000),
		"cash_flows":         []any{float64(500), float64(500), float64(500)},
	})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	// PV of 500/yr for 3y @10% ≈ 1243.43 → NPV ≈ 243.43
	npv := data["npv"].(float64)
	if math.Abs(npv-243.43) > 0.01 {
		t.Errorf("npv = %v, want ~243.43", npv)
	}
	if accept := data["accept"].(bool); !accept {
		t.Error("positive NPV project should be accepted")
	}
}

func TestFXOptionPricerPutCallParity(t *testing.T) {
	h := handlerByName(t, "fx_option_pricer")
	base := map[string]any{
		"spot":          1.10,
		"strike":        1.10,
		"domestic_rate": 0.05,
		"foreign_rate":  0.03,
		"volatility":    0.10,
		"years":         1.0,
	}

	call := map[string]any{"option_type": "call"}
	put := map[string]any{"option_type": "put"}
	for k, v := range base {
		call[k] = v
		put[k] = v
	}

	cData, err := h(context.Background(), call)
	if err != nil {
		t.Fatalf("call pricing failed: %v", err)
	}
	pData, err := h(context.Background(), put)
	if err != nil {
		t.Fatalf("put pricing failed: %v", err)
	}

	// C - P = S*e^(-rf*T) - K*e^(-rd*T)
	c := cData["price"].(float64)
	p := pData["price"].(float64)
	parity := 1.10*math.Exp(-0.03) - 1.10*math.Exp(-0.05)
	if math.Abs((c-p)-parity) > 1e-4 {
		t.Errorf("put-call parity violated: C-P = %v, want %v", c-p, parity)
	}
}

func TestPortfolioStressTester(t *testing.T) {
	h := handlerByName(t, "portfolio_stress_tester")

	data, err := h(context.Background(), map[string]any{
		"scenario": "gfc_2008",
		"positions": []any{
			map[string]any{"asset_class": "equity", "value": float64(1000)},
			map[string]any{"asset_class": "cash", "value": float64(1000)},
		},
	})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	// equity -45%, cash flat → total 2000 → 1550, drawdown -22.5%
	if after := data["value_after"].(float64); math.Abs(after-1550) > 0.01 {
		t.Errorf("value_after = %v, want 1550", after)
	}
	if dd := data["drawdown_pct"].(float64); math.Abs(dd+22.5) > 0.01 {
		t.Errorf("drawdown_pct = %v, want -22.5", dd)
	}

	if _, err := h(context.Background(), map[string]any{
		"scenario":  "unknown",
		"positions": []any{map[string]any{"asset_class": "equity", "value": float64(1)}},
	}); err == nil {
		t.Error("unknown scenario should fail")
	}
}

func TestOptionsStrategyAnalyzer(t *testing.T) {
	h := handlerByName(t, "options_strategy_analyzer")

	// Long straddle at 100, 5 premium per leg.
	data, err := h(context.Background(), map[string]any{
		"legs": []any{
			map[string]any{"type": "call", "strike": float64(100), "premium": float64(5)},
			map[string]any{"type": "put", "strike": float64(100), "premium": float64(5)},
		},
	})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	// Max loss of a long straddle is the total premium paid.
	if ml := data["max_loss"].(float64); math.Abs(ml+10) > 0.5 {
		t.Errorf("max_loss = %v, want ~-10", ml)
	}
	breakevens := data["breakevens"].([]float64)
	if len(breakevens) != 2 {
		t.Errorf("straddle should have 2 breakevens, got %v", breakevens)
	}
}
