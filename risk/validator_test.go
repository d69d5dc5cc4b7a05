package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T, mutate func(*ValidatorConfig)) *WeightValidator {
	t.Helper()

	cfg := DefaultValidatorConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	v, err := NewWeightValidator(cfg, zerolog.Nop())
	require.NoError(t, err)
	return v
}

func TestValidatorConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*ValidatorConfig)
		wantErr bool
		errMsg  string
	}{
		{name: "defaults", mutate: func(*ValidatorConfig) {}},
		{
			name:    "zero max position",
			mutate:  func(c *ValidatorConfig) { c.MaxPositionSize = 0 },
			wantErr: true,
			errMsg:  "max_position_size",
		},
		{
			name:    "max position above one",
			mutate:  func(c *ValidatorConfig) { c.MaxPositionSize = 1.5 },
			wantErr: true,
			errMsg:  "max_position_size",
		},
		{
			name:    "zero exposure",
			mutate:  func(c *ValidatorConfig) { c.MaxTotalExposure = 0 },
			wantErr: true,
			errMsg:  "max_total_exposure",
		},
		{
			name:    "negative cash",
			mutate:  func(c *ValidatorConfig) { c.MinCashReserve = -0.1 },
			wantErr: true,
			errMsg:  "min_cash_reserve",
		},
		{
			name:    "cash of one",
			mutate:  func(c *ValidatorConfig) { c.MinCashReserve = 1 },
			wantErr: true,
			errMsg:  "min_cash_reserve",
		},
		{
			name: "exposure plus cash above one",
			mutate: func(c *ValidatorConfig) {
				c.MaxTotalExposure = 0.90
				c.MinCashReserve = 0.15
			},
			wantErr: true,
			errMsg:  "max_total_exposure (0.9) + min_cash_reserve (0.15) cannot exceed 1.0",
		},
		{
			name: "exposure plus cash exactly one",
			mutate: func(c *ValidatorConfig) {
				c.MaxTotalExposure = 0.95
				c.MinCashReserve = 0.05
			},
		},
		{
			name:    "zero stop loss",
			mutate:  func(c *ValidatorConfig) { c.StopLossPct = 0 },
			wantErr: true,
			errMsg:  "stop_loss_pct",
		},
		{
			name:    "negative trailing",
			mutate:  func(c *ValidatorConfig) { c.TrailingStopPct = floatPtr(-0.01) },
			wantErr: true,
			errMsg:  "trailing_stop_pct",
		},
		{
			name:   "trailing disabled",
			mutate: func(c *ValidatorConfig) { c.TrailingStopPct = nil },
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultValidatorConfig()
			tt.mutate(&cfg)

			_, err := NewWeightValidator(cfg, zerolog.Nop())
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateWeightsCapsPositions(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t, nil)
	res := v.ValidateWeights(Weights{"AAPL": 0.30, "MSFT": 0.15, "Cash": 0.55})

	assert.Equal(t, ActionAdjust, res.Action)
	assert.True(t, res.IsCompliant)
	assert.InDelta(t, 0.20, res.AdjustedWeights["AAPL"], 1e-9)
	assert.InDelta(t, 0.15, res.AdjustedWeights["MSFT"], 1e-9)
	assert.InDelta(t, 0.65, res.AdjustedWeights["Cash"], 1e-9)
	assert.Equal(t, []string{"AAPL weight 30.0% exceeds limit 20.0%"}, res.Violations)
	assert.Equal(t, []string{"Capped 1 position(s) at 20%"}, res.Adjustments)
	assert.Equal(t, "Risk adjustments: Capped 1 position(s) at 20%", res.Message)
}

func TestValidateWeightsScalesExposure(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t, nil)
	in := Weights{"AAPL": 0.20, "MSFT": 0.20, "GOOGL": 0.20, "AMZN": 0.20, "NVDA": 0.15, "Cash": 0.05}
	res := v.ValidateWeights(in)

	assert.Equal(t, ActionAdjust, res.Action)
	assert.InDelta(t, 0.90, res.AdjustedWeights.Invested(), 1e-9)
	assert.InDelta(t, 0.10, res.AdjustedWeights["Cash"], 1e-9)
	assert.InDelta(t, 0.20*0.90/0.95, res.AdjustedWeights["AAPL"], 1e-9)
	assert.InDelta(t, 0.15*0.90/0.95, res.AdjustedWeights["NVDA"], 1e-9)
	assert.Equal(t, []string{"Total exposure 95.0% exceeds limit 90.0%"}, res.Violations)
	assert.Equal(t, []string{"Scaled exposure from 95.0% to 90.0%"}, res.Adjustments)
}

func TestValidateWeightsCapsThenScales(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t, nil)
	res := v.ValidateWeights(Weights{"A": 0.40, "B": 0.30, "C": 0.20, "D": 0.10})

	assert.Equal(t, ActionAdjust, res.Action)
	require.Len(t, res.Violations, 2)
	assert.Equal(t, "A weight 40.0% exceeds limit 20.0%", res.Violations[0])
	assert.Equal(t, "B weight 30.0% exceeds limit 20.0%", res.Violations[1])
	assert.Equal(t, "Capped 2 position(s) at 20%", res.Adjustments[0])
	assert.InDelta(t, 0.70, res.AdjustedWeights.Invested(), 1e-9)
	assert.InDelta(t, 0.30, res.AdjustedWeights["Cash"], 1e-9)
}

func TestValidateWeightsRaisesCashFloor(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t, nil)
	res := v.ValidateWeights(Weights{"A": 0.10, "Cash": 0.01})

	assert.Equal(t, ActionAdjust, res.Action)
	assert.Equal(t, []string{"Cash 1.0% below minimum 5.0%"}, res.Violations)
	assert.Equal(t, []string{"Increased cash reserve to 5%"}, res.Adjustments)
	assert.InDelta(t, 0.10, res.AdjustedWeights["A"], 1e-9)
	assert.InDelta(t, 1.0, res.AdjustedWeights.Total(), 1e-6)
	assert.GreaterOrEqual(t, res.AdjustedWeights["Cash"], 0.05)
}

func TestValidateWeightsApprove(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t, nil)
	in := Weights{"AAPL": 0.20, "MSFT": 0.20, "Cash": 0.60}
	res := v.ValidateWeights(in)

	assert.Equal(t, ActionApprove, res.Action)
	assert.True(t, res.IsCompliant)
	assert.Equal(t, "All risk checks passed", res.Message)
	assert.Empty(t, res.Violations)
	assert.Equal(t, in, res.AdjustedWeights)
}

func TestValidateWeightsEmpty(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t, nil)
	res := v.ValidateWeights(Weights{})

	assert.Equal(t, ActionApprove, res.Action)
	assert.InDelta(t, 1.0, res.AdjustedWeights["Cash"], 1e-12)
}

func TestValidateWeightsRejectsNegative(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t, nil)
	in := Weights{"AAPL": -0.10, "MSFT": 0.20, "Cash": 0.90}
	res := v.ValidateWeights(in)

	assert.Equal(t, ActionReject, res.Action)
	assert.False(t, res.IsCompliant)
	assert.Equal(t, in, res.AdjustedWeights)
	assert.Equal(t, []string{"AAPL weight -10.0% is negative"}, res.Violations)

	res = v.ValidateWeights(Weights{"AAPL": math.NaN()})
	assert.Equal(t, ActionReject, res.Action)
	assert.Contains(t, res.Message, "not a finite number")

	res = v.ValidateWeights(Weights{"AAPL": 0.1, "Cash": -0.2})
	assert.Equal(t, ActionReject, res.Action)
}

func TestValidateWeightsDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t, nil)
	in := Weights{"AAPL": 0.50, "MSFT": 0.45, "Cash": 0.05}
	snapshot := in.Clone()

	res := v.ValidateWeights(in)
	assert.Equal(t, snapshot, in)
	assert.Equal(t, snapshot, res.OriginalWeights)

	res.OriginalWeights["AAPL"] = 0
	assert.Equal(t, 0.50, in["AAPL"])
}

func weightCases() []Weights {
	return []Weights{
		{"AAPL": 0.30, "MSFT": 0.15, "Cash": 0.55},
		{"AAPL": 0.20, "MSFT": 0.20, "GOOGL": 0.20, "AMZN": 0.20, "NVDA": 0.15, "Cash": 0.05},
		{"A": 0.40, "B": 0.30, "C": 0.20, "D": 0.10},
		{"A": 0.25, "B": 0.25, "C": 0.25, "D": 0.25},
		{"A": 1.0},
		{"A": 0.10, "Cash": 0.01},
		{"A": 0.19, "B": 0.19, "C": 0.19, "D": 0.19, "E": 0.19, "Cash": 0.05},
		{"A": 0.2, "B": 0.2, "C": 0.2, "D": 0.2, "E": 0.1, "Cash": 0.02},
		{"Cash": 1.0},
		{},
	}
}

func TestValidateWeightsInvariants(t *testing.T) {
	t.Parallel()

	configs := map[string]func(*ValidatorConfig){
		"static":  nil,
		"dynamic": func(c *ValidatorConfig) { c.MaxTotalExposure = 0.95 },
		"tight": func(c *ValidatorConfig) {
			c.MaxPositionSize = 0.10
			c.MaxTotalExposure = 0.60
			c.MinCashReserve = 0.30
		},
	}

	for name, mutate := range configs {
		v := newTestValidator(t, mutate)
		limit := v.Config().MaxPositionSize
		for _, w := range weightCases() {
			res := v.ValidateWeights(w)
			assert.InDelta(t, 1.0, res.AdjustedWeights.Total(), 1e-6, "%s: %v", name, w)
			for sym, wt := range res.AdjustedWeights {
				if sym == CashSymbol {
					continue
				}
				assert.LessOrEqual(t, wt, limit+1e-9, "%s: %s in %v", name, sym, w)
				assert.GreaterOrEqual(t, wt, 0.0)
			}
			assert.True(t, res.IsCompliant)
		}
	}
}

func TestValidateWeightsIdempotent(t *testing.T) {
	t.Parallel()

	for _, mutate := range []func(*ValidatorConfig){
		nil,
		func(c *ValidatorConfig) { c.MaxTotalExposure = 0.95 },
	} {
		v := newTestValidator(t, mutate)
		for _, w := range weightCases() {
			first := v.ValidateWeights(w)
			second := v.ValidateWeights(first.AdjustedWeights)
			assert.Equal(t, ActionApprove, second.Action, "input %v adjusted to %v: %v",
				w, first.AdjustedWeights, second.Violations)
		}
	}
}

func TestPositionAtCapIsCompliant(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t, nil)
	res := v.ValidateWeights(Weights{"AAPL": 0.20, "Cash": 0.80})
	assert.Equal(t, ActionApprove, res.Action)
}

func TestCheckPositionRisk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		entry       float64
		current     float64
		peak        float64
		noTrailing  bool
		wantTrigger TriggerType
		wantReason  string
	}{
		{
			name: "stop loss", entry: 100, current: 90, peak: 100,
			wantTrigger: TriggerStopLoss,
			wantReason:  "Stop-loss triggered (-10.0% loss)",
		},
		{
			name: "stop loss boundary is strict", entry: 100, current: 92, peak: 100,
			noTrailing: true,
		},
		{
			name: "trailing fires at stop loss boundary", entry: 100, current: 92, peak: 100,
			wantTrigger: TriggerTrailingStop,
			wantReason:  "Trailing stop (-8.0% from peak $100.00)",
		},
		{
			name: "trailing measured from higher peak", entry: 100, current: 92, peak: 110,
			wantTrigger: TriggerTrailingStop,
			wantReason:  "Trailing stop (-16.4% from peak $110.00)",
		},
		{
			name: "take profit", entry: 100, current: 130, peak: 130,
			wantTrigger: TriggerTakeProfit,
			wantReason:  "Take-profit triggered (30.0% gain)",
		},
		{
			name: "take profit boundary is strict", entry: 100, current: 125, peak: 125,
		},
		{
			name: "trailing stop", entry: 100, current: 108, peak: 115,
			wantTrigger: TriggerTrailingStop,
			wantReason:  "Trailing stop (-6.1% from peak $115.00)",
		},
		{
			name: "stop loss wins over trailing", entry: 100, current: 90, peak: 120,
			wantTrigger: TriggerStopLoss,
			wantReason:  "Stop-loss triggered (-10.0% loss)",
		},
		{
			name: "no trigger", entry: 100, current: 103, peak: 105,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := newTestValidator(t, func(c *ValidatorConfig) {
				if tt.noTrailing {
					c.TrailingStopPct = nil
				}
			})
			pr := NewPositionRisk("AAPL", tt.entry, tt.current, 10, tt.peak, 3)
			sig := v.CheckPositionRisk(pr)
			if tt.wantTrigger == "" {
				assert.Nil(t, sig)
				return
			}
			require.NotNil(t, sig)
			assert.Equal(t, tt.wantTrigger, sig.TriggerType)
			assert.Equal(t, tt.wantReason, sig.Reason)
			assert.Equal(t, "AAPL", sig.Symbol)
			assert.Equal(t, 10, sig.Shares)
			assert.Equal(t, tt.current, sig.CurrentPrice)
			assert.NotEmpty(t, sig.ID)
		})
	}
}

func TestCheckPositionRiskCustomStopLoss(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t, func(c *ValidatorConfig) { c.StopLossPct = 0.05 })
	sig := v.CheckPositionRisk(NewPositionRisk("AAPL", 100, 94, 5, 100, 0))
	require.NotNil(t, sig)
	assert.Equal(t, TriggerStopLoss, sig.TriggerType)
}

func TestCheckPositionRiskTrailingDisabled(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t, func(c *ValidatorConfig) { c.TrailingStopPct = nil })
	assert.Nil(t, v.CheckPositionRisk(NewPositionRisk("AAPL", 100, 100, 5, 150, 0)))
}

func TestCheckPositions(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t, nil)
	signals := CheckPositions(v, []PositionRisk{
		NewPositionRisk("AAPL", 100, 90, 1, 0, 0),
		NewPositionRisk("MSFT", 100, 101, 1, 0, 0),
		NewPositionRisk("NVDA", 100, 140, 1, 0, 0),
	})
	require.Len(t, signals, 2)
	assert.Equal(t, "AAPL", signals[0].Symbol)
	assert.Equal(t, "NVDA", signals[1].Symbol)

	adjusted, res := ValidateAndAdjust(v, Weights{"AAPL": 0.5, "Cash": 0.5})
	assert.Equal(t, res.AdjustedWeights, adjusted)
	assert.InDelta(t, 0.2, adjusted["AAPL"], 1e-9)
}

func TestNewPositionRisk(t *testing.T) {
	t.Parallel()

	pr := NewPositionRisk("AAPL", 100, 110, 10, 0, 2)
	assert.InDelta(t, 0.10, pr.PnLPct, 1e-12)
	assert.Equal(t, 110.0, pr.PeakPrice)
	assert.Zero(t, pr.DrawdownFromPeak)

	pr = NewPositionRisk("AAPL", 100, 90, 10, 95, 2)
	assert.Equal(t, 100.0, pr.PeakPrice, "peak raised to entry")
	assert.InDelta(t, -0.10, pr.DrawdownFromPeak, 1e-12)

	pr = NewPositionRisk("AAPL", 0, 90, 10, 0, 0)
	assert.Zero(t, pr.PnLPct)
}

func TestAllocationMetrics(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t, nil)
	m := v.AllocationMetrics(Weights{"AAPL": 0.30, "MSFT": 0.10, "Cash": 0.60})

	assert.InDelta(t, 0.40, m.TotalExposure, 1e-12)
	assert.InDelta(t, 0.60, m.CashWeight, 1e-12)
	assert.Equal(t, 2, m.PositionCount)
	assert.InDelta(t, 0.30, m.MaxPositionWeight, 1e-12)
	assert.InDelta(t, 0.10, m.HerfindahlIndex, 1e-12)
	assert.False(t, m.CompliantPositionSize)
	assert.True(t, m.CompliantExposure)
	assert.True(t, m.CompliantCash)

	empty := v.AllocationMetrics(Weights{})
	assert.Zero(t, empty.PositionCount)
	assert.Zero(t, empty.HerfindahlIndex)
	assert.False(t, empty.CompliantCash)
}
