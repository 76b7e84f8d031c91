package indicatorresolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeforge-core/internal/domain"
)

func TestResolve_CollectsFromComparisonAndDeduplicates(t *testing.T) {
	def := domain.StrategyDefinition{
		EntryBuyConditions: &domain.ConditionNode{
			Type:  domain.NodeGreaterThan,
			Left:  &domain.ValueNode{Type: domain.NodeIndicatorValue, Key: "rsi_timeperiod_14"},
			Right: &domain.ValueNode{Type: domain.NodeValue, Value: 70},
		},
		ExitConditions: &domain.ConditionNode{
			Type:  domain.NodeLessThan,
			Left:  &domain.ValueNode{Type: domain.NodeIndicatorValue, Key: "rsi_timeperiod_14"},
			Right: &domain.ValueNode{Type: domain.NodeValue, Value: 30},
		},
	}

	res, err := Resolve(def)
	require.NoError(t, err)
	require.Len(t, res.Requirements, 1)
	assert.Equal(t, "rsi_timeperiod_14", res.Requirements[0].Key)
	assert.Equal(t, "rsi", res.Requirements[0].Def.Name)
	assert.Equal(t, 28, res.MaxLookback)
}

func TestResolve_CrossoverAndSuperTrendFlip(t *testing.T) {
	def := domain.StrategyDefinition{
		EntryBuyConditions: &domain.ConditionNode{
			Type:  domain.NodeCrossoverUp,
			Line1: &domain.ValueNode{Type: domain.NodeIndicatorValue, Key: "ema_timeperiod_9"},
			Line2: &domain.ValueNode{Type: domain.NodeIndicatorValue, Key: "ema_timeperiod_21"},
		},
		ExitConditions: &domain.ConditionNode{
			Type:            domain.NodeSuperTrendFlip,
			IndicatorKey:    "supertrend_period_10_multiplier_3",
			SignalKey:       "supertrend_period_10_multiplier_3",
			TargetDirection: domain.TargetOppositeToPosition,
		},
	}

	res, err := Resolve(def)
	require.NoError(t, err)

	keys := make([]string, len(res.Requirements))
	for i, r := range res.Requirements {
		keys[i] = r.Key
	}
	assert.ElementsMatch(t, []string{"ema_timeperiod_9", "ema_timeperiod_21", "supertrend_period_10_multiplier_3"}, keys)
	assert.Equal(t, 42, res.MaxLookback) // ema_9 -> 18, ema_21 -> 42, supertrend_10 -> 20
}

func TestResolve_AndOrNestingAndPrevIndicator(t *testing.T) {
	def := domain.StrategyDefinition{
		EntryBuyConditions: &domain.ConditionNode{
			Type: domain.NodeAnd,
			Conditions: []domain.ConditionNode{
				{
					Type:  domain.NodeGreaterThan,
					Left:  &domain.ValueNode{Type: domain.NodePrevIndicatorValue, Key: "sma_timeperiod_20"},
					Right: &domain.ValueNode{Type: domain.NodeValue, Value: 100},
				},
				{
					Type:  domain.NodeEquals,
					Left:  &domain.ValueNode{Type: domain.NodeIndicatorValue, Key: "macd_fastperiod_12_signalperiod_9_slowperiod_26"},
					Right: &domain.ValueNode{Type: domain.NodeValue, Value: 0},
				},
			},
		},
	}

	res, err := Resolve(def)
	require.NoError(t, err)
	require.Len(t, res.Requirements, 2)
}

func TestResolve_IndicatorBasedStopLoss(t *testing.T) {
	def := domain.StrategyDefinition{
		EntryBuyConditions: &domain.ConditionNode{
			Type:  domain.NodeGreaterThan,
			Left:  &domain.ValueNode{Type: domain.NodeValue, Value: 1},
			Right: &domain.ValueNode{Type: domain.NodeValue, Value: 0},
		},
		StopLoss: &domain.StopLoss{
			Type:        domain.StopLossIndicatorBased,
			BuyValueKey: "supertrend_period_7_multiplier_2",
		},
	}

	res, err := Resolve(def)
	require.NoError(t, err)
	require.Len(t, res.Requirements, 1)
	assert.Equal(t, "supertrend_period_7_multiplier_2", res.Requirements[0].Key)
}

func TestResolve_PropagatesParseError(t *testing.T) {
	def := domain.StrategyDefinition{
		EntryBuyConditions: &domain.ConditionNode{
			Type:  domain.NodeGreaterThan,
			Left:  &domain.ValueNode{Type: domain.NodeIndicatorValue, Key: "close"},
			Right: &domain.ValueNode{Type: domain.NodeValue, Value: 0},
		},
	}

	_, err := Resolve(def)
	assert.Error(t, err)
}
