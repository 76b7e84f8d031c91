package domain

import (
	"encoding/json"
	"fmt"
)

// Node type discriminators. These are the literal values carried in each
// node's "type" JSON field; the evaluator switches on them directly rather
// than relying on Go's own type system, mirroring the tagged-union shape of
// the strategy definition as authored by users.
const (
	NodeValue              = "VALUE"
	NodeIndicatorValue     = "INDICATOR_VALUE"
	NodePrevIndicatorValue = "PREV_INDICATOR_VALUE"

	NodeGreaterThan   = "GREATER_THAN"
	NodeLessThan      = "LESS_THAN"
	NodeEquals        = "EQUALS"
	NodeCrossoverUp   = "CROSSOVER_UP"
	NodeCrossoverDown = "CROSSOVER_DOWN"
	NodeSuperTrendFlip = "SUPER_TREND_FLIP"

	NodeAnd = "AND"
	NodeOr  = "OR"

	StopLossIndicatorBased = "INDICATOR_BASED"
	StopLossPercentage     = "PERCENTAGE"

	TakeProfitPercentage  = "PERCENTAGE"
	TakeProfitRiskReward  = "RISK_REWARD"

	TargetOppositeToPosition = "OPPOSITE_TO_POSITION"
)

// ValueNode is any node that resolves to a per-candle scalar: a constant, a
// current-candle indicator lookup, or a previous-candle indicator lookup.
type ValueNode struct {
	Type  string  `json:"type"`
	Value float64 `json:"value,omitempty"`
	Key   string  `json:"key,omitempty"`
}

func (v ValueNode) Validate() error {
	switch v.Type {
	case NodeValue:
		return nil
	case NodeIndicatorValue, NodePrevIndicatorValue:
		if v.Key == "" {
			return errValidationf("%s node: key is required", v.Type)
		}
		return nil
	default:
		return errValidationf("unknown value node type %q", v.Type)
	}
}

// ConditionNode is any node that resolves to a per-candle boolean:
// comparisons, crossovers, logical combinators, and position-aware special
// conditions. Exactly one of the type-specific field groups is populated,
// selected by Type.
type ConditionNode struct {
	Type string `json:"type"`

	// GREATER_THAN | LESS_THAN | EQUALS
	Left  *ValueNode `json:"left,omitempty"`
	Right *ValueNode `json:"right,omitempty"`

	// CROSSOVER_UP | CROSSOVER_DOWN
	Line1 *ValueNode `json:"line1,omitempty"`
	Line2 *ValueNode `json:"line2,omitempty"`

	// SUPER_TREND_FLIP (and any future position-aware special condition)
	IndicatorKey    string `json:"indicator_key,omitempty"`
	SignalKey       string `json:"signal_key,omitempty"`
	TargetDirection string `json:"target_direction,omitempty"`

	// AND | OR
	Conditions []ConditionNode `json:"conditions,omitempty"`
}

func (c ConditionNode) Validate() error {
	switch c.Type {
	case NodeGreaterThan, NodeLessThan, NodeEquals:
		if c.Left == nil || c.Right == nil {
			return errValidationf("%s node: left and right are required", c.Type)
		}
		if err := c.Left.Validate(); err != nil {
			return err
		}
		return c.Right.Validate()
	case NodeCrossoverUp, NodeCrossoverDown:
		if c.Line1 == nil || c.Line2 == nil {
			return errValidationf("%s node: line1 and line2 are required", c.Type)
		}
		if err := c.Line1.Validate(); err != nil {
			return err
		}
		return c.Line2.Validate()
	case NodeSuperTrendFlip:
		if c.IndicatorKey == "" {
			return errValidationf("%s node: indicator_key is required", c.Type)
		}
		if c.TargetDirection != TargetOppositeToPosition {
			return errValidationf("%s node: target_direction must be %s", c.Type, TargetOppositeToPosition)
		}
		return nil
	case NodeAnd, NodeOr:
		if len(c.Conditions) == 0 {
			return errValidationf("%s node: at least one condition is required", c.Type)
		}
		for i := range c.Conditions {
			if err := c.Conditions[i].Validate(); err != nil {
				return err
			}
		}
		return nil
	default:
		return errValidationf("unknown condition node type %q", c.Type)
	}
}

// StopLoss is either an indicator-based trailing reference or a fixed
// percentage from entry.
type StopLoss struct {
	Type         string  `json:"type"`
	BuyValueKey  string  `json:"buy_value_key,omitempty"`
	SellValueKey string  `json:"sell_value_key,omitempty"`
	Percentage   float64 `json:"percentage,omitempty"`
}

func (s StopLoss) Validate() error {
	switch s.Type {
	case StopLossIndicatorBased:
		if s.BuyValueKey == "" && s.SellValueKey == "" {
			return errValidationf("INDICATOR_BASED stop loss: at least one of buy_value_key/sell_value_key is required")
		}
		return nil
	case StopLossPercentage:
		if s.Percentage <= 0 || s.Percentage > 50 {
			return errValidationf("PERCENTAGE stop loss: percentage must be in (0, 50], got %v", s.Percentage)
		}
		return nil
	default:
		return errValidationf("unknown stop loss type %q", s.Type)
	}
}

// TakeProfit is either a fixed percentage from entry or a risk-reward
// multiple of the stop-loss distance.
type TakeProfit struct {
	Type       string  `json:"type"`
	Percentage float64 `json:"percentage,omitempty"`
	Ratio      float64 `json:"ratio,omitempty"`
}

func (t TakeProfit) Validate() error {
	switch t.Type {
	case TakeProfitPercentage:
		if t.Percentage <= 0 || t.Percentage > 100 {
			return errValidationf("PERCENTAGE take profit: percentage must be in (0, 100], got %v", t.Percentage)
		}
		return nil
	case TakeProfitRiskReward:
		if t.Ratio <= 0 {
			return errValidationf("RISK_REWARD take profit: ratio must be > 0, got %v", t.Ratio)
		}
		return nil
	default:
		return errValidationf("unknown take profit type %q", t.Type)
	}
}

// StrategyDefinition is the JSON AST a strategy's definition column holds.
// A definition is valid iff at least one entry branch is present.
type StrategyDefinition struct {
	EntryBuyConditions  *ConditionNode `json:"entry_buy_conditions,omitempty"`
	EntrySellConditions *ConditionNode `json:"entry_sell_conditions,omitempty"`
	ExitConditions      *ConditionNode `json:"exit_conditions,omitempty"`
	StopLoss            *StopLoss      `json:"stop_loss,omitempty"`
	TakeProfit          *TakeProfit    `json:"take_profit,omitempty"`
}

func (d StrategyDefinition) Validate() error {
	if d.EntryBuyConditions == nil && d.EntrySellConditions == nil {
		return errValidationf("strategy definition: at least one of entry_buy_conditions/entry_sell_conditions is required")
	}
	for _, n := range []*ConditionNode{d.EntryBuyConditions, d.EntrySellConditions, d.ExitConditions} {
		if n != nil {
			if err := n.Validate(); err != nil {
				return err
			}
		}
	}
	if d.StopLoss != nil {
		if err := d.StopLoss.Validate(); err != nil {
			return err
		}
	}
	if d.TakeProfit != nil {
		if err := d.TakeProfit.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ParseStrategyDefinition decodes a raw JSON definition column.
func ParseStrategyDefinition(raw []byte) (StrategyDefinition, error) {
	var d StrategyDefinition
	if err := json.Unmarshal(raw, &d); err != nil {
		return StrategyDefinition{}, fmt.Errorf("parse strategy definition: %w", err)
	}
	return d, d.Validate()
}

// Strategy is a user-authored trading rule set, versioned by updated_at.
// Backtests snapshot Definition at submission time rather than following
// later edits.
type Strategy struct {
	ID          string              `db:"id" json:"id"`
	UserID      string              `db:"user_id" json:"userId"`
	Name        string              `db:"name" json:"name"`
	Description string              `db:"description" json:"description"`
	Definition  StrategyDefinition  `db:"-" json:"definition"`
	DefinitionRaw []byte            `db:"definition" json:"-"`
	IsDeleted   bool                `db:"is_deleted" json:"isDeleted"`
}
