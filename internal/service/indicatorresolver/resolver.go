// Package indicatorresolver walks a strategy's AST and derives the set of
// indicator series it needs and how far back in history those series must
// be materialized before a backtest over [start, end] can run.
package indicatorresolver

import (
	"sort"

	"tradeforge-core/internal/domain"
)

// Requirement is one indicator the strategy references, parsed back into
// its family/params form alongside the raw key as written in the AST.
type Requirement struct {
	Key string
	Def domain.IndicatorDef
}

// Resolution is the result of walking a strategy definition: the full set
// of required indicators (deduplicated by key) and the single largest
// lookback window among them.
type Resolution struct {
	Requirements []Requirement
	MaxLookback  int
}

// Resolve collects every indicator_key referenced anywhere in def — value
// nodes, special condition nodes, and indicator-based stop-loss references —
// and computes MaxLookback across all of them.
func Resolve(def domain.StrategyDefinition) (Resolution, error) {
	seen := map[string]Requirement{}

	collect := func(key string) error {
		if key == "" {
			return nil
		}
		if _, ok := seen[key]; ok {
			return nil
		}
		parsed, _, err := domain.ParseIndicatorKey(key)
		if err != nil {
			return err
		}
		seen[key] = Requirement{Key: key, Def: parsed}
		return nil
	}

	var walkValue func(v *domain.ValueNode) error
	walkValue = func(v *domain.ValueNode) error {
		if v == nil {
			return nil
		}
		switch v.Type {
		case domain.NodeIndicatorValue, domain.NodePrevIndicatorValue:
			return collect(v.Key)
		}
		return nil
	}

	var walkCondition func(c *domain.ConditionNode) error
	walkCondition = func(c *domain.ConditionNode) error {
		if c == nil {
			return nil
		}
		switch c.Type {
		case domain.NodeGreaterThan, domain.NodeLessThan, domain.NodeEquals:
			if err := walkValue(c.Left); err != nil {
				return err
			}
			return walkValue(c.Right)
		case domain.NodeCrossoverUp, domain.NodeCrossoverDown:
			if err := walkValue(c.Line1); err != nil {
				return err
			}
			return walkValue(c.Line2)
		case domain.NodeSuperTrendFlip:
			if err := collect(c.IndicatorKey); err != nil {
				return err
			}
			return collect(c.SignalKey)
		case domain.NodeAnd, domain.NodeOr:
			for i := range c.Conditions {
				if err := walkCondition(&c.Conditions[i]); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walkCondition(def.EntryBuyConditions); err != nil {
		return Resolution{}, err
	}
	if err := walkCondition(def.EntrySellConditions); err != nil {
		return Resolution{}, err
	}
	if err := walkCondition(def.ExitConditions); err != nil {
		return Resolution{}, err
	}
	if def.StopLoss != nil && def.StopLoss.Type == domain.StopLossIndicatorBased {
		if err := collect(def.StopLoss.BuyValueKey); err != nil {
			return Resolution{}, err
		}
		if err := collect(def.StopLoss.SellValueKey); err != nil {
			return Resolution{}, err
		}
	}

	reqs := make([]Requirement, 0, len(seen))
	maxLookback := 0
	for _, r := range seen {
		reqs = append(reqs, r)
		if l := r.Def.Lookback(); l > maxLookback {
			maxLookback = l
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].Key < reqs[j].Key })

	return Resolution{Requirements: reqs, MaxLookback: maxLookback}, nil
}
