package backtest

import (
	"time"

	"tradeforge-core/internal/domain"
	"tradeforge-core/pkg/apperrors"
)

// ProgressTracker enforces the wall-clock timeout guard from spec §4.4.F
// and computes 10% progress thresholds (ProgressFraction). It does not log
// anything itself, and the simulator does not call ProgressFraction. It
// reads time through an injected Now
// func so the deterministic trade ledger and metrics never depend on it —
// only the guard's pass/fail outcome can vary across runs, and a breach is
// itself the one explicitly-permitted escape hatch (an abort, not a
// difference in output).
type ProgressTracker struct {
	Now             func() time.Time
	start           time.Time
	nextLogThreshold float64
	correlationID   string
}

func NewProgressTracker(now func() time.Time, correlationID string) *ProgressTracker {
	if now == nil {
		now = time.Now
	}
	return &ProgressTracker{
		Now:              now,
		start:            now(),
		nextLogThreshold: domain.SimulationProgressLogInterval,
		correlationID:    correlationID,
	}
}

// CheckTimeout is called every domain.SimulationTimeoutCheckInterval
// candles. It returns a retryable BacktestExecutionError if the simulation
// has run longer than domain.SimulationTimeoutSeconds.
func (p *ProgressTracker) CheckTimeout(candleIndex int) error {
	if candleIndex%domain.SimulationTimeoutCheckInterval != 0 {
		return nil
	}
	elapsed := p.Now().Sub(p.start)
	if elapsed.Seconds() > float64(domain.SimulationTimeoutSeconds) {
		return apperrors.NewBacktestExecutionError(
			"simulation exceeded timeout",
			true,
			nil,
		)
	}
	return nil
}

// ProgressFraction reports whether the simulation has crossed the next 10%
// logging threshold, returning (fraction, true) the first time it has and
// advancing the threshold; (0, false) otherwise.
func (p *ProgressTracker) ProgressFraction(candleIndex, total int) (float64, bool) {
	if total <= 0 {
		return 0, false
	}
	frac := float64(candleIndex) / float64(total)
	if frac < p.nextLogThreshold {
		return 0, false
	}
	reported := p.nextLogThreshold
	for p.nextLogThreshold <= frac {
		p.nextLogThreshold += domain.SimulationProgressLogInterval
	}
	return reported, true
}

func (p *ProgressTracker) TotalElapsed() time.Duration {
	return p.Now().Sub(p.start)
}
