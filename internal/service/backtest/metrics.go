package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"tradeforge-core/internal/domain"
)

// ComputeMetrics derives the full performance summary from a closed trade
// ledger, per spec §4.4's metrics list. All inputs are the trade records
// themselves plus the account's starting balance; nothing here reads wall
// clock or external state, so metrics are as deterministic as the ledger
// that produced them.
func ComputeMetrics(trades []domain.BacktestTrade, initialBalance float64) domain.BacktestMetrics {
	m := domain.BacktestMetrics{
		TotalTrades:    len(trades),
		InitialBalance: initialBalance,
		FinalBalance:   initialBalance,
	}
	if len(trades) == 0 {
		return m
	}

	m.FinalBalance = trades[len(trades)-1].ExitCapital

	var grossProfitSum, netProfitSum float64
	var winSum, lossSum float64
	netReturns := make([]float64, len(trades))

	currentWinStreak, currentLossStreak := 0, 0

	equity := make([]float64, len(trades)+1)
	equity[0] = initialBalance

	for i, t := range trades {
		grossProfitSum += t.GrossProfitAbs
		netProfitSum += t.NetProfitAbs
		netReturns[i] = t.NetProfitPctOnCapital()
		equity[i+1] = t.ExitCapital

		if t.NetProfitAbs > 0 {
			m.Wins++
			winSum += t.NetProfitPctOnCapital()
			currentWinStreak++
			currentLossStreak = 0
		} else if t.NetProfitAbs < 0 {
			m.Losses++
			lossSum += t.NetProfitPctOnCapital()
			currentLossStreak++
			currentWinStreak = 0
		} else {
			currentWinStreak, currentLossStreak = 0, 0
		}
		if currentWinStreak > m.MaxConsecutiveWins {
			m.MaxConsecutiveWins = currentWinStreak
		}
		if currentLossStreak > m.MaxConsecutiveLosses {
			m.MaxConsecutiveLosses = currentLossStreak
		}
	}

	m.WinRate = 100 * float64(m.Wins) / float64(m.TotalTrades)
	m.GrossProfitPct = 100 * grossProfitSum / initialBalance
	m.NetProfitPct = 100 * netProfitSum / initialBalance

	if m.Wins > 0 {
		m.AvgWinPct = winSum / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLossPct = lossSum / float64(m.Losses)
		m.ProfitFactor = winSum / math.Abs(lossSum)
	} else if winSum > 0 {
		m.ProfitFactor = math.Inf(1)
	}

	m.MaxDrawdownPct = maxDrawdownPct(equity)

	mean := stat.Mean(netReturns, nil)
	stddev := stat.StdDev(netReturns, nil)
	m.NetProfitStdDev = stddev
	if stddev > 0 {
		m.SharpeRatio = mean / stddev
	}

	m.StabilityScore = stabilityR2(equity)

	return m
}

// maxDrawdownPct walks the equity curve tracking the running peak and
// reports the largest trough-vs-peak decline as a percentage.
func maxDrawdownPct(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := 100 * (peak - v) / peak
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// stabilityR2 fits the equity curve against its point index (0 for the
// starting balance, then one point per closed trade) and
// returns the R² of that linear fit — a measure of how close to a straight
// line the growth is. No risk-free rate or annualization is applied,
// matching the original engine's definition.
func stabilityR2(equity []float64) float64 {
	n := len(equity)
	if n < 2 {
		return 0
	}
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(xs, equity, nil, false)
	var ssRes, ssTot float64
	mean := stat.Mean(equity, nil)
	for i, y := range equity {
		pred := alpha + beta*xs[i]
		ssRes += (y - pred) * (y - pred)
		ssTot += (y - mean) * (y - mean)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}
