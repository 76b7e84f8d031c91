package backtest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeforge-core/internal/domain"
	"tradeforge-core/internal/repository"
	"tradeforge-core/internal/service/dataavailability"
)

type fakeJobs struct {
	job             *domain.BacktestJob
	getErr          error
	transitionOK    bool
	transitionErr   error
	statusUpdates   []string
	lastErrMsg      *string
	savedResult     *domain.BacktestResult
	saveResultErr   error
}

func (f *fakeJobs) GetJob(ctx context.Context, id string) (*domain.BacktestJob, error) {
	return f.job, f.getErr
}
func (f *fakeJobs) CreateJob(ctx context.Context, job *domain.BacktestJob) error { return nil }
func (f *fakeJobs) UpdateJobStatus(ctx context.Context, id, status string, errMsg *string) error {
	f.statusUpdates = append(f.statusUpdates, status)
	f.lastErrMsg = errMsg
	return nil
}
func (f *fakeJobs) TransitionToRunning(ctx context.Context, id string) (bool, error) {
	return f.transitionOK, f.transitionErr
}
func (f *fakeJobs) SaveResult(ctx context.Context, result *domain.BacktestResult) error {
	f.savedResult = result
	return f.saveResultErr
}

type fakeTickers struct {
	ticker *domain.Ticker
	err    error
}

func (f *fakeTickers) GetBySymbol(ctx context.Context, symbol string) (*domain.Ticker, error) {
	return f.ticker, f.err
}

type fakeBatches struct {
	terminalCalls []bool
}

func (f *fakeBatches) GetByID(ctx context.Context, id string) (*domain.BacktestBatch, error) {
	return nil, nil
}
func (f *fakeBatches) CreateWithJobs(ctx context.Context, batch *domain.BacktestBatch, jobs []domain.BacktestJob) error {
	return nil
}
func (f *fakeBatches) RecordChildTerminal(ctx context.Context, batchID string, succeeded bool) (domain.BacktestBatch, error) {
	f.terminalCalls = append(f.terminalCalls, succeeded)
	return domain.BacktestBatch{}, nil
}

type fakeOrchCandleStore struct{}

func (f *fakeOrchCandleStore) UpsertBatch(ctx context.Context, candles []domain.Candle) error { return nil }
func (f *fakeOrchCandleStore) GetRange(ctx context.Context, ticker string, tf domain.Timeframe, start, end time.Time) ([]domain.Candle, error) {
	return nil, nil
}
func (f *fakeOrchCandleStore) GetLastN(ctx context.Context, ticker string, tf domain.Timeframe, n int) ([]domain.Candle, error) {
	return nil, nil
}
func (f *fakeOrchCandleStore) MaxBegin(ctx context.Context, ticker string, tf domain.Timeframe) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

type fakeOrchIndicatorStore struct{}

func (f *fakeOrchIndicatorStore) UpsertBatch(ctx context.Context, points []domain.IndicatorSeriesPoint) error {
	return nil
}
func (f *fakeOrchIndicatorStore) GetSeries(ctx context.Context, ticker string, tf domain.Timeframe, indicatorKey string, start, end time.Time) ([]domain.IndicatorSeriesPoint, error) {
	return nil, nil
}
func (f *fakeOrchIndicatorStore) Coverage(ctx context.Context, ticker string, tf domain.Timeframe, keys []string, start, end time.Time) (map[string]int, error) {
	return nil, nil
}

type fakeAvailability struct {
	result repository.AvailabilityResult
	err    error
}

func (f *fakeAvailability) CheckAvailability(ctx context.Context, ticker string, tf domain.Timeframe, start, end time.Time, maxLookback int, indicatorKeys []string) (repository.AvailabilityResult, error) {
	return f.result, f.err
}

type fakeIndicatorReqs struct {
	requested bool
	keys      []string
	err       error
}

func (f *fakeIndicatorReqs) RequestCalculation(ctx context.Context, jobID string, ticker string, tf domain.Timeframe, start, end time.Time, indicatorKeys []string) error {
	f.requested = true
	f.keys = indicatorKeys
	return f.err
}

func simpleStrategyJSON(t *testing.T) []byte {
	def := domain.StrategyDefinition{
		EntryBuyConditions: &domain.ConditionNode{
			Type:  domain.NodeGreaterThan,
			Left:  &domain.ValueNode{Type: domain.NodeIndicatorValue, Key: "rsi_timeperiod_14"},
			Right: &domain.ValueNode{Type: domain.NodeValue, Value: 30},
		},
	}
	raw, err := json.Marshal(def)
	require.NoError(t, err)
	return raw
}

func baseJob() *domain.BacktestJob {
	return &domain.BacktestJob{
		ID:        "job-1",
		Ticker:    "RELIANCE",
		Timeframe: domain.Timeframe1Min,
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		Status:    domain.BacktestStatusPending,
	}
}

func TestProcess_RefusesTerminalJob(t *testing.T) {
	job := baseJob()
	job.Status = domain.BacktestStatusCompleted
	jobs := &fakeJobs{job: job}
	o := &Orchestrator{Jobs: jobs}

	err := o.Process(context.Background(), "job-1", false)
	assert.Error(t, err)
	assert.Empty(t, jobs.statusUpdates)
}

func TestProcess_FailsOnInvalidStrategyDefinition(t *testing.T) {
	job := baseJob()
	job.StrategyDefinitionSnapshot = []byte(`not json`)
	jobs := &fakeJobs{job: job, transitionOK: true}
	batches := &fakeBatches{}
	o := &Orchestrator{Jobs: jobs, Batches: batches}

	err := o.Process(context.Background(), "job-1", false)
	assert.Error(t, err)
	require.Len(t, jobs.statusUpdates, 1)
	assert.Equal(t, domain.BacktestStatusFailed, jobs.statusUpdates[0])
}

func TestProcess_FailsWhenLookbackInsufficient(t *testing.T) {
	job := baseJob()
	job.StrategyDefinitionSnapshot = simpleStrategyJSON(t)
	jobs := &fakeJobs{job: job, transitionOK: true}
	batchID := "batch-1"
	job.BatchID = &batchID
	batches := &fakeBatches{}
	availability := dataavailability.NewChecker(&fakeAvailability{result: repository.AvailabilityResult{LookbackCandlesCount: 0}})
	o := &Orchestrator{Jobs: jobs, Batches: batches, Availability: availability}

	err := o.Process(context.Background(), "job-1", false)
	assert.Error(t, err)
	require.Len(t, jobs.statusUpdates, 1)
	assert.Equal(t, domain.BacktestStatusFailed, jobs.statusUpdates[0])
	require.Len(t, batches.terminalCalls, 1)
	assert.False(t, batches.terminalCalls[0])
}

func TestProcess_RequestsIndicatorCalculationWhenCoverageMissing(t *testing.T) {
	job := baseJob()
	job.StrategyDefinitionSnapshot = simpleStrategyJSON(t)
	jobs := &fakeJobs{job: job, transitionOK: true}
	first := job.StartDate
	last := job.EndDate
	availability := dataavailability.NewChecker(&fakeAvailability{result: repository.AvailabilityResult{
		PeriodFirstCandle:    &first,
		PeriodLastCandle:     &last,
		LookbackCandlesCount: 1000,
		IndicatorCoverage:    map[string]int{"rsi_timeperiod_14": 0},
	}})
	reqs := &fakeIndicatorReqs{}
	o := &Orchestrator{Jobs: jobs, Availability: availability, IndicatorReqs: reqs}

	err := o.Process(context.Background(), "job-1", false)
	require.NoError(t, err)
	assert.True(t, reqs.requested)
	assert.Equal(t, []string{"rsi_timeperiod_14"}, reqs.keys)
	assert.Empty(t, jobs.statusUpdates, "job should remain RUNNING, not be marked terminal")
}

func TestProcess_TransitionFailureIsFatal(t *testing.T) {
	job := baseJob()
	jobs := &fakeJobs{job: job, transitionOK: false}
	o := &Orchestrator{Jobs: jobs}

	err := o.Process(context.Background(), "job-1", false)
	assert.Error(t, err)
}

func TestHandleIndicatorCalculationResponse_FailureMarksJobFailed(t *testing.T) {
	job := baseJob()
	job.Status = domain.BacktestStatusRunning
	jobs := &fakeJobs{job: job}
	batches := &fakeBatches{}
	o := &Orchestrator{Jobs: jobs, Batches: batches}

	err := o.HandleIndicatorCalculationResponse(context.Background(), "job-1", false)
	assert.Error(t, err)
	require.Len(t, jobs.statusUpdates, 1)
	assert.Equal(t, domain.BacktestStatusFailed, jobs.statusUpdates[0])
}

func TestHandleIndicatorCalculationResponse_SuccessReentersProcessSkippingCheckData(t *testing.T) {
	job := baseJob()
	job.StrategyDefinitionSnapshot = simpleStrategyJSON(t)
	job.Status = domain.BacktestStatusRunning
	jobs := &fakeJobs{job: job, transitionOK: true}
	tickers := &fakeTickers{err: assert.AnError} // force a deterministic, early SIMULATE-stage error
	o := &Orchestrator{Jobs: jobs, Tickers: tickers}

	err := o.HandleIndicatorCalculationResponse(context.Background(), "job-1", true)
	// Reaches the SIMULATE stage (ticker lookup) rather than re-running
	// CHECK_DATA, proving skipIndicatorCheck was honored.
	assert.Error(t, err)
}
