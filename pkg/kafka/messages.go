package kafka

import "time"

// RawCandle is the payload on TopicCandlesRaw, keyed by "ticker:timeframe".
type RawCandle struct {
	Ticker    string    `json:"ticker"`
	Timeframe string    `json:"timeframe"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Value     *float64  `json:"value,omitempty"`
	Begin     time.Time `json:"begin"`
}

// ProcessedCandle is the payload on TopicCandlesProcessedRT: the raw candle
// plus one column per computed indicator, keyed by canonical indicator key.
type ProcessedCandle struct {
	RawCandle
	Indicators map[string]float64 `json:"indicators"`
}

// IndicatorSpec names one indicator a calculation request asks C5 to fill.
type IndicatorSpec struct {
	IndicatorKey string             `json:"indicator_key"`
	Name         string             `json:"name"`
	Library      string             `json:"library"`
	Params       map[string]float64 `json:"params"`
}

// IndicatorCalculationRequest is the payload on TopicIndicatorCalcRequest,
// keyed by job_id.
type IndicatorCalculationRequest struct {
	JobID      string          `json:"job_id"`
	Ticker     string          `json:"ticker"`
	Timeframe  string          `json:"timeframe"`
	StartDate  time.Time       `json:"start_date"`
	EndDate    time.Time       `json:"end_date"`
	Indicators []IndicatorSpec `json:"indicators"`
}

// BacktestRequestStatus is the tagged status carried by a re-entrant
// BacktestRequest message; the empty value means "run normally".
type BacktestRequestStatus string

const (
	BacktestRequestStatusNone               BacktestRequestStatus = ""
	BacktestRequestStatusCalculationSuccess BacktestRequestStatus = "CALCULATION_SUCCESS"
	BacktestRequestStatusCalculationFailure BacktestRequestStatus = "CALCULATION_FAILURE"
)

// BacktestRequest is the payload on TopicBacktestRequests, keyed by job_id.
// A fresh submission carries Status == BacktestRequestStatusNone; a
// calculation round-trip carries one of the two terminal statuses.
type BacktestRequest struct {
	JobID  string                `json:"job_id"`
	Status BacktestRequestStatus `json:"status,omitempty"`
}

// CollectorTask is the payload on TopicCollectorTasks, keyed by
// "ticker:task_type".
type CollectorTask struct {
	TaskType string                 `json:"task_type"`
	Ticker   string                 `json:"ticker"`
	Params   map[string]interface{} `json:"params"`
}
