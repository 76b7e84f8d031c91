// Package kafka collects the event-log topic names and wire payloads shared
// across producers and consumers, plus a small Writer wrapper grounded on
// the teacher's pkg/cache/redis.go style of turning a plain config struct
// into a ready client.
package kafka

// Topic names exactly as spec.md's external-interfaces table.
const (
	TopicCandlesRaw            = "trade-forge.marketdata.candles.raw.v1"
	TopicCandlesProcessedRT    = "trade-forge.indicators.candles.processed.rt.v1"
	TopicIndicatorCalcRequest  = "trade-forge.backtesting.indicators.calculation-requested.v1"
	TopicBacktestRequests      = "trade-forge.backtests.requests.v1"
	TopicCollectorTasks        = "trade-forge.market-collectors.tasks"
)

// FailedSuffix is appended to a topic name to address its DLQ.
const FailedSuffix = ".failed"

// FailedTopic returns the DLQ topic for topic.
func FailedTopic(topic string) string {
	return topic + FailedSuffix
}
