package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"tradeforge-core/internal/domain"
)

type RollingContextStore struct {
	client *redis.Client
}

func NewRollingContextStore(client *redis.Client) *RollingContextStore {
	return &RollingContextStore{client: client}
}

// rollingContextWire is the JSON-serializable shape of a RollingContext;
// domain.RollingContext keeps maxSize private, so the wire form carries its
// own MaxSize field. Set always writes domain.DefaultRollingContextSize
// there, whatever size the context was built with.
type rollingContextWire struct {
	Ticker    string          `json:"ticker"`
	Timeframe domain.Timeframe `json:"timeframe"`
	Candles   []domain.Candle `json:"candles"`
	MaxSize   int             `json:"maxSize"`
}

func rollingContextKey(ticker string, tf domain.Timeframe) string {
	return "rolling_context:" + ticker + "_" + string(tf)
}

func (s *RollingContextStore) Get(ctx context.Context, ticker string, tf domain.Timeframe) (*domain.RollingContext, error) {
	val, err := s.client.Get(ctx, rollingContextKey(ticker, tf)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var wire rollingContextWire
	if err := json.Unmarshal([]byte(val), &wire); err != nil {
		return nil, err
	}
	rc := domain.NewRollingContext(wire.Ticker, wire.Timeframe, wire.MaxSize)
	for _, c := range wire.Candles {
		rc.Append(c)
	}
	return rc, nil
}

func (s *RollingContextStore) Set(ctx context.Context, rc *domain.RollingContext) error {
	wire := rollingContextWire{
		Ticker: rc.Ticker, Timeframe: rc.Timeframe, Candles: rc.Candles,
		MaxSize: domain.DefaultRollingContextSize,
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, rollingContextKey(rc.Ticker, rc.Timeframe), payload, 0).Err()
}
