package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeforge-core/pkg/kafka"
	"tradeforge-core/pkg/upstream"
)

type fakeTaskPublisher struct {
	published []kafka.CollectorTask
	keys      []string
	err       error
}

func (f *fakeTaskPublisher) Publish(ctx context.Context, key string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, payload.(kafka.CollectorTask))
	return nil
}

func TestAsHandler_RepublishesWhenMorePagesRemain(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 15, 0, 0, time.UTC)
	up := &fakeUpstream{resp: upstream.CandlesResponse{
		Candles: []upstream.Candle{{Begin: start, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000}},
		More:    true,
	}}
	w := NewWorker(&fakeCheckpointStore{}, &fakeCandleStoreWorker{}, up)
	tasks := &fakeTaskPublisher{}

	handle := w.AsHandler(tasks)
	err := handle(context.Background(), task(), "corr-1")
	require.NoError(t, err)

	require.Len(t, tasks.published, 1)
	assert.Equal(t, "RELIANCE:collect_candles", tasks.keys[0])
}

func TestAsHandler_DoesNotRepublishWhenCaughtUp(t *testing.T) {
	w := NewWorker(&fakeCheckpointStore{}, &fakeCandleStoreWorker{}, &fakeUpstream{})
	tasks := &fakeTaskPublisher{}

	handle := w.AsHandler(tasks)
	err := handle(context.Background(), task(), "corr-2")
	require.NoError(t, err)
	assert.Empty(t, tasks.published)
}

func TestAsHandler_PropagatesHandleError(t *testing.T) {
	w := NewWorker(&fakeCheckpointStore{}, &fakeCandleStoreWorker{}, &fakeUpstream{err: assert.AnError})
	tasks := &fakeTaskPublisher{}

	handle := w.AsHandler(tasks)
	err := handle(context.Background(), task(), "corr-3")
	assert.Error(t, err)
	assert.Empty(t, tasks.published)
}
