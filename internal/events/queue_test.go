// internal/events/queue_test.go
package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func initEvent(uid string) Event {
	return NewInitEvent(uid, nil, time.Now())
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(zaptest.NewLogger(t))
	for _, uid := range []string{"a", "b", "c"} {
		require.True(t, q.Push(initEvent(uid)))
	}

	ctx := context.Background()
	for _, want := range []string{"a", "b", "c"} {
		ev, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, ev.TraderUID())
	}
	assert.Equal(t, 0, q.Len())

	stats := q.Stats()
	assert.Equal(t, QueueStats{Pending: 0, Pushed: 3, Consumed: 3}, stats)
}

func TestQueue_StatsAfterClose(t *testing.T) {
	q := NewQueue(zaptest.NewLogger(t))
	q.Push(initEvent("a"))
	q.Push(initEvent("b"))
	q.Close()

	stats := q.Stats()
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, uint64(2), stats.Pushed)
	assert.True(t, stats.Closed)
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewQueue(zaptest.NewLogger(t))
	got := make(chan Event, 1)

	go func() {
		ev, err := q.Pop(context.Background())
		if err == nil {
			got <- ev
		}
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before anything was pushed")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push(initEvent("late"))

	select {
	case ev := <-got:
		assert.Equal(t, "late", ev.TraderUID())
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up after Push")
	}
}

func TestQueue_PopContextCancel(t *testing.T) {
	q := NewQueue(zaptest.NewLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_CloseDrains(t *testing.T) {
	q := NewQueue(zaptest.NewLogger(t))
	q.Push(initEvent("a"))
	q.Push(initEvent("b"))
	q.Close()

	assert.False(t, q.Push(initEvent("dropped")))

	var seen []string
	err := q.Consume(context.Background(), HandlerFunc(func(ctx context.Context, ev Event) error {
		seen = append(seen, ev.TraderUID())
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, seen)

	_, err = q.Pop(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueue_ConsumeContinuesAfterHandlerError(t *testing.T) {
	q := NewQueue(zaptest.NewLogger(t))
	q.Push(initEvent("fail"))
	q.Push(initEvent("ok"))
	q.Close()

	var seen []string
	err := q.Consume(context.Background(), HandlerFunc(func(ctx context.Context, ev Event) error {
		seen = append(seen, ev.TraderUID())
		if ev.TraderUID() == "fail" {
			return errors.New("storage down")
		}
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"fail", "ok"}, seen)
}

func TestQueue_ConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	q := NewQueue(zaptest.NewLogger(t))
	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(&InitEvent{BaseEvent: BaseEvent{EventType: PositionInit, UID: string(rune('A' + p)), EventTime: time.Unix(int64(i), 0)}})
			}
		}(p)
	}

	lastSeq := make(map[string]int64)
	done := make(chan struct{})
	total := 0
	go func() {
		defer close(done)
		for total < producers*perProducer {
			ev, err := q.Pop(context.Background())
			if err != nil {
				return
			}
			seq := ev.Timestamp().Unix()
			if prev, ok := lastSeq[ev.TraderUID()]; ok {
				assert.Greater(t, seq, prev, "producer %s out of order", ev.TraderUID())
			}
			lastSeq[ev.TraderUID()] = seq
			total++
		}
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
	assert.Equal(t, producers*perProducer, total)
	assert.Equal(t, 0, q.Len())
}
