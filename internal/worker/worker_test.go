package worker

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/domain"
)

// fakeProcessor approves every claim except the ones listed as refused.
type fakeProcessor struct {
	mu      sync.Mutex
	seen    []string
	refused map[string]error
	active  atomic.Int32
	maxSeen atomic.Int32
	holdFor time.Duration
}

func (p *fakeProcessor) Process(ctx context.Context, claimID string) (*domain.ProcessingResult, error) {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		prev := p.maxSeen.Load()
		if n <= prev || p.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}
	if p.holdFor > 0 {
		time.Sleep(p.holdFor)
	}

	p.mu.Lock()
	p.seen = append(p.seen, claimID)
	p.mu.Unlock()

	if err := p.refused[claimID]; err != nil {
		return nil, err
	}
	return &domain.ProcessingResult{
		ClaimID:       claimID,
		Success:       true,
		FinalDecision: domain.DispositionAutoApprove,
		Status:        domain.ClaimApproved,
	}, nil
}

func publishRequest(t *testing.T, b domain.EventBus, claimID string) {
	t.Helper()
	payload, err := json.Marshal(domain.ProcessRequest{ClaimID: claimID, RequestedAt: time.Now().UnixMilli()})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), domain.TopicClaimProcessRequested, payload))
}

func collectProcessed(t *testing.T, b domain.EventBus) <-chan ProcessedEvent {
	t.Helper()
	events := make(chan ProcessedEvent, 16)
	sub, err := b.Subscribe(context.Background(), domain.TopicClaimProcessed, func(ctx context.Context, msg *domain.Message) error {
		var e ProcessedEvent
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			return err
		}
		events <- e
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { sub.Unsubscribe() })
	return events
}

func waitEvent(t *testing.T, events <-chan ProcessedEvent) ProcessedEvent {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timeout waiting for processed event")
		return ProcessedEvent{}
	}
}

func TestWorkerStartAndStop(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	w := NewWorker(eventBus, &fakeProcessor{}, nil)
	require.NoError(t, w.Start(Config{WorkerCount: 2}))
	assert.Error(t, w.Start(Config{}), "second Start")

	stats := w.GetStats()
	assert.Equal(t, 1, stats.SubscriptionCount)
	assert.Equal(t, []string{domain.TopicClaimProcessRequested}, stats.Topics)

	require.NoError(t, w.Stop())
	assert.Zero(t, w.GetStats().SubscriptionCount)
}

func TestWorkerProcessesRequests(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	proc := &fakeProcessor{refused: map[string]error{"claim-done": domain.ErrClaimFinalized}}
	w := NewWorker(eventBus, proc, nil)
	require.NoError(t, w.Start(Config{WorkerCount: 1}))
	defer w.Stop()

	events := collectProcessed(t, eventBus)

	t.Run("Success", func(t *testing.T) {
		publishRequest(t, eventBus, "claim-1")
		e := waitEvent(t, events)
		assert.Equal(t, "claim-1", e.ClaimID)
		assert.True(t, e.Success)
		assert.Equal(t, domain.DispositionAutoApprove, e.FinalDecision)
		assert.Equal(t, domain.ClaimApproved, e.Status)
	})

	t.Run("Refusal", func(t *testing.T) {
		publishRequest(t, eventBus, "claim-done")
		e := waitEvent(t, events)
		assert.False(t, e.Success)
		assert.NotEmpty(t, e.Error)
	})

	t.Run("MalformedPayload", func(t *testing.T) {
		require.NoError(t, eventBus.Publish(context.Background(), domain.TopicClaimProcessRequested, []byte("{not json")))
		publishRequest(t, eventBus, "claim-2")
		e := waitEvent(t, events)
		assert.Equal(t, "claim-2", e.ClaimID)
	})
}

func TestWorkerReplies(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	w := NewWorker(eventBus, &fakeProcessor{}, nil)
	require.NoError(t, w.Start(Config{WorkerCount: 1}))
	defer w.Stop()

	payload, err := json.Marshal(domain.ProcessRequest{ClaimID: "claim-r"})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := eventBus.Request(ctx, domain.TopicClaimProcessRequested, payload)
	require.NoError(t, err)

	var e ProcessedEvent
	require.NoError(t, json.Unmarshal(reply, &e))
	assert.Equal(t, "claim-r", e.ClaimID)
	assert.True(t, e.Success)
}

func TestWorkerBoundsConcurrency(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	proc := &fakeProcessor{holdFor: 30 * time.Millisecond}
	w := NewWorker(eventBus, proc, nil)
	require.NoError(t, w.Start(Config{WorkerCount: 2}))
	events := collectProcessed(t, eventBus)

	for _, id := range []string{"c1", "c2", "c3", "c4", "c5"} {
		publishRequest(t, eventBus, id)
	}
	for range 5 {
		waitEvent(t, events)
	}
	require.NoError(t, w.Stop())

	assert.LessOrEqual(t, proc.maxSeen.Load(), int32(2))
	assert.Len(t, proc.seen, 5)
}

func requestMessage(t *testing.T, claimID string) *domain.Message {
	t.Helper()
	payload, err := json.Marshal(domain.ProcessRequest{ClaimID: claimID})
	require.NoError(t, err)
	return &domain.Message{ID: "msg-" + claimID, Topic: domain.TopicClaimProcessRequested, Payload: payload}
}

func TestWorkerRefusesAfterStop(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	proc := &fakeProcessor{}
	w := NewWorker(eventBus, proc, nil)
	require.NoError(t, w.Start(Config{WorkerCount: 1}))
	require.NoError(t, w.Stop())

	assert.ErrorIs(t, w.handleMessage(context.Background(), requestMessage(t, "late")), ErrStopped)
	assert.ErrorIs(t, w.Start(Config{}), ErrStopped)
	assert.Empty(t, proc.seen)
}

func TestWorkerStopWithWaitingHandler(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	proc := &fakeProcessor{holdFor: 100 * time.Millisecond}
	w := NewWorker(eventBus, proc, nil)
	require.NoError(t, w.Start(Config{WorkerCount: 1}))

	require.NoError(t, w.handleMessage(context.Background(), requestMessage(t, "first")))

	// the only slot is busy, so this handler waits on the semaphore
	waiting := make(chan error, 1)
	go func() {
		waiting <- w.handleMessage(context.Background(), requestMessage(t, "second"))
	}()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, w.Stop())

	select {
	case err := <-waiting:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "waiting handler did not return")
	}

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Equal(t, []string{"first"}, proc.seen)
}
