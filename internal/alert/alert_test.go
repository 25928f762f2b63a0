package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/harrier/internal/domain"
)

type captureTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *captureTransport) Configure(sentry.ClientOptions) {}

func (t *captureTransport) Flush(time.Duration) bool { return true }

func (t *captureTransport) Close() {}

func (t *captureTransport) SendEvent(e *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

func newHub(t *testing.T) (*sentry.Hub, *captureTransport) {
	t.Helper()
	transport := &captureTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:       "https://public@sentry.example.com/1",
		Transport: transport,
	})
	require.NoError(t, err)
	return sentry.NewHub(client, sentry.NewScope()), transport
}

func TestNewWithoutDSN(t *testing.T) {
	r, err := New(domain.AlertingConfig{Environment: "test"})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, r)

	r.PipelineFailure(context.Background(), "claim-1", "rules", errors.New("boom"))
	assert.True(t, r.Flush(time.Millisecond))
}

func TestSentryPipelineFailure(t *testing.T) {
	hub, transport := newHub(t)
	r := NewSentry(hub)

	r.PipelineFailure(context.Background(), "claim-1", "narrative", errors.New("model timeout"))
	r.PipelineFailure(context.Background(), "claim-2", "narrative", nil)
	assert.True(t, r.Flush(time.Second))

	require.Len(t, transport.events, 1)
	event := transport.events[0]
	assert.Equal(t, "claim-1", event.Tags["claim_id"])
	assert.Equal(t, "narrative", event.Tags["stage"])
	assert.Equal(t, sentry.LevelError, event.Level)
	require.NotEmpty(t, event.Exception)
	assert.Equal(t, "model timeout", event.Exception[0].Value)
}

func TestSentryScopeDoesNotLeak(t *testing.T) {
	hub, transport := newHub(t)
	r := NewSentry(hub)

	r.PipelineFailure(context.Background(), "claim-1", "rules", errors.New("first"))
	hub.CaptureMessage("unrelated")

	require.Len(t, transport.events, 2)
	_, tagged := transport.events[1].Tags["claim_id"]
	assert.False(t, tagged)
}
