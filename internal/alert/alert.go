// Package alert reports pipeline failures to an error tracker.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Reporter receives pipeline failures.
type Reporter interface {
	PipelineFailure(ctx context.Context, claimID, stage string, err error)
	Flush(timeout time.Duration) bool
}

// New returns a Sentry reporter when a DSN is configured and a no-op
// reporter otherwise.
func New(cfg domain.AlertingConfig) (Reporter, error) {
	if cfg.SentryDSN == "" {
		return Nop{}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry.Init: %w", err)
	}
	return NewSentry(sentry.CurrentHub()), nil
}

// Nop discards every report.
type Nop struct{}

// PipelineFailure does nothing.
func (Nop) PipelineFailure(context.Context, string, string, error) {}

// Flush does nothing.
func (Nop) Flush(time.Duration) bool { return true }

// Sentry captures failures as Sentry events tagged with the claim id and
// the failing stage.
type Sentry struct {
	hub *sentry.Hub
}

// NewSentry creates a reporter on hub.
func NewSentry(hub *sentry.Hub) *Sentry {
	return &Sentry{hub: hub}
}

// PipelineFailure captures err.
func (s *Sentry) PipelineFailure(ctx context.Context, claimID, stage string, err error) {
	if err == nil {
		return
	}

	hub := s.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("claim_id", claimID)
		scope.SetTag("stage", stage)
		if id := hub.CaptureException(err); id != nil {
			slog.DebugContext(ctx, "pipeline failure reported", "claim_id", claimID, "event_id", string(*id))
		}
	})
}

// Flush waits for buffered events.
func (s *Sentry) Flush(timeout time.Duration) bool {
	return s.hub.Flush(timeout)
}
