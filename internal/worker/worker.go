// Package worker processes queued claims from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/domain"
)

// ErrStopped is returned for a request that arrives after Stop.
var ErrStopped = errors.New("worker stopped")

// Processor runs a claim through the pipeline.
type Processor interface {
	Process(ctx context.Context, claimID string) (*domain.ProcessingResult, error)
}

// Worker consumes process requests and publishes their outcomes.
type Worker struct {
	bus       domain.EventBus
	processor Processor
	logger    *slog.Logger

	mu            sync.Mutex
	subscriptions []domain.Subscription
	stopped       bool
	sem           chan struct{}
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// WorkerCount bounds how many claims are processed at once.
	WorkerCount int
}

// ProcessedEvent is the payload published on TopicClaimProcessed and sent
// as the reply to a request.
type ProcessedEvent struct {
	ClaimID       string             `json:"claimId"`
	Success       bool               `json:"success"`
	FinalDecision domain.Disposition `json:"finalDecision,omitempty"`
	Status        domain.ClaimStatus `json:"status,omitempty"`
	Error         string             `json:"error,omitempty"`
	DurationMs    int64              `json:"durationMs"`
}

// NewWorker creates a new async worker.
func NewWorker(eventBus domain.EventBus, processor Processor, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       eventBus,
		processor: processor,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to process requests.
func (w *Worker) Start(cfg Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrStopped
	}
	if len(w.subscriptions) > 0 {
		return fmt.Errorf("worker already started")
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	w.sem = make(chan struct{}, cfg.WorkerCount)

	sub, err := w.bus.Subscribe(w.ctx, domain.TopicClaimProcessRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("worker started",
		"topic", domain.TopicClaimProcessRequested,
		"worker_count", cfg.WorkerCount,
	)
	return nil
}

// handleMessage decodes a request and hands it to a free slot.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var req domain.ProcessRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		w.logger.Error("failed to parse process request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if req.ClaimID == "" {
		return fmt.Errorf("process request %s has no claim id", msg.ID)
	}

	select {
	case w.sem <- struct{}{}:
	case <-w.ctx.Done():
		return ErrStopped
	}

	// Add happens under mu so it cannot race with Stop's Wait.
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		<-w.sem
		return ErrStopped
	}
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()
		w.processClaim(w.ctx, req, msg.Metadata[bus.MetadataReplyTo])
	}()
	return nil
}

// processClaim runs one claim and publishes the outcome.
func (w *Worker) processClaim(ctx context.Context, req domain.ProcessRequest, replyTo string) {
	start := time.Now()
	event := ProcessedEvent{ClaimID: req.ClaimID}

	result, err := w.processor.Process(ctx, req.ClaimID)
	switch {
	case err != nil:
		event.Error = err.Error()
		level := slog.LevelError
		if refused(err) {
			level = slog.LevelWarn
		}
		w.logger.Log(ctx, level, "queued claim not processed",
			"claim_id", req.ClaimID,
			"error", err,
		)
	default:
		event.Success = result.Success
		event.FinalDecision = result.FinalDecision
		event.Status = result.Status
		event.Error = result.Error
	}
	event.DurationMs = time.Since(start).Milliseconds()

	payload, err := json.Marshal(event)
	if err != nil {
		w.logger.Error("failed to encode processed event", "claim_id", req.ClaimID, "error", err)
		return
	}

	pubCtx := context.WithoutCancel(ctx)
	if err := w.bus.Publish(pubCtx, domain.TopicClaimProcessed, payload); err != nil {
		w.logger.Error("failed to publish processed event",
			"claim_id", req.ClaimID,
			"error", err,
		)
	}
	if replyTo != "" {
		if err := w.bus.Publish(pubCtx, replyTo, payload); err != nil {
			w.logger.Error("failed to reply",
				"claim_id", req.ClaimID,
				"reply_to", replyTo,
				"error", err,
			)
		}
	}

	w.logger.Info("queued claim handled",
		"claim_id", req.ClaimID,
		"success", event.Success,
		"decision", event.FinalDecision,
		"duration_ms", event.DurationMs,
	)
}

func refused(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrClaimFinalized) ||
		errors.Is(err, domain.ErrClaimInProgress) ||
		errors.Is(err, domain.ErrClaimLocked)
}

// Stop unsubscribes and waits for in-flight claims. In-flight runs see a
// canceled context and finish through the pipeline's failure path.
func (w *Worker) Stop() error {
	w.mu.Lock()
	w.stopped = true
	subs := w.subscriptions
	w.subscriptions = nil
	w.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}

	w.cancel()
	w.wg.Wait()

	w.logger.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	InFlight          int      `json:"inFlight"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		InFlight:          len(w.sem),
	}
}
