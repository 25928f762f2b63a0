// Package claims is the application service over claims: submission,
// lookups, locked processing runs, manual review and async enqueue.
package claims

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Processor runs a claim through the pipeline.
type Processor interface {
	Process(ctx context.Context, claimID string) (*domain.ProcessingResult, error)
}

// Deps are the service collaborators. Cache, Bus and Notifier are optional.
type Deps struct {
	Repo     domain.Repository
	Cache    domain.Cache
	Bus      domain.EventBus
	Pipeline Processor
	Notifier domain.Notifier
	Logger   *slog.Logger

	Clock func() time.Time
	NewID func() string
}

// Config controls caching and locking.
type Config struct {
	StatusTTL time.Duration
	LockTTL   time.Duration
}

// Service implements the claim operations exposed over HTTP and the bus.
type Service struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	pipeline Processor
	notifier domain.Notifier
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewService creates a claims service.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("claims: repository is required")
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("claims: pipeline is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.New().String() }
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}

	return &Service{
		repo:     deps.Repo,
		cache:    deps.Cache,
		bus:      deps.Bus,
		pipeline: deps.Pipeline,
		notifier: deps.Notifier,
		cfg:      cfg,
		log:      deps.Logger,
		now:      deps.Clock,
		newID:    deps.NewID,
	}, nil
}

// Submit stores a new claim and its documents and sends a ClaimReceived
// notification.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*domain.Claim, error) {
	if err := check(req); err != nil {
		return nil, err
	}

	now := s.now()
	claim, err := domain.NewClaim(s.newID(), req.PolicyID, req.ClaimantID, req.Amount, req.Description, now)
	if err != nil {
		return nil, err
	}
	for _, d := range req.Documents {
		claim.Documents = append(claim.Documents,
			domain.NewDocument(s.newID(), claim.ID, domain.ParseDocumentType(d.DocumentType), d.Locator, now))
	}

	if err := s.repo.CreateClaim(ctx, claim); err != nil {
		return nil, fmt.Errorf("failed to save claim: %w", err)
	}

	s.log.Info("claim submitted",
		"claim_id", claim.ID,
		"policy_id", claim.PolicyID,
		"amount", claim.Amount.String(),
		"documents", len(claim.Documents),
	)
	s.notify(ctx, claim, domain.NotifyClaimReceived)
	return claim, nil
}

// Get returns a claim with its documents.
func (s *Service) Get(ctx context.Context, claimID string) (*domain.Claim, error) {
	return s.repo.GetClaim(ctx, claimID)
}

// Status returns the claim's status view, served from cache when fresh.
func (s *Service) Status(ctx context.Context, claimID string) (*domain.StatusView, error) {
	if s.cache != nil {
		view, err := s.cache.GetStatus(ctx, claimID)
		if err != nil {
			s.log.Warn("status cache read failed", "claim_id", claimID, "error", err)
		} else if view != nil {
			return view, nil
		}
	}

	claim, err := s.repo.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	view := claim.View()
	s.cacheStatus(ctx, claim)
	return view, nil
}

// ListByClaimant returns every claim of a claimant, newest first.
func (s *Service) ListByClaimant(ctx context.Context, claimantID string) ([]*domain.Claim, error) {
	if claimantID == "" {
		return nil, fmt.Errorf("%w: claimant id is required", domain.ErrInvalidInput)
	}
	return s.repo.ListClaimsByClaimant(ctx, claimantID, time.Time{})
}

// AddDocument attaches a document to a claim that is not yet terminal.
func (s *Service) AddDocument(ctx context.Context, claimID string, req DocumentRequest) (*domain.Document, error) {
	if err := check(req); err != nil {
		return nil, err
	}

	claim, err := s.repo.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Status.Terminal() {
		return nil, fmt.Errorf("claim %s is %s: %w", claim.ID, claim.Status, domain.ErrClaimFinalized)
	}

	doc := domain.NewDocument(s.newID(), claim.ID, domain.ParseDocumentType(req.DocumentType), req.Locator, s.now())
	if err := s.repo.AddDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to add document: %w", err)
	}

	claim.Documents = append(claim.Documents, doc)
	s.cacheStatus(ctx, claim)
	return doc, nil
}

// Process runs the pipeline while holding the claim's lock. A lock held
// elsewhere is reported as ErrClaimLocked.
func (s *Service) Process(ctx context.Context, claimID string) (*domain.ProcessingResult, error) {
	if s.cache != nil {
		key := lockKey(claimID)
		token, ok, err := s.cache.AcquireLock(ctx, key, s.cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire claim lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("claim %s: %w", claimID, domain.ErrClaimLocked)
		}
		defer func() {
			if err := s.cache.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
				s.log.Warn("failed to release claim lock", "claim_id", claimID, "error", err)
			}
		}()
	}

	result, err := s.pipeline.Process(ctx, claimID)
	if err != nil {
		return nil, err
	}

	if claim, err := s.repo.GetClaim(context.WithoutCancel(ctx), claimID); err == nil {
		s.cacheStatus(ctx, claim)
	}
	return result, nil
}

// SubmitAndProcess submits a claim and processes it right away.
func (s *Service) SubmitAndProcess(ctx context.Context, req SubmitRequest) (*domain.ProcessingResult, error) {
	claim, err := s.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Process(ctx, claim.ID)
}

// Enqueue asks the worker to process a claim asynchronously.
func (s *Service) Enqueue(ctx context.Context, claimID string) error {
	if s.bus == nil {
		return fmt.Errorf("async processing is not configured")
	}

	claim, err := s.repo.GetClaim(ctx, claimID)
	if err != nil {
		return err
	}
	if claim.Status.Decided() {
		return fmt.Errorf("claim %s is %s: %w", claim.ID, claim.Status, domain.ErrClaimFinalized)
	}

	payload, err := json.Marshal(domain.ProcessRequest{ClaimID: claim.ID, RequestedAt: s.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("failed to encode process request: %w", err)
	}
	if err := s.bus.Publish(ctx, domain.TopicClaimProcessRequested, payload); err != nil {
		return fmt.Errorf("failed to publish process request: %w", err)
	}

	s.log.Info("claim queued for processing", "claim_id", claim.ID)
	return nil
}

// Decisions returns the claim's decision trail, oldest first.
func (s *Service) Decisions(ctx context.Context, claimID string) ([]*domain.Decision, error) {
	if _, err := s.repo.GetClaim(ctx, claimID); err != nil {
		return nil, err
	}
	return s.repo.ListDecisions(ctx, claimID)
}

// Notifications returns the claim's notification log, oldest first.
func (s *Service) Notifications(ctx context.Context, claimID string) ([]*domain.Notification, error) {
	if _, err := s.repo.GetClaim(ctx, claimID); err != nil {
		return nil, err
	}
	return s.repo.ListNotifications(ctx, claimID)
}

func (s *Service) notify(ctx context.Context, claim *domain.Claim, kind domain.NotificationKind) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, claim.ID, claim.ClaimantID, kind); err != nil {
		s.log.Warn("notification failed", "claim_id", claim.ID, "kind", kind, "error", err)
	}
}

func (s *Service) cacheStatus(ctx context.Context, claim *domain.Claim) {
	if s.cache == nil || s.cfg.StatusTTL <= 0 {
		return
	}
	if err := s.cache.SetStatus(ctx, claim.ID, claim.View(), s.cfg.StatusTTL); err != nil {
		s.log.Warn("status cache write failed", "claim_id", claim.ID, "error", err)
	}
}

func lockKey(claimID string) string {
	return "lock:claim:" + claimID
}
