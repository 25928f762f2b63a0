package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
)

func newRepo(t *testing.T) *repository.SQLRepository {
	t.Helper()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "history.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seed(t *testing.T, repo *repository.SQLRepository, id, claimant string, at time.Time) *domain.Claim {
	t.Helper()
	claim, err := domain.NewClaim(id, "STD-1001", claimant, domain.Dollars(500), "", at)
	require.NoError(t, err)
	require.NoError(t, repo.CreateClaim(context.Background(), claim))
	return claim
}

func TestPriors(t *testing.T) {
	repo := newRepo(t)
	svc := NewService(repo, 0)
	ctx := context.Background()

	base := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	seed(t, repo, "c-old", "ana@example.com", base.Add(-40*24*time.Hour))
	seed(t, repo, "c-prev", "ana@example.com", base.Add(-3*24*time.Hour))
	seed(t, repo, "c-later", "ana@example.com", base.Add(time.Hour))
	seed(t, repo, "c-other", "bob@example.com", base.Add(-time.Hour))
	current := seed(t, repo, "c-now", "ana@example.com", base)

	priors, err := svc.Priors(ctx, current, base.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, priors, 1)
	assert.Equal(t, "c-prev", priors[0].ID)

	priors, err = svc.Priors(ctx, current, base.Add(-60*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, priors, 2)
	assert.Equal(t, "c-prev", priors[0].ID, "newest first")
	assert.Equal(t, "c-old", priors[1].ID)
}

func TestFeatures(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

	t.Run("NoHistory", func(t *testing.T) {
		svc := NewService(repo, 365*24*time.Hour)
		claim := seed(t, repo, "solo", "solo@example.com", base)

		f, err := svc.Features(ctx, claim)
		require.NoError(t, err)
		assert.Equal(t, domain.Dollars(500), f.Amount)
		assert.Zero(t, f.ClaimantHistoryCount)
		assert.Zero(t, f.DaysSinceLastClaim)
	})

	t.Run("WithHistory", func(t *testing.T) {
		svc := NewService(repo, 365*24*time.Hour)
		seed(t, repo, "h1", "repeat@example.com", base.Add(-100*24*time.Hour))
		seed(t, repo, "h2", "repeat@example.com", base.Add(-10*24*time.Hour-time.Hour))
		claim := seed(t, repo, "h3", "repeat@example.com", base)

		f, err := svc.Features(ctx, claim)
		require.NoError(t, err)
		assert.Equal(t, 2, f.ClaimantHistoryCount)
		assert.Equal(t, 10, f.DaysSinceLastClaim)
	})

	t.Run("WindowExcludesOldClaims", func(t *testing.T) {
		svc := NewService(repo, 30*24*time.Hour)
		seed(t, repo, "w1", "window@example.com", base.Add(-45*24*time.Hour))
		claim := seed(t, repo, "w2", "window@example.com", base)

		f, err := svc.Features(ctx, claim)
		require.NoError(t, err)
		assert.Zero(t, f.ClaimantHistoryCount)
	})

	t.Run("ZeroFeatures", func(t *testing.T) {
		claim := seed(t, repo, "z1", "repeat@example.com", base.Add(time.Minute))
		claim.Documents = []*domain.Document{{ID: "d1"}}

		f, err := ZeroFeatures{}.Features(ctx, claim)
		require.NoError(t, err)
		assert.Equal(t, 1, f.DocumentCount)
		assert.Zero(t, f.ClaimantHistoryCount)
	})
}

type failingLister struct{}

func (failingLister) ListClaimsByClaimant(context.Context, string, time.Time) ([]*domain.Claim, error) {
	return nil, errors.New("connection reset")
}

func TestPriorsError(t *testing.T) {
	svc := NewService(failingLister{}, 0)
	claim := &domain.Claim{ID: "x", ClaimantID: "x@example.com", SubmittedAt: time.Now()}

	_, err := svc.Priors(context.Background(), claim, time.Time{})
	assert.ErrorContains(t, err, "connection reset")
}

func TestCalendarHelpers(t *testing.T) {
	assert.Equal(t, 6, WholeDays(6*24*time.Hour+23*time.Hour))
	assert.Equal(t, 0, WholeDays(-time.Hour))

	ts := time.Date(2026, 7, 31, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), MonthStart(ts))
}
