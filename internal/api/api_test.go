package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/claims"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
)

// stubProcessor returns a canned result without touching the claim.
type stubProcessor struct {
	result domain.ProcessingResult
	err    error
}

func (p *stubProcessor) Process(ctx context.Context, claimID string) (*domain.ProcessingResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	result := p.result
	result.ClaimID = claimID
	return &result, nil
}

type testEnv struct {
	server *Server
	repo   *repository.SQLRepository
	bus    *bus.ChannelBus
	proc   *stubProcessor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "api.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	eventBus := bus.NewChannelBus(16)
	t.Cleanup(func() { eventBus.Close() })

	engine, err := rules.NewEngine(domain.DefaultConfig().Rules, nil, 5)
	require.NoError(t, err)

	proc := &stubProcessor{result: domain.ProcessingResult{
		Success:       true,
		FinalDecision: domain.DispositionAutoApprove,
		Status:        domain.ClaimApproved,
	}}

	lru := cache.NewLRUCache(100)
	svc, err := claims.NewService(claims.Config{StatusTTL: time.Minute, LockTTL: time.Minute}, claims.Deps{
		Repo:     repo,
		Cache:    lru,
		Bus:      eventBus,
		Pipeline: proc,
	})
	require.NoError(t, err)

	cfg := domain.ServerConfig{Host: "localhost", Port: 8080, ReadTimeout: 30, WriteTimeout: 30}
	server := NewServer(cfg, Deps{
		Claims:  svc,
		Engine:  engine,
		Repo:    repo,
		Cache:   lru,
		Bus:     eventBus,
		Version: "test-v1",
	})

	return &testEnv{server: server, repo: repo, bus: eventBus, proc: proc}
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) submit(t *testing.T) *domain.Claim {
	t.Helper()
	rr := e.do(http.MethodPost, "/claims", validClaim())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var claim domain.Claim
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &claim))
	return &claim
}

func validClaim() map[string]any {
	return map[string]any{
		"policyId":    "STD-1001",
		"claimantId":  "john@example.com",
		"totalAmount": 8850.00,
		"description": "Water damage to kitchen floor.",
		"documents": []map[string]string{
			{"documentType": "invoice", "locator": "s3://claims/invoice.pdf"},
		},
	}
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp
}

func TestClaimEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Submit", func(t *testing.T) {
		claim := env.submit(t)
		assert.NotEmpty(t, claim.ID)
		assert.Equal(t, domain.ClaimSubmitted, claim.Status)
		assert.Equal(t, domain.Dollars(8850), claim.Amount)
		assert.Len(t, claim.Documents, 1)
	})

	t.Run("SubmitRejectsBadBodies", func(t *testing.T) {
		missingPolicy := validClaim()
		delete(missingPolicy, "policyId")
		negative := validClaim()
		negative["totalAmount"] = -10
		noLocator := validClaim()
		noLocator["documents"] = []map[string]string{{"documentType": "invoice"}}

		tests := []struct {
			name string
			body any
		}{
			{"InvalidJSON", "not-json"},
			{"MissingPolicy", missingPolicy},
			{"NegativeAmount", negative},
			{"DocumentWithoutLocator", noLocator},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rr := env.do(http.MethodPost, "/claims", tt.body)
				assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			})
		}
	})

	t.Run("GetClaim", func(t *testing.T) {
		claim := env.submit(t)
		rr := env.do(http.MethodGet, "/claims/"+claim.ID, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.Equal(t, "STD-1001", decodeMap(t, rr)["policyId"])
	})

	t.Run("UnknownClaim", func(t *testing.T) {
		for _, path := range []string{
			"/claims/missing",
			"/claims/missing/status",
			"/claims/missing/decisions",
			"/claims/missing/notifications",
		} {
			rr := env.do(http.MethodGet, path, nil)
			assert.Equal(t, http.StatusNotFound, rr.Code, path)
		}
	})

	t.Run("Status", func(t *testing.T) {
		claim := env.submit(t)
		rr := env.do(http.MethodGet, "/claims/"+claim.ID+"/status", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		resp := decodeMap(t, rr)
		assert.Equal(t, claim.ID, resp["claimId"])
		assert.Equal(t, float64(1), resp["documentCount"])
	})

	t.Run("AddDocument", func(t *testing.T) {
		claim := env.submit(t)
		rr := env.do(http.MethodPost, "/claims/"+claim.ID+"/documents", map[string]string{
			"documentType": "photo",
			"locator":      "s3://claims/damage.jpg",
		})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		stored, err := env.repo.GetClaim(context.Background(), claim.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Documents, 2)
	})

	t.Run("ClaimantClaims", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/claimants/john@example.com/claims", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.GreaterOrEqual(t, decodeMap(t, rr)["count"], float64(1))

		rr = env.do(http.MethodGet, "/claimants/nobody@example.com/claims", nil)
		assert.Equal(t, float64(0), decodeMap(t, rr)["count"])
	})
}

func TestProcessEndpoint(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Success", func(t *testing.T) {
		claim := env.submit(t)
		rr := env.do(http.MethodPost, "/claims/"+claim.ID+"/process", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var result domain.ProcessingResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
		assert.True(t, result.Success)
		assert.Equal(t, domain.DispositionAutoApprove, result.FinalDecision)
	})

	t.Run("FailedRunReturns500WithBody", func(t *testing.T) {
		env.proc.result = domain.ProcessingResult{Success: false, Error: "narrative: provider unavailable", Status: domain.ClaimProcessingFailed}
		defer func() { env.proc.result = domain.ProcessingResult{Success: true, FinalDecision: domain.DispositionAutoApprove} }()

		claim := env.submit(t)
		rr := env.do(http.MethodPost, "/claims/"+claim.ID+"/process", nil)
		require.Equal(t, http.StatusInternalServerError, rr.Code)

		var result domain.ProcessingResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
		assert.NotEmpty(t, result.Error)
		assert.Equal(t, claim.ID, result.ClaimID)
	})

	t.Run("RefusalsAreConflicts", func(t *testing.T) {
		defer func() { env.proc.err = nil }()
		for _, refusal := range []error{domain.ErrClaimFinalized, domain.ErrClaimInProgress} {
			env.proc.err = fmt.Errorf("claim x: %w", refusal)
			claim := env.submit(t)
			rr := env.do(http.MethodPost, "/claims/"+claim.ID+"/process", nil)
			assert.Equal(t, http.StatusConflict, rr.Code, refusal.Error())
		}
	})

	t.Run("SubmitAndProcess", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/claims/submit-and-process", validClaim())
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.NotEmpty(t, decodeMap(t, rr)["claimId"])
	})

	t.Run("Async", func(t *testing.T) {
		requests := make(chan domain.ProcessRequest, 1)
		sub, err := env.bus.Subscribe(context.Background(), domain.TopicClaimProcessRequested, func(ctx context.Context, msg *domain.Message) error {
			var req domain.ProcessRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				return err
			}
			requests <- req
			return nil
		})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		claim := env.submit(t)
		rr := env.do(http.MethodPost, "/claims/"+claim.ID+"/process?async=true", nil)
		require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
		assert.Equal(t, "queued", decodeMap(t, rr)["status"])

		select {
		case req := <-requests:
			assert.Equal(t, claim.ID, req.ClaimID)
		case <-time.After(2 * time.Second):
			require.FailNow(t, "timeout waiting for process request")
		}
	})

	t.Run("AsyncErrors", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/claims/missing/process?async=true", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		claim := env.submit(t)
		rr = env.do(http.MethodPost, "/claims/"+claim.ID+"/process?async=maybe", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestStatusUpdateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parked := func(t *testing.T) *domain.Claim {
		t.Helper()
		claim := env.submit(t)
		stored, err := env.repo.GetClaim(ctx, claim.ID)
		require.NoError(t, err)
		now := time.Now()
		require.NoError(t, stored.TransitionTo(domain.ClaimProcessing, now))
		require.NoError(t, stored.TransitionTo(domain.ClaimUnderReview, now))
		require.NoError(t, env.repo.UpdateClaim(ctx, stored))
		return stored
	}

	t.Run("Resolve", func(t *testing.T) {
		claim := parked(t)
		rr := env.do(http.MethodPut, "/claims/"+claim.ID+"/status", map[string]string{
			"status":       "Approved",
			"specialistId": "adjuster-7",
			"comments":     "Receipts verified with the vendor.",
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, string(domain.ClaimApproved), decodeMap(t, rr)["status"])

		rr = env.do(http.MethodGet, "/claims/"+claim.ID+"/decisions", nil)
		resp := decodeMap(t, rr)
		require.Equal(t, float64(1), resp["count"])
		decision := resp["decisions"].([]any)[0].(map[string]any)
		assert.Equal(t, "adjuster-7", decision["reviewer"])
	})

	t.Run("Errors", func(t *testing.T) {
		submitted := env.submit(t)
		review := parked(t)

		tests := []struct {
			name string
			id   string
			body any
			want int
		}{
			{"NotUnderReview", submitted.ID, map[string]string{"status": "Approved", "specialistId": "a"}, http.StatusConflict},
			{"UnknownStatus", review.ID, map[string]string{"status": "Paid"}, http.StatusBadRequest},
			{"MissingStatus", review.ID, map[string]string{"specialistId": "a"}, http.StatusBadRequest},
			{"NoReviewer", review.ID, map[string]string{"status": "Rejected"}, http.StatusBadRequest},
			{"UnknownClaim", "missing", map[string]string{"status": "Approved", "specialistId": "a"}, http.StatusNotFound},
			{"InvalidJSON", review.ID, "{", http.StatusBadRequest},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rr := env.do(http.MethodPut, "/claims/"+tt.id+"/status", tt.body)
				assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			})
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rule := CreateRuleRequest{
		ID:         "rule-high-value",
		Name:       "High value claims need two documents",
		Expression: "amount > 20000.0 && document_count < 2",
		Bands: []domain.RuleBand{
			{UpperLimit: ptr(1.0), Outcome: domain.RuleOutcomePass, Reason: "ok"},
			{LowerLimit: ptr(1.0), Outcome: domain.RuleOutcomeFail, Reason: "high value claim with a single document"},
		},
		Enabled: true,
	}

	t.Run("Create", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/rules", rule)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		stored, err := env.repo.GetRuleConfig(context.Background(), rule.ID)
		require.NoError(t, err)
		assert.Equal(t, "1.0.0", stored.Version)
	})

	t.Run("NotLoadedBeforeReload", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/rules", nil)
		assert.Equal(t, float64(0), decodeMap(t, rr)["count"])
	})

	t.Run("Reload", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/rules/reload", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, float64(1), decodeMap(t, rr)["count"])

		rr = env.do(http.MethodGet, "/rules/"+rule.ID, nil)
		assert.Equal(t, http.StatusOK, rr.Code)

		rr = env.do(http.MethodGet, "/rules/missing", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Invalid", func(t *testing.T) {
		badCEL := rule
		badCEL.ID = "rule-bad"
		badCEL.Expression = "amount >"
		unknownVar := rule
		unknownVar.ID = "rule-unknown"
		unknownVar.Expression = "beneficiary == 'x'"
		noName := rule
		noName.Name = ""

		for name, body := range map[string]CreateRuleRequest{
			"BadCEL":     badCEL,
			"UnknownVar": unknownVar,
			"NoName":     noName,
		} {
			rr := env.do(http.MethodPost, "/rules", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, "%s: %s", name, rr.Body.String())
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	t.Run("HealthCheck", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		resp := decodeMap(t, rr)
		assert.Equal(t, "healthy", resp["status"])
		assert.Equal(t, "test-v1", resp["version"])
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/ready", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		checks := decodeMap(t, rr)["checks"].(map[string]any)
		for _, name := range []string{"repository", "cache", "eventBus"} {
			assert.Equal(t, "ok", checks[name], name)
		}
	})

	t.Run("NotReadyWhenBusClosed", func(t *testing.T) {
		env.bus.Close()
		rr := env.do(http.MethodGet, "/ready", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedRequestID = GetRequestID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.NotEmpty(t, capturedRequestID)
		assert.Equal(t, capturedRequestID, rr.Header().Get(RequestIDHeader))
		assert.NotEmpty(t, rr.Header().Get(TraceIDHeader))
	})

	t.Run("TracingMiddlewareKeepsIncomingRequestID", func(t *testing.T) {
		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, "req-123", rr.Header().Get(RequestIDHeader))
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Fail(t, "preflight should not reach the handler")
		}))

		req := httptest.NewRequest(http.MethodOptions, "/claims", nil)
		req.Header.Set("Origin", "https://portal.example.com")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "https://portal.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("claim x: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrClaimFinalized, http.StatusConflict},
		{domain.ErrClaimInProgress, http.StatusConflict},
		{domain.ErrClaimLocked, http.StatusConflict},
		{domain.ErrInvalidTransition, http.StatusConflict},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func ptr(v float64) *float64 { return &v }
