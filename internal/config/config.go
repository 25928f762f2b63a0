// Package config loads the Harrier configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Prefix is the environment variable prefix, e.g. HARRIER_SERVER_PORT.
const Prefix = "HARRIER"

// Load builds the configuration for the tier named by HARRIER_TIER and
// overlays every HARRIER_* variable on top of it.
func Load() (*domain.Config, error) {
	return LoadWithPrefix(Prefix)
}

// LoadWithPrefix is Load with a custom variable prefix.
func LoadWithPrefix(prefix string) (*domain.Config, error) {
	var tier struct {
		Tier domain.Tier
	}
	if err := envconfig.Process(prefix, &tier); err != nil {
		return nil, fmt.Errorf("failed to read tier: %w", err)
	}

	var cfg *domain.Config
	switch tier.Tier {
	case "", domain.TierCommunity:
		cfg = domain.DefaultConfig()
	case domain.TierPro:
		cfg = domain.ProConfig()
	default:
		return nil, fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidInput, tier.Tier)
	}

	if err := envconfig.Process(prefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the components cannot run with.
func Validate(cfg *domain.Config) error {
	var problems []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server port %d out of range", cfg.Server.Port))
	}
	if cfg.Rules.MaxClaimAmount <= 0 {
		problems = append(problems, "rules max claim amount must be positive")
	}
	if cfg.Scoring.StatisticalWeight < 0 || cfg.Scoring.NarrativeWeight < 0 ||
		cfg.Scoring.StatisticalWeight+cfg.Scoring.NarrativeWeight <= 0 {
		problems = append(problems, "scoring weights must be non-negative with a positive sum")
	}
	if cfg.Pipeline.MaxParallel < 1 {
		problems = append(problems, "pipeline max parallel must be at least 1")
	}
	if _, err := ParseLevel(cfg.Logging.Level); err != nil {
		problems = append(problems, err.Error())
	}

	switch cfg.Providers.DocumentAnalyzer {
	case "local", "textract", "vertex", "auto":
	default:
		problems = append(problems, fmt.Sprintf("unknown document analyzer %q", cfg.Providers.DocumentAnalyzer))
	}
	switch cfg.Providers.Narrative {
	case "heuristic", "comprehend", "bedrock", "vertex":
	default:
		problems = append(problems, fmt.Sprintf("unknown narrative provider %q", cfg.Providers.Narrative))
	}
	switch cfg.Notify.Mailer {
	case "log", "ses":
	default:
		problems = append(problems, fmt.Sprintf("unknown mailer %q", cfg.Notify.Mailer))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// ParseLevel maps a logging level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}
