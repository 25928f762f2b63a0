package domain

import "time"

// Config holds the complete Harrier configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" split_words:"true"`

	// Adjudication
	Rules    RulesConfig    `json:"rules"`
	Scoring  ScoringConfig  `json:"scoring"`
	Pipeline PipelineConfig `json:"pipeline"`

	// Collaborators
	Providers ProvidersConfig `json:"providers"`
	Notify    NotifyConfig    `json:"notify"`

	// Observability
	Logging  LoggingConfig  `json:"logging"`
	Tracing  TracingConfig  `json:"tracing"`
	Alerting AlertingConfig `json:"alerting"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout" split_words:"true"`  // seconds
	WriteTimeout int    `json:"writeTimeout" split_words:"true"` // seconds
}

// RulesConfig holds the policy limits used by the rules engine.
type RulesConfig struct {
	MaxClaimAmount       Money            `json:"maxClaimAmount" split_words:"true"`
	MaxClaimsPerMonth    int              `json:"maxClaimsPerMonth" split_words:"true"`
	MinDaysBetweenClaims int              `json:"minDaysBetweenClaims" split_words:"true"`
	DuplicateWindow      time.Duration    `json:"duplicateWindow" split_words:"true"`
	DocumentThreshold    Money            `json:"documentThreshold" split_words:"true"`
	MinPolicyIDLength    int              `json:"minPolicyIdLength" envconfig:"MIN_POLICY_ID_LENGTH"`
	CoverageTiers        map[string]Money `json:"coverageTiers" split_words:"true"`
}

// ScoringConfig holds signal weights and disposition thresholds.
type ScoringConfig struct {
	StatisticalWeight float64 `json:"statisticalWeight" split_words:"true"`
	NarrativeWeight   float64 `json:"narrativeWeight" split_words:"true"`

	// RejectAbove: combined fraud strictly above this rejects.
	RejectAbove float64 `json:"rejectAbove" split_words:"true"`
	// ApproveAbove and ApproveFraudBelow: approval strictly above and fraud
	// strictly below auto-approve.
	ApproveAbove      float64 `json:"approveAbove" split_words:"true"`
	ApproveFraudBelow float64 `json:"approveFraudBelow" split_words:"true"`

	// Risk level labels, reporting only.
	HighRiskAbove   float64 `json:"highRiskAbove" split_words:"true"`
	MediumRiskAbove float64 `json:"mediumRiskAbove" split_words:"true"`

	// HistoryFeatures feeds real claimant history into the statistical model.
	// When false the model sees zeros for history features.
	HistoryFeatures bool          `json:"historyFeatures" split_words:"true"`
	HistoryWindow   time.Duration `json:"historyWindow" split_words:"true"`
}

// PipelineConfig holds orchestrator settings.
type PipelineConfig struct {
	ParallelDocuments bool          `json:"parallelDocuments" split_words:"true"`
	MaxParallel       int           `json:"maxParallel" split_words:"true"`
	ProviderTimeout   time.Duration `json:"providerTimeout" split_words:"true"`
	LockTTL           time.Duration `json:"lockTtl" envconfig:"LOCK_TTL"`
	StaleAfter        time.Duration `json:"staleAfter" split_words:"true"`
}

// ProvidersConfig selects and configures external providers.
type ProvidersConfig struct {
	// DocumentAnalyzer: "local", "textract", "vertex" or "auto" (route by
	// locator scheme across every configured provider).
	DocumentAnalyzer string `json:"documentAnalyzer" split_words:"true"`
	// Narrative: "heuristic", "comprehend" (heuristic plus Comprehend
	// sentiment and entities), "bedrock" (Comprehend over a Bedrock model)
	// or "vertex".
	Narrative string `json:"narrative"`
	// DocumentRoot is the only directory local document locators may read
	// from. Empty disables local documents.
	DocumentRoot string `json:"documentRoot" split_words:"true"`

	AWSRegion          string `json:"awsRegion" envconfig:"AWS_REGION"`
	AWSAccessKeyID     string `json:"-" envconfig:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `json:"-" envconfig:"AWS_SECRET_ACCESS_KEY"`
	AWSEndpoint        string `json:"awsEndpoint" envconfig:"AWS_ENDPOINT"`

	VertexProject  string `json:"vertexProject" split_words:"true"`
	VertexLocation string `json:"vertexLocation" split_words:"true"`
	VertexModel    string `json:"vertexModel" split_words:"true"`

	BedrockModel string `json:"bedrockModel" split_words:"true"`
}

// NotifyConfig selects the mailer.
type NotifyConfig struct {
	// Mailer: "log" or "ses".
	Mailer      string `json:"mailer"`
	FromAddress string `json:"fromAddress" split_words:"true"`
	FromName    string `json:"fromName" split_words:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName" split_words:"true"`
}

// AlertingConfig holds Sentry settings. Alerting is off without a DSN.
type AlertingConfig struct {
	SentryDSN   string `json:"-" envconfig:"SENTRY_DSN"`
	Environment string `json:"environment"`
	Release     string `json:"release"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity runs on SQLite + channels
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
			StatusTTL:    30 * time.Second,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Rules:   DefaultRulesConfig(),
		Scoring: DefaultScoringConfig(),
		Pipeline: PipelineConfig{
			MaxParallel:     4,
			ProviderTimeout: 30 * time.Second,
			LockTTL:         5 * time.Minute,
			StaleAfter:      15 * time.Minute,
		},
		Providers: ProvidersConfig{
			DocumentAnalyzer: "local",
			Narrative:        "heuristic",
			DocumentRoot:     "documents",
			AWSRegion:        "us-east-1",
			VertexLocation:   "us-central1",
			VertexModel:      "gemini-1.5-pro",
			BedrockModel:     "anthropic.claude-3-5-haiku-20241022-v1:0",
		},
		Notify: NotifyConfig{
			Mailer:      "log",
			FromAddress: "claims@harrier.local",
			FromName:    "Harrier Claims",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
		Alerting: AlertingConfig{
			Environment: "development",
		},
	}
}

// DefaultRulesConfig returns the standard policy limits.
func DefaultRulesConfig() RulesConfig {
	return RulesConfig{
		MaxClaimAmount:       Dollars(50000),
		MaxClaimsPerMonth:    3,
		MinDaysBetweenClaims: 7,
		DuplicateWindow:      7 * 24 * time.Hour,
		DocumentThreshold:    Dollars(1000),
		MinPolicyIDLength:    5,
		CoverageTiers: map[string]Money{
			"PREM":  Dollars(100000),
			"STD":   Dollars(25000),
			"BASIC": Dollars(10000),
		},
	}
}

// DefaultScoringConfig returns the standard weights and thresholds.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		StatisticalWeight: 0.6,
		NarrativeWeight:   0.4,
		RejectAbove:       0.70,
		ApproveAbove:      0.80,
		ApproveFraudBelow: 0.30,
		HighRiskAbove:     0.70,
		MediumRiskAbove:   0.40,
		HistoryFeatures:   true,
		HistoryWindow:     365 * 24 * time.Hour,
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "harrier",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
		StatusTTL:      30 * time.Second,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
		NATSQueueGroup:    "harrier",
	}
	cfg.Tracing.Enabled = true
	return cfg
}
