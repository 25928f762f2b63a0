package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// Decisions have no update or delete path.
type Repository interface {
	// Claim operations. CreateClaim also inserts the claim's documents.
	CreateClaim(ctx context.Context, claim *Claim) error
	GetClaim(ctx context.Context, claimID string) (*Claim, error)
	UpdateClaim(ctx context.Context, claim *Claim) error
	ListClaimsByClaimant(ctx context.Context, claimantID string, since time.Time) ([]*Claim, error)

	// Document operations
	AddDocument(ctx context.Context, doc *Document) error
	UpdateDocument(ctx context.Context, doc *Document) error

	// RecordOutcome writes the claim row and appends the decision atomically.
	RecordOutcome(ctx context.Context, claim *Claim, decision *Decision) error
	ListDecisions(ctx context.Context, claimID string) ([]*Decision, error)

	// Notification log
	SaveNotification(ctx context.Context, n *Notification) error
	UpdateNotification(ctx context.Context, n *Notification) error
	GetNotification(ctx context.Context, notificationID string) (*Notification, error)
	ListNotifications(ctx context.Context, claimID string) ([]*Notification, error)

	// Custom rule configuration operations
	SaveRuleConfig(ctx context.Context, rule *RuleConfig) error
	GetRuleConfig(ctx context.Context, ruleID string) (*RuleConfig, error)
	ListRuleConfigs(ctx context.Context) ([]*RuleConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string `envconfig:"SQLITE_PATH"`

	// PostgreSQL specific
	PostgresHost     string `split_words:"true"`
	PostgresPort     int    `split_words:"true"`
	PostgresUser     string `split_words:"true"`
	PostgresPassword string `split_words:"true"`
	PostgresDB       string `envconfig:"POSTGRES_DB"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE"`

	// Connection pool settings
	MaxOpenConns    int           `split_words:"true"`
	MaxIdleConns    int           `split_words:"true"`
	ConnMaxLifetime time.Duration `split_words:"true"`
}
