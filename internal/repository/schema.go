package repository

// Schema definitions for the Harrier database.
// Compatible with both SQLite and PostgreSQL. Amounts are stored in cents.

const schemaClaims = `
CREATE TABLE IF NOT EXISTS claims (
    id TEXT PRIMARY KEY,
    policy_id TEXT NOT NULL,
    claimant_id TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    amount_cents BIGINT NOT NULL,
    status TEXT NOT NULL,
    submitted_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    fraud_score DOUBLE PRECISION,
    approval_score DOUBLE PRECISION,
    assigned_specialist_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_claims_claimant ON claims(claimant_id, submitted_at);
CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);
`

const schemaDocuments = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    claim_id TEXT NOT NULL REFERENCES claims(id),
    document_type TEXT NOT NULL,
    locator TEXT NOT NULL,
    uploaded_at TIMESTAMP NOT NULL,
    ocr_status TEXT NOT NULL,
    ocr_confidence DOUBLE PRECISION,
    extracted_text TEXT,
    classified_type TEXT
);

CREATE INDEX IF NOT EXISTS idx_documents_claim ON documents(claim_id);
`

const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    claim_id TEXT NOT NULL REFERENCES claims(id),
    status TEXT NOT NULL,
    decided_at TIMESTAMP NOT NULL,
    reason TEXT NOT NULL,
    reviewer TEXT NOT NULL,
    fraud_score DOUBLE PRECISION,
    approval_score DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_decisions_claim ON decisions(claim_id, decided_at);
`

const schemaNotifications = `
CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    claim_id TEXT NOT NULL,
    recipient TEXT NOT NULL,
    kind TEXT NOT NULL,
    status TEXT NOT NULL,
    subject TEXT NOT NULL,
    body TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    sent_at TIMESTAMP,
    error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_notifications_claim ON notifications(claim_id, created_at);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(enabled);
`

// AllSchemas returns all schema definitions in order.
func AllSchemas() []string {
	return []string{
		schemaClaims,
		schemaDocuments,
		schemaDecisions,
		schemaNotifications,
		schemaRuleConfigs,
	}
}
