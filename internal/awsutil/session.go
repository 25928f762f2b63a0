// Package awsutil builds the shared AWS session for provider clients.
package awsutil

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/opensource-finance/harrier/internal/domain"
)

// NewSession creates an AWS session from provider settings. Static
// credentials are used when both keys are set; otherwise the default
// credential chain applies. AWSEndpoint points every client at a custom
// endpoint such as localstack.
func NewSession(cfg domain.ProvidersConfig) (*session.Session, error) {
	if cfg.AWSRegion == "" {
		return nil, fmt.Errorf("aws region is required")
	}

	awsCfg := &aws.Config{
		Region: aws.String(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, "")
	}
	if cfg.AWSEndpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.AWSEndpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	return sess, nil
}
