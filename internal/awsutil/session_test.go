package awsutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestNewSession(t *testing.T) {
	t.Run("RegionRequired", func(t *testing.T) {
		_, err := NewSession(domain.ProvidersConfig{})
		assert.Error(t, err)
	})

	t.Run("StaticCredentialsAndEndpoint", func(t *testing.T) {
		sess, err := NewSession(domain.ProvidersConfig{
			AWSRegion:          "eu-west-1",
			AWSAccessKeyID:     "AKIDEXAMPLE",
			AWSSecretAccessKey: "secret",
			AWSEndpoint:        "http://localhost:4566",
		})
		require.NoError(t, err)

		assert.Equal(t, "eu-west-1", *sess.Config.Region)
		assert.Equal(t, "http://localhost:4566", *sess.Config.Endpoint)

		creds, err := sess.Config.Credentials.Get()
		require.NoError(t, err)
		assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
	})
}
