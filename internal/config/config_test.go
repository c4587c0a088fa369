package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretPrefixTruncatesLongSecrets(t *testing.T) {
	assert.Equal(t, "abcdefgh", SecretPrefix("abcdefgh-rest-of-the-secret"))
}

func TestSecretPrefixNeverReturnsShortSecretsWhole(t *testing.T) {
	for _, s := range []string{"", "x", "short", "12345678"} {
		got := SecretPrefix(s)
		assert.Equal(t, "***", got, s)
		if s != "" {
			assert.NotEqual(t, s, got, s)
		}
	}
}
