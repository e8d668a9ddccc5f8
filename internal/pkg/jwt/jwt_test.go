package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := []byte("secret")
	token, err := GenerateToken("ingest-bot", ScopeWrite, secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "ingest-bot", claims.Subject)
	require.Equal(t, ScopeWrite, claims.Scope)

	_, err = ParseToken(token, []byte("other"))
	require.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	secret := []byte("secret")
	token, err := GenerateToken("ingest-bot", ScopeWrite, secret, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(token, secret)
	require.Error(t, err)
}
