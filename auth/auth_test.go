package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompareSecretPhrase(t *testing.T) {
	req := require.New(t)
	phrase := "correct horse battery staple"

	hash, err := HashSecretPhrase(phrase)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := CompareSecretPhrase(phrase, hash)
	req.NoError(err)
	req.True(match)

	// Wrong phrase must not match, and must not say why.
	match, err = CompareSecretPhrase("wrong phrase", hash)
	req.NoError(err)
	req.False(match)
}

func TestCompareSecretPhrase_MalformedHash(t *testing.T) {
	req := require.New(t)

	_, err := CompareSecretPhrase("whatever", "not-an-encoded-hash")
	req.Error(err)
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(24 * time.Hour)
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := ValidateToken(token)
	req.NoError(err)
	req.Equal("participant", claims.Subject)
	req.Equal("duochat", claims.Issuer)
}

func TestTokenExpiry(t *testing.T) {
	req := require.New(t)

	// Issued already expired.
	token, err := GenerateToken(-1 * time.Minute)
	req.NoError(err)

	_, err = ValidateToken(token)
	req.Error(err)
}

func TestTokenTampered(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(time.Hour)
	req.NoError(err)

	_, err = ValidateToken(token + "x")
	req.Error(err)
}

func BenchmarkHashSecretPhrase(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashSecretPhrase("a-long-shared-secret-phrase-for-bench")
	}
}
