package auth_test

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/container-tracker/internal/auth"
)

var tokenNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTokens() auth.Tokens {
	return auth.Tokens{
		Secret:   []byte("0123456789abcdef0123456789abcdef"),
		Issuer:   "container-tracker",
		Audience: "tracker-api",
		Now:      func() time.Time { return tokenNow },
	}
}

func TestSignThenParseReturnsSubject(t *testing.T) {
	t.Parallel()

	tokens := newTokens()
	signed, err := tokens.Sign("user-42")
	require.NoError(t, err)

	subject, err := tokens.Parse(signed)
	require.NoError(t, err)
	require.Equal(t, "user-42", subject)
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	tokens := newTokens()
	signed, err := tokens.Sign("user-42")
	require.NoError(t, err)

	otherKey := newTokens()
	otherKey.Secret = []byte("another-secret-another-secret-00")
	forged, err := otherKey.Sign("admin")
	require.NoError(t, err)

	otherAudience := newTokens()
	otherAudience.Audience = "billing"
	wrongAudience, err := otherAudience.Sign("user-42")
	require.NoError(t, err)

	later := newTokens()
	later.Now = func() time.Time { return tokenNow.Add(time.Hour) }

	unsigned, err := jwt.NewBuilder().Subject("user-42").Expiration(tokenNow.Add(time.Hour)).Build()
	require.NoError(t, err)
	none, err := jwt.Sign(unsigned, jwt.WithInsecureNoSignature())
	require.NoError(t, err)

	cases := map[string]struct {
		tokens auth.Tokens
		token  string
	}{
		"garbage":        {tokens, "not-a-jwt"},
		"wrong key":      {tokens, forged},
		"wrong audience": {tokens, wrongAudience},
		"expired":        {later, signed},
		"unsigned":       {tokens, string(none)},
	}
	for name, tc := range cases {
		_, err := tc.tokens.Parse(tc.token)
		require.ErrorIs(t, err, auth.ErrInvalidToken, name)
	}
}

func TestTokensRequireSecret(t *testing.T) {
	t.Parallel()

	_, err := auth.Tokens{}.Sign("user-42")
	require.ErrorIs(t, err, auth.ErrNotConfigured)
	_, err = auth.Tokens{}.Parse("x.y.z")
	require.ErrorIs(t, err, auth.ErrNotConfigured)
}

func TestTokenValidatorRequiresSubject(t *testing.T) {
	t.Parallel()

	tok, err := jwt.NewBuilder().
		Issuer("container-tracker").
		IssuedAt(tokenNow).
		Expiration(tokenNow.Add(time.Minute)).
		Build()
	require.NoError(t, err)

	v := auth.TokenValidator{Issuer: "container-tracker", Algorithm: jwa.HS256}
	require.Error(t, v.Validate(tok, jwa.HS256, tokenNow))
	require.Error(t, v.Validate(tok, jwa.RS256, tokenNow))
}
