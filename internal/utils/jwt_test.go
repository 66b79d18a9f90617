package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/digital-library/internal/model"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	ref := model.PrincipalRef{Kind: model.KindUser, ID: 42}
	tok, err := NewAccessToken("secret", ref, model.RoleStudent, 15)
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)

	claims, err := ParseAccessToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, ref, claims.Ref)
	assert.Equal(t, model.RoleStudent, claims.Role)
}

func TestAccessTokenKinds(t *testing.T) {
	for _, kind := range []model.Kind{model.KindUser, model.KindInstitution, model.KindAdmin} {
		tok, err := NewAccessToken("secret", model.PrincipalRef{Kind: kind, ID: 7}, "", 5)
		require.NoError(t, err)
		claims, err := ParseAccessToken("secret", tok.Token)
		require.NoError(t, err)
		assert.Equal(t, kind, claims.Ref.Kind)
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	ref := model.PrincipalRef{Kind: model.KindAdmin, ID: 1}

	good, err := NewAccessToken("secret", ref, model.RoleAdmin, 15)
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := ParseAccessToken("other-secret", good.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		expired, err := NewAccessToken("secret", ref, model.RoleAdmin, -1)
		require.NoError(t, err)
		_, err = ParseAccessToken("secret", expired.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseAccessToken("secret", "not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewRefreshToken(t *testing.T) {
	a, err := NewRefreshToken(7)
	require.NoError(t, err)
	b, err := NewRefreshToken(7)
	require.NoError(t, err)

	assert.Len(t, a.Raw, 96)
	assert.NotEqual(t, a.Raw, b.Raw, "refresh tokens must be unique")
	assert.True(t, b.Exp.After(a.Exp.Add(-time.Minute)))
}

func TestHashRefreshRaw(t *testing.T) {
	h := HashRefreshRaw("some-token")
	assert.Len(t, h, 64)
	assert.NotEqual(t, "some-token", h)
	assert.Equal(t, h, HashRefreshRaw("some-token"), "hash must be deterministic")
	assert.NotEqual(t, h, HashRefreshRaw("some-other-token"))
}
