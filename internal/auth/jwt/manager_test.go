package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoozak/yoozak-backend/pkg/config"
	apperrors "github.com/yoozak/yoozak-backend/pkg/errors"
)

func testManager() *Manager {
	return NewManager(&config.JWTConfig{
		Secret:       "test-secret",
		AccessExpiry: time.Hour,
		Issuer:       "yoozak",
	})
}

func TestGenerateAndValidate(t *testing.T) {
	m := testManager()

	tok, err := m.GenerateToken(&OperatorInfo{
		ID:          "op-1",
		Email:       "salma@yoozak.ma",
		FirstName:   "Salma",
		Role:        "confirmation",
		Permissions: []string{"orders.confirm"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)

	a, err := m.ValidateToken(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "op-1", a.ID)
	assert.Equal(t, "confirmation", a.Role)
	assert.Equal(t, []string{"orders.confirm"}, a.Permissions)
}

func TestValidate_Expired(t *testing.T) {
	m := testManager()
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	tok, err := m.GenerateToken(&OperatorInfo{ID: "op-1", Role: "admin"})
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateAccessToken(tok.AccessToken)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TOKEN_EXPIRED", appErr.Code)
}

func TestValidate_WrongSecret(t *testing.T) {
	tok, err := testManager().GenerateToken(&OperatorInfo{ID: "op-1"})
	require.NoError(t, err)

	other := NewManager(&config.JWTConfig{Secret: "other", AccessExpiry: time.Hour, Issuer: "yoozak"})
	_, err = other.ValidateAccessToken(tok.AccessToken)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TOKEN_INVALID", appErr.Code)
}

func TestValidate_Garbage(t *testing.T) {
	_, err := testManager().ValidateAccessToken("not-a-token")
	assert.Error(t, err)
}
