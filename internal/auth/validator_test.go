package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "5b7c1f0e-0000-4000-8000-000000000001",
		"email": "ana@beast.crm",
		"role":  "authenticated",
		"aud":   "authenticated",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func TestValidateToken(t *testing.T) {
	v := NewValidator(testSecret, "authenticated")

	claims, err := v.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()))
	require.NoError(t, err)
	assert.Equal(t, Claims{
		UserID: "5b7c1f0e-0000-4000-8000-000000000001",
		Email:  "ana@beast.crm",
		Role:   "authenticated",
	}, claims)
}

func TestValidateToken_Rejects(t *testing.T) {
	v := NewValidator(testSecret, "authenticated")

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	wrongAud := validClaims()
	wrongAud["aud"] = "anon"

	noSub := validClaims()
	delete(noSub, "sub")

	noExp := validClaims()
	delete(noExp, "exp")

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "wrong secret", token: sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims())},
		{name: "wrong method", token: sign(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims())},
		{name: "expired", token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{name: "wrong audience", token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), wrongAud)},
		{name: "missing subject", token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), noSub)},
		{name: "missing expiry", token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), noExp)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestValidateToken_NoAudienceCheck(t *testing.T) {
	v := NewValidator(testSecret, "")
	c := validClaims()
	c["aud"] = "anything"

	_, err := v.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))
	assert.NoError(t, err)
}

func TestValidateToken_MissingSecret(t *testing.T) {
	_, err := NewValidator("", "").ValidateToken("x")
	assert.ErrorIs(t, err, ErrMissingSecret)
}
