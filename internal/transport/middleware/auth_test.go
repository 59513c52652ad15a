package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulebil/UniHostel/internal/entity"
)

func TestValidateJWT(t *testing.T) {
	student := entity.Principal{ID: 42, Role: entity.RoleStudent}

	good, err := CreateToken("s3cret", "unihostel", student, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT("s3cret", "unihostel", good)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "student", claims.Role)

	// issuer check is skipped when none is configured
	_, err = ValidateJWT("s3cret", "", good)
	assert.NoError(t, err)

	expired, err := CreateToken("s3cret", "unihostel", student, -time.Minute)
	require.NoError(t, err)

	janitor, err := CreateToken("s3cret", "unihostel", entity.Principal{ID: 3, Role: "janitor"}, time.Hour)
	require.NoError(t, err)

	anonymous, err := CreateToken("s3cret", "unihostel", entity.Principal{Role: entity.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, MyClaims{UserID: 1, Role: "admin"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		issuer string
		token  string
	}{
		{name: "empty", secret: "s3cret", token: ""},
		{name: "wrong secret", secret: "other", issuer: "unihostel", token: good},
		{name: "wrong issuer", secret: "s3cret", issuer: "someone-else", token: good},
		{name: "expired", secret: "s3cret", issuer: "unihostel", token: expired},
		{name: "unknown role", secret: "s3cret", issuer: "unihostel", token: janitor},
		{name: "no user id", secret: "s3cret", issuer: "unihostel", token: anonymous},
		{name: "alg none", secret: "s3cret", token: unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateJWT(tt.secret, tt.issuer, tt.token)
			assert.Error(t, err)
		})
	}
}
