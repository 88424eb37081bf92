package utils

import (
	"context"
	"testing"
	"time"

	"kolia/internal/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT(12, domain.RoleLivreur, "s3cret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, uint(12), claims.UserID)
	assert.Equal(t, domain.RoleLivreur, claims.Role)

	_, err = ParseJWT(token, "other")
	assert.Error(t, err)
}

func TestJWTExpired(t *testing.T) {
	token, err := GenerateJWT(1, domain.RoleClient, "s3cret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(token, "s3cret")
	assert.Error(t, err)
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	var out []string
	assert.False(t, c.Get(context.Background(), "k", &out))
	c.Set(context.Background(), "k", []string{"a"}, time.Minute)
	c.Invalidate(context.Background(), "k*")

	assert.False(t, NewCache(nil).Get(context.Background(), "k", &out))
}

type phoneForm struct {
	Phone string `binding:"required,kolia_phone"`
}

func TestPhoneValidator(t *testing.T) {
	require.NoError(t, RegisterValidators())

	assert.NoError(t, binding.Validator.ValidateStruct(phoneForm{Phone: "+243970000001"}))
	assert.Error(t, binding.Validator.ValidateStruct(phoneForm{Phone: "+24397000000"}))
	assert.Error(t, binding.Validator.ValidateStruct(phoneForm{Phone: "0970000001"}))
}
