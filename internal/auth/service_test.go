package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestService() *Service {
	return NewService(nil, nil, "cryptoprofit", []byte("test-secret"), time.Hour, time.Second)
}

func TestReferralCodeFor(t *testing.T) {
	code := referralCodeFor("0b689798-3325-47e0-9e9d-4b3f0e2a9f11")
	assert.True(t, strings.HasPrefix(code, "cp"))
	assert.NotContains(t, code, "-")
	assert.Equal(t, "cp0b689798332547e09e9d4b3f0e2a9f11", code)
}

func TestTokenRoundtrip(t *testing.T) {
	svc := newTestService()
	token, err := svc.signToken("user-123")
	assert.NoError(t, err)

	subject, err := svc.ParseToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "user-123", subject)
}

func TestParseTokenRejectsForeignIssuer(t *testing.T) {
	other := NewService(nil, nil, "someone-else", []byte("test-secret"), time.Hour, time.Second)
	token, err := other.signToken("user-123")
	assert.NoError(t, err)

	_, err = newTestService().ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	forged := NewService(nil, nil, "cryptoprofit", []byte("other-secret"), time.Hour, time.Second)
	token, err := forged.signToken("user-123")
	assert.NoError(t, err)

	_, err = newTestService().ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, err := newTestService().ParseToken("not-a-jwt")
	assert.Error(t, err)
}
