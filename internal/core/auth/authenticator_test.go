package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webhook-forwarder/internal/pkg/config"
)

func sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func newTestAuthenticator(t *testing.T, cfg config.AuthConfig, env map[string]string) *Authenticator {
	t.Helper()
	a := New(cfg, nil)
	a.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return a
}

func TestAuthenticate_Disabled_AlwaysAccepts(t *testing.T) {
	a := newTestAuthenticator(t, config.AuthConfig{Enabled: false}, nil)

	result := a.Authenticate("alchemy", "", "", []byte("body"))

	assert.True(t, result.Authenticated)
	assert.Empty(t, result.FailureReason)
}

func TestAuthenticate_NoSecretConfigured_FailsOpen(t *testing.T) {
	a := newTestAuthenticator(t, config.AuthConfig{Enabled: true}, nil)

	result := a.Authenticate("alchemy", "deadbeef", "", []byte("body"))

	require.True(t, result.Authenticated)
}

func TestAuthenticate_MissingSignature_FailsClosed(t *testing.T) {
	a := newTestAuthenticator(t, config.AuthConfig{
		Enabled:         true,
		ProviderSecrets: map[string]string{"alchemy": "s3cret"},
	}, nil)

	result := a.Authenticate("alchemy", "", "", []byte("body"))

	require.False(t, result.Authenticated)
	assert.Equal(t, ReasonMissingSignature, result.FailureReason)
}

func TestAuthenticate_ValidSignature_FromConfigSecret(t *testing.T) {
	body := []byte(`{"type":"mined"}`)
	secret := "s3cret"
	a := newTestAuthenticator(t, config.AuthConfig{
		Enabled:         true,
		ProviderSecrets: map[string]string{"alchemy": secret},
	}, nil)

	result := a.Authenticate("alchemy", "sha256="+sign(secret, body), "", body)

	require.True(t, result.Authenticated)
	assert.Empty(t, result.FailureReason)
}

func TestAuthenticate_ValidSignature_FromEnvSecretTakesPriority(t *testing.T) {
	body := []byte(`{"type":"mined"}`)
	a := newTestAuthenticator(t,
		config.AuthConfig{
			Enabled:         true,
			ProviderSecrets: map[string]string{"alchemy": "wrong-secret"},
		},
		map[string]string{"SECRET_ALCHEMY": "right-secret"},
	)

	result := a.Authenticate("alchemy", sign("right-secret", body), "", body)

	require.True(t, result.Authenticated)
}

func TestAuthenticate_InvalidSignature_FailsClosed(t *testing.T) {
	body := []byte(`{"type":"mined"}`)
	a := newTestAuthenticator(t, config.AuthConfig{
		Enabled:         true,
		ProviderSecrets: map[string]string{"alchemy": "s3cret"},
	}, nil)

	result := a.Authenticate("alchemy", "deadbeef", "", body)

	require.False(t, result.Authenticated)
	assert.Equal(t, ReasonInvalidSignature, result.FailureReason)
}

func TestAuthenticate_SignatureCaseAndWhitespaceNormalized(t *testing.T) {
	body := []byte(`{"type":"mined"}`)
	secret := "s3cret"
	a := newTestAuthenticator(t, config.AuthConfig{
		Enabled:         true,
		ProviderSecrets: map[string]string{"alchemy": secret},
	}, nil)

	raw := "SHA256=" + strings.ToUpper(sign(secret, body))
	result := a.Authenticate("alchemy", "  "+raw+"  ", "", body)

	require.True(t, result.Authenticated)
}

func TestAuthenticate_AllowlistRejectsUnlistedAddress(t *testing.T) {
	body := []byte(`{"type":"mined"}`)
	secret := "s3cret"
	a := newTestAuthenticator(t, config.AuthConfig{
		Enabled:         true,
		ProviderSecrets: map[string]string{"alchemy": secret},
		AllowedIPs:      []string{"10.0.0.1"},
	}, nil)

	result := a.Authenticate("alchemy", sign(secret, body), "203.0.113.5:54321", body)

	require.False(t, result.Authenticated)
	assert.Equal(t, ReasonIPNotAllowed, result.FailureReason)
}

func TestAuthenticate_AllowlistAcceptsListedAddress(t *testing.T) {
	body := []byte(`{"type":"mined"}`)
	secret := "s3cret"
	a := newTestAuthenticator(t, config.AuthConfig{
		Enabled:         true,
		ProviderSecrets: map[string]string{"alchemy": secret},
		AllowedIPs:      []string{"10.0.0.1"},
	}, nil)

	result := a.Authenticate("alchemy", sign(secret, body), "10.0.0.1:54321", body)

	require.True(t, result.Authenticated)
}

func TestAuthenticate_EmptyAllowlistSkipsIPCheck(t *testing.T) {
	body := []byte(`{"type":"mined"}`)
	secret := "s3cret"
	a := newTestAuthenticator(t, config.AuthConfig{
		Enabled:         true,
		ProviderSecrets: map[string]string{"alchemy": secret},
	}, nil)

	result := a.Authenticate("alchemy", sign(secret, body), "203.0.113.5:54321", body)

	require.True(t, result.Authenticated)
}
