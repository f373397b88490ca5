package auth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "https://example.com/", nil)
	require.NoError(t, err)
	return req
}

func TestBasicAuth(t *testing.T) {
	creds := &Credentials{Type: TypeBasic, Username: "demo", Password: "secret"}
	require.NoError(t, creds.Validate())
	assert.True(t, creds.Enabled())

	req := newRequest(t)
	creds.Apply(req)

	user, pass, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "demo", user)
	assert.Equal(t, "secret", pass)
}

func TestBearerAuth(t *testing.T) {
	creds := &Credentials{Type: TypeBearer, Token: "tok-123"}
	require.NoError(t, creds.Validate())

	req := newRequest(t)
	creds.Apply(req)
	assert.Equal(t, "Bearer tok-123", req.Header.Get("Authorization"))
}

func TestCookieAuth(t *testing.T) {
	creds := &Credentials{Type: TypeCookie, Cookies: []Cookie{{Name: "session", Value: "abc"}}}
	require.NoError(t, creds.Validate())

	req := newRequest(t)
	creds.Apply(req)

	cookie, err := req.Cookie("session")
	require.NoError(t, err)
	assert.Equal(t, "abc", cookie.Value)
}

func TestCustomHeadersApplyWithoutScheme(t *testing.T) {
	creds := &Credentials{Headers: map[string]string{"X-Preview-Key": "k1"}}
	require.NoError(t, creds.Validate())
	assert.True(t, creds.Enabled())

	req := newRequest(t)
	creds.Apply(req)
	assert.Equal(t, "k1", req.Header.Get("X-Preview-Key"))
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestValidateRejectsIncompleteSchemes(t *testing.T) {
	assert.Error(t, (&Credentials{Type: TypeBasic}).Validate())
	assert.Error(t, (&Credentials{Type: TypeBearer}).Validate())
	assert.Error(t, (&Credentials{Type: TypeCookie}).Validate())
	assert.Error(t, (&Credentials{Type: Type("digest")}).Validate())
	assert.NoError(t, (*Credentials)(nil).Validate())
}

func TestNilCredentials(t *testing.T) {
	var creds *Credentials
	assert.False(t, creds.Enabled())

	req := newRequest(t)
	creds.Apply(req)
	assert.Empty(t, req.Header.Get("Authorization"))
}
