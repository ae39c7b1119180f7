package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b, "tokens should be unique per call")
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "/")
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name      string
		presented string
		expected  string
		want      bool
	}{
		{"match", "secret", "secret", true},
		{"mismatch", "secret", "Secret", false},
		{"prefix", "sec", "secret", false},
		{"empty presented", "", "secret", false},
		{"empty expected", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Verify(tt.presented, tt.expected))
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"Bearer  abc ", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/api/state", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		token, ok := BearerToken(r)
		assert.Equal(t, tt.token, token, "header %q", tt.header)
		assert.Equal(t, tt.ok, ok, "header %q", tt.header)
	}
}

func TestAuthorized(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/state", nil)
	assert.False(t, Authorized(r, "secret"))

	r.Header.Set("Authorization", "Bearer secret")
	assert.True(t, Authorized(r, "secret"))
	assert.False(t, Authorized(r, "other"))
}
