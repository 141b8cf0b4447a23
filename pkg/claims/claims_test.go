package claims

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "valid bearer", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "lowercase scheme", header: "bearer tok", want: "tok"},
		{name: "missing header", header: "", wantErr: ErrNoCredential},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", wantErr: ErrNoCredential},
		{name: "scheme only", header: "Bearer", wantErr: ErrNoCredential},
		{name: "empty token", header: "Bearer ", wantErr: ErrNoCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			got, err := BearerToken(r)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromRawRequiresSubject(t *testing.T) {
	_, err := fromRaw("oidc", map[string]interface{}{"email": "a@b.test"})
	require.ErrorIs(t, err, ErrMalformedCredential)

	c, err := fromRaw("oidc", map[string]interface{}{
		"sub":   "auth0|123",
		"iss":   "https://issuer.test",
		"email": "jo@example.test",
		"name":  "Jo Bloggs",
	})
	require.NoError(t, err)
	assert.Equal(t, "auth0|123", c.Subject)
	assert.Equal(t, "https://issuer.test", c.Issuer)
	assert.Equal(t, "jo@example.test", c.Email)
	assert.Equal(t, "Jo Bloggs", c.Name)
	assert.Equal(t, "oidc", c.Provider)
}
