package network

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
		secret   string
	}{
		{
			name:     "bearer header",
			input:    "Authorization: Bearer abc.def-ghi",
			contains: "Bearer [REDACTED]",
			secret:   "abc.def-ghi",
		},
		{
			name:     "sas signature",
			input:    "PUT https://account.blob.core.windows.net/c/b?sv=2021&sig=Zm9v%2Bbar&comp=block",
			contains: "&sig=[REDACTED]",
			secret:   "Zm9v%2Bbar",
		},
		{
			name:     "json upload token",
			input:    `{"uploadInfo":{"token":"xfus-token","uploadDomain":"https://upload"}}`,
			contains: `"token":"[REDACTED]"`,
			secret:   "xfus-token",
		},
		{
			name:     "json sas uri",
			input:    `{"sasUri": "https://account.blob.core.windows.net/c/b?sig=x"}`,
			contains: `"sasUri": "[REDACTED]`,
			secret:   "account.blob.core.windows.net",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(tt.input)
			assert.Contains(t, got, tt.contains)
			assert.NotContains(t, got, tt.secret)
		})
	}
}

func TestRedactor_LiteralSecrets(t *testing.T) {
	r := NewRedactor()
	r.Add("client-secret-value", "", "  ")

	got := r.Redact("secret is client-secret-value here")
	assert.Equal(t, "secret is [REDACTED] here", got)
	assert.Equal(t, "nothing to hide", r.Redact("nothing to hide"))
}

func TestRedactor_RedactURL(t *testing.T) {
	r := NewRedactor()

	got := r.RedactURL("https://account.blob.core.windows.net/c/b?comp=block&sig=secret")
	assert.NotContains(t, got, "secret")
	assert.Contains(t, got, "comp=block")

	assert.Equal(t, "https://api.example.com/products/1", r.RedactURL("https://api.example.com/products/1"))
}

func TestWithRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	base := server.Client()
	client := WithRateLimit(base, 20, 1)
	require.NotSame(t, base, client)
	_, isLimited := base.Transport.(*RateLimitedTransport)
	assert.False(t, isLimited)

	start := time.Now()
	for i := 0; i < 3; i++ {
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
	}
	// One token is available immediately, the next two arrive 50ms apart.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
