package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests use a low iteration count to stay fast; the derivation path is
// identical to the production setting.
func testService() *Service { return NewService(1000) }

func TestService_HashVerify(t *testing.T) {
	svc := testService()

	c, err := svc.Hash("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, svc.Verify(c, "correct horse battery staple"))
	assert.False(t, svc.Verify(c, "wrong password"))
	assert.False(t, svc.Verify(c, ""))
}

func TestService_HashSaltsAreFresh(t *testing.T) {
	svc := testService()

	c1, err := svc.Hash("same")
	require.NoError(t, err)
	c2, err := svc.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, c1.Salt, c2.Salt)
	assert.NotEqual(t, c1.Hash, c2.Hash)
}

func TestRedact_IsTerminal(t *testing.T) {
	svc := testService()

	c, err := svc.Hash("secret")
	require.NoError(t, err)

	r := c.Redact()
	assert.True(t, r.Redacted())
	assert.False(t, svc.Verify(r, "secret"))
	assert.False(t, svc.Verify(r, ""))

	// Idempotent.
	assert.Equal(t, r, r.Redact())
}

func TestRedact_NeverSerializesMaterial(t *testing.T) {
	svc := testService()

	c, err := svc.Hash("secret")
	require.NoError(t, err)

	enc := c.Redact().Encode()
	assert.Equal(t, AlgRedacted, enc)

	parsed, err := Parse(enc)
	require.NoError(t, err)
	assert.Empty(t, parsed.Hash)
	assert.Empty(t, parsed.Salt)
}

func TestParse_RoundTrip(t *testing.T) {
	svc := testService()

	c, err := svc.Hash("round trip")
	require.NoError(t, err)

	parsed, err := Parse(c.Encode())
	require.NoError(t, err)
	assert.Equal(t, c, parsed)
	assert.True(t, svc.Verify(parsed, "round trip"))
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		enc  string
	}{
		{"empty", ""},
		{"wrong field count", "pbkdf2-sha256$1000$aabb"},
		{"unknown algorithm", "md5$1000$aabb$ccdd"},
		{"bad iterations", "pbkdf2-sha256$zero$aabb$ccdd"},
		{"negative iterations", "pbkdf2-sha256$-5$aabb$ccdd"},
		{"bad salt hex", "pbkdf2-sha256$1000$zz$ccdd"},
		{"bad hash hex", "pbkdf2-sha256$1000$aabb$zz"},
		{"missing material", "pbkdf2-sha256$1000$$"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.enc)
			require.Error(t, err)
			var formatErr *FormatError
			assert.ErrorAs(t, err, &formatErr)
		})
	}
}
