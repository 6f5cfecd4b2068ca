package trust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	iss, err := NewIssuer([]byte("shared-secret"))
	require.NoError(t, err)

	tok, err := iss.Issue("node-a", time.Minute)
	require.NoError(t, err)

	originator, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "node-a", originator)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	iss, err := NewIssuer([]byte("shared-secret"))
	require.NoError(t, err)

	tok, err := iss.Issue("node-a", -time.Minute)
	require.NoError(t, err)

	_, err = iss.Verify(tok)
	assert.ErrorIs(t, err, ErrUntrusted)
}

func TestVerifyRejectsTokenFromDifferentKey(t *testing.T) {
	issA, err := NewIssuer([]byte("secret-a"))
	require.NoError(t, err)
	issB, err := NewIssuer([]byte("secret-b"))
	require.NoError(t, err)

	tok, err := issA.Issue("node-a", time.Minute)
	require.NoError(t, err)

	_, err = issB.Verify(tok)
	assert.ErrorIs(t, err, ErrUntrusted)
}

func TestNewIssuerRejectsEmptyKey(t *testing.T) {
	_, err := NewIssuer(nil)
	assert.Error(t, err)
}
