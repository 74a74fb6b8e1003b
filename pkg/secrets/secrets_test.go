package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	dErrors "milkadmin/pkg/domain-errors"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := HashCost("Secret123", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123", hash)

	assert.NoError(t, Verify("Secret123", hash))
	assert.True(t, dErrors.HasCode(Verify("Secret124", hash), dErrors.CodeUnauthorized))
}

func TestHashRejectsBadInput(t *testing.T) {
	_, err := HashCost("", bcrypt.MinCost)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = HashCost(strings.Repeat("x", 80), bcrypt.MinCost)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestGenerate(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
