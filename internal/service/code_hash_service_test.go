package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgon2CodeHashService_HashAndVerify(t *testing.T) {
	svc := NewArgon2CodeHashService()

	code := "482913"
	hash, err := svc.Hash(code)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	// Format check
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v="), "hash should start with $argon2id$v=")

	// Verify correct code
	match, err := svc.Verify(code, hash)
	require.NoError(t, err)
	assert.True(t, match, "correct code should verify")
}

func TestArgon2CodeHashService_VerifyWrongCode(t *testing.T) {
	svc := NewArgon2CodeHashService()

	hash, err := svc.Hash("123456")
	require.NoError(t, err)

	match, err := svc.Verify("654321", hash)
	require.NoError(t, err)
	assert.False(t, match, "wrong code should not verify")
}

func TestArgon2CodeHashService_UniqueSalts(t *testing.T) {
	svc := NewArgon2CodeHashService()

	hash1, err := svc.Hash("000000")
	require.NoError(t, err)

	hash2, err := svc.Hash("000000")
	require.NoError(t, err)

	assert.NotEqual(t, hash1, hash2, "same code should produce different hashes (different salts)")
}

func TestArgon2CodeHashService_VerifyInvalidFormat(t *testing.T) {
	svc := NewArgon2CodeHashService()

	_, err := svc.Verify("123456", "not-a-valid-hash")
	assert.Error(t, err)
}

func TestArgon2CodeHashService_HashContainsParams(t *testing.T) {
	svc := NewArgon2CodeHashService()

	hash, err := svc.Hash("123456")
	require.NoError(t, err)

	// Verify it contains expected params
	assert.Contains(t, hash, "m=65536,t=1,p=4", "hash should contain Argon2id params")
}

func TestArgon2CodeHashService_LeadingZeroCode(t *testing.T) {
	svc := NewArgon2CodeHashService()

	hash, err := svc.Hash("000042")
	require.NoError(t, err)

	match, err := svc.Verify("000042", hash)
	require.NoError(t, err)
	assert.True(t, match)

	// "42" is not the same code as "000042".
	match, err = svc.Verify("42", hash)
	require.NoError(t, err)
	assert.False(t, match)
}
