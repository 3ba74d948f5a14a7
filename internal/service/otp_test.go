package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomCode(t *testing.T) {
	for _, length := range []int{4, 6, 8} {
		code, err := RandomCode{Length: length}.Generate()
		require.NoError(t, err)
		assert.Len(t, code, length)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "code %q has a non-digit", code)
		}
	}

	code, err := RandomCode{}.Generate()
	require.NoError(t, err)
	assert.Len(t, code, 6)
}

func TestStaticCode(t *testing.T) {
	code, err := StaticCode("123456").Generate()
	require.NoError(t, err)
	assert.Equal(t, "123456", code)
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: 4}

	hash, err := h.Hash("pw123456")
	require.NoError(t, err)
	assert.NotEqual(t, "pw123456", hash)

	again, err := h.Hash("pw123456")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salted hashes differ")

	ok, err := h.Compare(hash, "pw123456")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Compare("not-a-hash", "pw123456")
	assert.Error(t, err)
}
