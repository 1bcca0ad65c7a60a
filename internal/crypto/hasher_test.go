package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher()

	digest, err := h.Hash("Str0ng!Pass")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(digest, "$argon2id$"))

	require.True(t, h.Verify(digest, "Str0ng!Pass"))
	require.False(t, h.Verify(digest, "Str0ng!Pass "))
	require.False(t, h.Verify(digest, "wrong"))
}

func TestHasher_SaltedDigestsDiffer(t *testing.T) {
	h := NewHasher()

	first, err := h.Hash("Str0ng!Pass")
	require.NoError(t, err)
	second, err := h.Hash("Str0ng!Pass")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.True(t, h.Verify(first, "Str0ng!Pass"))
	require.True(t, h.Verify(second, "Str0ng!Pass"))
}

func TestHasher_MalformedDigestIsFalse(t *testing.T) {
	h := NewHasher()

	require.False(t, h.Verify("", "anything"))
	require.False(t, h.Verify("not-a-digest", "anything"))
	require.False(t, h.Verify("$argon2id$v=19$garbage", "anything"))
	require.False(t, h.Verify("$bcrypt$v=19$m=65536,t=1,p=4$AAAA$BBBB", "anything"))
}
