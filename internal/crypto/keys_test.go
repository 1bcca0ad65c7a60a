package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveContentKey_Deterministic(t *testing.T) {
	first, err := DeriveContentKey("$argon2id$v=19$stored-digest", "account-salt")
	require.NoError(t, err)
	require.Len(t, first, 32)

	second, err := DeriveContentKey("$argon2id$v=19$stored-digest", "account-salt")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestDeriveContentKey_InputsChangeKey(t *testing.T) {
	base, err := DeriveContentKey("digest", "salt")
	require.NoError(t, err)

	otherSecret, err := DeriveContentKey("digest2", "salt")
	require.NoError(t, err)
	require.NotEqual(t, base, otherSecret)

	otherSalt, err := DeriveContentKey("digest", "salt2")
	require.NoError(t, err)
	require.NotEqual(t, base, otherSalt)
}

func TestDeriveContentKey_NewDigestOrphansOldKey(t *testing.T) {
	oldKey, err := DeriveContentKey("digest-before-password-change", "salt")
	require.NoError(t, err)

	token, err := Encrypt(oldKey, "written before the change")
	require.NoError(t, err)

	newKey, err := DeriveContentKey("digest-after-password-change", "salt")
	require.NoError(t, err)

	_, err = Decrypt(newKey, token)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}
