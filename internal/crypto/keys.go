package crypto

import (
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// scrypt work factors for content-key derivation. Fixed: changing them
// would silently invalidate every key derived before the change.
const (
	scryptN       = 2048
	scryptR       = 8
	scryptP       = 1
	contentKeyLen = 32
)

// DeriveContentKey derives the symmetric content-encryption key for an
// account from its stored credential digest and per-account salt. The
// key is never persisted; it is recomputed on every read or write of
// encrypted content, so the derivation must stay deterministic.
//
// Because the secret input is the stored password digest, changing the
// account's password permanently invalidates every previously derived
// key. No re-encryption pass exists for the orphaned content.
func DeriveContentKey(accountSecret, accountSalt string) ([]byte, error) {
	key, err := scrypt.Key([]byte(accountSecret), []byte(accountSalt), scryptN, scryptR, scryptP, contentKeyLen)
	if err != nil {
		return nil, fmt.Errorf("derive content key: %w", err)
	}
	return key, nil
}
