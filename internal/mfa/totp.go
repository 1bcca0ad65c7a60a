package mfa

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/pquerna/otp/totp"
)

// secretSize is the raw length of a generated shared secret: 20 bytes,
// 32 base32 characters.
const secretSize = 20

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Provisioner generates TOTP shared secrets, builds provisioning URIs for
// QR-code enrollment, and verifies submitted tokens within the standard
// time-step tolerance window.
type Provisioner struct {
	issuer string
}

func NewProvisioner(issuer string) *Provisioner {
	return &Provisioner{issuer: issuer}
}

// GenerateSecret returns a fresh random base32 shared secret. Called once
// per account, at registration.
func (p *Provisioner) GenerateSecret() (string, error) {
	raw := make([]byte, secretSize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate mfa secret: %w", err)
	}
	return b32.EncodeToString(raw), nil
}

// ProvisioningURI builds the otpauth:// URI an authenticator app scans
// during enrollment.
func (p *Provisioner) ProvisioningURI(secret, accountLabel string) (string, error) {
	raw, err := b32.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", fmt.Errorf("decode mfa secret: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: accountLabel,
		Secret:      raw,
	})
	if err != nil {
		return "", fmt.Errorf("build provisioning uri: %w", err)
	}
	return key.URL(), nil
}

// Verify reports whether token is valid for secret in the current time
// window, accepting one step of clock skew on either side. No replay
// state is tracked beyond what the algorithm itself provides.
func (p *Provisioner) Verify(secret, token string) bool {
	return totp.Validate(strings.TrimSpace(token), secret)
}
