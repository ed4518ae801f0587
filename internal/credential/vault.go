// Package credential hashes and verifies user passwords.
//
// Stored digests come in two formats. The legacy format is the lowercase hex
// SHA-256 of the password, unsalted, which is what every existing users.json
// holds. The bcrypt format is salted and iterated. A Vault configured for
// bcrypt still verifies legacy digests and reports them through NeedsRehash,
// so they are replaced on the user's next successful login.
package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Scheme names a digest format.
type Scheme string

const (
	SchemeSHA256 Scheme = "sha256"
	SchemeBcrypt Scheme = "bcrypt"
)

// Hash returns the legacy digest: hex SHA-256 of the UTF-8 bytes of plaintext.
func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether digest is the legacy digest of plaintext.
func Verify(plaintext, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(plaintext)), []byte(digest)) == 1
}

// Vault produces digests in its configured scheme and verifies both.
type Vault struct {
	scheme Scheme
	cost   int
}

// NewVault returns a Vault for scheme ("sha256" or "bcrypt"; empty means sha256).
func NewVault(scheme string) (*Vault, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(scheme))) {
	case "", SchemeSHA256:
		return &Vault{scheme: SchemeSHA256}, nil
	case SchemeBcrypt:
		return &Vault{scheme: SchemeBcrypt, cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("unknown password scheme %q", scheme)
	}
}

// Scheme returns the scheme new digests are produced in.
func (v *Vault) Scheme() Scheme {
	return v.scheme
}

// Hash returns a digest of plaintext in the vault's scheme.
func (v *Vault) Hash(plaintext string) (string, error) {
	if v.scheme == SchemeBcrypt {
		hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), v.cost)
		if err != nil {
			return "", err
		}
		return string(hashed), nil
	}
	return Hash(plaintext), nil
}

// Verify reports whether digest, in either format, matches plaintext.
func (v *Vault) Verify(plaintext, digest string) bool {
	if isBcrypt(digest) {
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
	}
	return Verify(plaintext, digest)
}

// NeedsRehash reports whether digest is not in the vault's scheme.
func (v *Vault) NeedsRehash(digest string) bool {
	return isBcrypt(digest) != (v.scheme == SchemeBcrypt)
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}
