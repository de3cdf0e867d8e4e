// Package identity derives per-bot identity handles from the root public
// key and a bot name. Derivation is a pure local projection: the signing
// authority produces the actual key material from the same inputs, so the
// local side is limited to name validation, address display encoding, and
// principal computation.
package identity

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"odinbots/internal/domain"
)

const maxNameLen = 64

// selfAuthenticatingTag terminates principal bytes derived from a public key.
const selfAuthenticatingTag = 0x02

// Derive validates name and projects the bot identity from the
// authority-returned public key. Deterministic: identical inputs always
// yield identical outputs.
func Derive(name domain.BotName, authorityPub []byte) (domain.BotIdentity, error) {
	if err := ValidateName(name); err != nil {
		return domain.BotIdentity{}, err
	}
	pub := append([]byte(nil), authorityPub...)
	return domain.BotIdentity{
		Name:      name,
		PublicKey: pub,
		Address:   AddressFor(pub),
	}, nil
}

// ValidateName rejects names the remote authority does not accept: empty,
// longer than 64 runes, or containing characters outside [A-Za-z0-9._ -].
func ValidateName(name domain.BotName) error {
	if name == "" {
		return fmt.Errorf("%w: empty", domain.ErrInvalidName)
	}
	runes := []rune(string(name))
	if len(runes) > maxNameLen {
		return fmt.Errorf("%w: %q exceeds %d characters", domain.ErrInvalidName, name, maxNameLen)
	}
	for _, r := range runes {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '_', r == '-', r == ' ':
		default:
			return fmt.Errorf("%w: %q contains %q", domain.ErrInvalidName, name, r)
		}
	}
	return nil
}

// AddressFor encodes a public key as a human-checkable base58-check string.
// Used to cross-check the address the authority reports.
func AddressFor(pub []byte) domain.Address {
	return domain.Address(base58.Encode(withChecksum(pub)))
}

// PrincipalFor computes the platform principal for an authority user public
// key: sha224(pub) + self-authenticating tag, base58-check encoded.
func PrincipalFor(userPub []byte) domain.Principal {
	sum := sha256.Sum224(userPub)
	raw := append(sum[:], selfAuthenticatingTag)
	return domain.Principal(base58.Encode(withChecksum(raw)))
}

// withChecksum appends the first four bytes of a double SHA-256 digest.
func withChecksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	out := make([]byte, 0, len(payload)+4)
	out = append(out, payload...)
	return append(out, second[:4]...)
}

// SafeFileName maps a bot name onto a filesystem-safe token for per-bot
// session files. The encoding is injective: characters outside
// [A-Za-z0-9._-] are percent-escaped byte by byte, so distinct names like
// "a b" and "a_b" can never collide on one file.
func SafeFileName(name domain.BotName) string {
	var b strings.Builder
	for _, r := range string(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			for _, c := range []byte(string(r)) {
				fmt.Fprintf(&b, "%%%02X", c)
			}
		}
	}
	return b.String()
}
