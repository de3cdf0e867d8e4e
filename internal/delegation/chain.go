// Package delegation models and verifies delegation chains: ordered signed
// statements transferring acting-authority from the challenge authority's
// user key down to a short-lived session key.
package delegation

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"odinbots/internal/domain"
)

const linkDomainSep = "odinbots/delegation/v1"

// LinkMessage is the byte string a link signature covers: a domain-separated
// SHA-256 over the delegated pubkey and its expiration.
func LinkMessage(link domain.DelegationLink) []byte {
	h := sha256.New()
	h.Write([]byte(linkDomainSep))
	h.Write(link.Pubkey)
	var be [8]byte
	binary.BigEndian.PutUint64(be[:], uint64(link.Expiration))
	h.Write(be[:])
	return h.Sum(nil)
}

// SignLink issues one signed link with issuer's key. Used by the fee-free
// local test authorities; the production chain is issued remotely.
func SignLink(issuer ed25519.PrivateKey, link domain.DelegationLink) domain.SignedDelegation {
	return domain.SignedDelegation{
		Delegation: link,
		Signature:  ed25519.Sign(issuer, LinkMessage(link)),
	}
}

// Verify checks a chain top to bottom: the first link against the chain's
// root public key, each later link against the pubkey of the link before
// it, and every expiration strictly in the future. A chain that fails any
// link must never be cached or presented as valid, even when every
// signature checks out but an expiry has passed.
func Verify(chain domain.DelegationChain, now time.Time) error {
	if len(chain.PublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: root public key is %d bytes", domain.ErrDelegationVerification, len(chain.PublicKey))
	}
	if len(chain.Delegations) == 0 {
		return fmt.Errorf("%w: empty chain", domain.ErrDelegationVerification)
	}
	signer := chain.PublicKey
	for i, sd := range chain.Delegations {
		link := sd.Delegation
		if len(link.Pubkey) != ed25519.PublicKeySize {
			return fmt.Errorf("%w: link %d pubkey is %d bytes", domain.ErrDelegationVerification, i, len(link.Pubkey))
		}
		if !ed25519.Verify(signer, LinkMessage(link), sd.Signature) {
			return fmt.Errorf("%w: link %d signature invalid", domain.ErrDelegationVerification, i)
		}
		if link.Expiration <= now.UnixNano() {
			return fmt.Errorf("%w: link %d expired at %s", domain.ErrDelegationVerification, i,
				time.Unix(0, link.Expiration).UTC().Format(time.RFC3339))
		}
		signer = link.Pubkey
	}
	return nil
}
