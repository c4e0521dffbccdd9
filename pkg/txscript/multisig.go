// Package txscript implements signature-related checks that sit above
// the opaque script engine: verifying a transaction's signature pairs
// against its canonical byte form, and the owner wallet's majority
// multisig rule used by MintTx (spec.md §4.4 step 7). Grounded on
// original_source's minter test fixture, which signs a MintTx with two
// of the genesis wallet's keys before it is accepted.
package txscript

import "github.com/klaytn/graelnode/pkg/crypto"

// SigPair is a (public key, signature) pair as carried in a Tx header.
type SigPair struct {
	PubKey crypto.PublicKey
	Sig    [64]byte
}

// VerifyAll reports whether every sig pair is a valid signature over msg,
// and that no public key repeats (spec.md §3 Tx invariant).
func VerifyAll(msg []byte, pairs []SigPair) bool {
	seen := make(map[crypto.PublicKey]struct{}, len(pairs))
	for _, p := range pairs {
		if _, dup := seen[p.PubKey]; dup {
			return false
		}
		seen[p.PubKey] = struct{}{}
		if !p.PubKey.Verify(msg, p.Sig) {
			return false
		}
	}
	return true
}

// CheckMultisig reports whether at least threshold of the signatures in
// pairs were produced by distinct keys drawn from wallet, all valid over
// msg.
func CheckMultisig(msg []byte, wallet []crypto.PublicKey, pairs []SigPair, threshold int) bool {
	walletSet := make(map[crypto.PublicKey]struct{}, len(wallet))
	for _, k := range wallet {
		walletSet[k] = struct{}{}
	}
	matched := 0
	seen := make(map[crypto.PublicKey]struct{}, len(pairs))
	for _, p := range pairs {
		if _, dup := seen[p.PubKey]; dup {
			continue
		}
		if _, inWallet := walletSet[p.PubKey]; !inWallet {
			continue
		}
		if !p.PubKey.Verify(msg, p.Sig) {
			continue
		}
		seen[p.PubKey] = struct{}{}
		matched++
	}
	return matched >= threshold
}
