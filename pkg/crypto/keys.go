// Package crypto wraps the cryptographic primitives spec.md §1 treats as
// an external collaborator: deterministic Ed25519 sign/verify, a
// public-key hash usable as an address, and a WIF-like checksummed
// base64 text encoding for both halves of a key pair (original_source's
// key module, given a concrete Go form; DESIGN.md records base64 as the
// deliberate substitution for the original's base58-check).
package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // address hash, not used for security
)

const (
	// PubKeyVersion/PrivKeyVersion prefix the checksummed base64 text
	// encoding, distinguishing a public key's WIF-like form from a
	// private key's.
	PubKeyVersion  = 0x35
	PrivKeyVersion = 0xb0
)

// PublicKey is a 32-byte Ed25519 public key.
type PublicKey struct {
	Bytes [ed25519.PublicKeySize]byte
}

// PrivateKey is a 64-byte Ed25519 expanded private key (seed || pubkey).
type PrivateKey struct {
	Bytes [ed25519.PrivateKeySize]byte
}

// KeyPair bundles a public/private key generated together.
type KeyPair struct {
	Public  PublicKey
	Private PrivateKey
}

// Gen creates a new random key pair.
func Gen() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	var kp KeyPair
	copy(kp.Public.Bytes[:], pub)
	copy(kp.Private.Bytes[:], priv)
	return kp, nil
}

// FromSeed deterministically derives a key pair from a 32-byte seed,
// useful for generating the genesis wallet keys reproducibly in tests.
func FromSeed(seed [ed25519.SeedSize]byte) KeyPair {
	priv := ed25519.NewKeyFromSeed(seed[:])
	pub := priv.Public().(ed25519.PublicKey)
	var kp KeyPair
	copy(kp.Public.Bytes[:], pub)
	copy(kp.Private.Bytes[:], priv)
	return kp
}

// Sign produces a deterministic signature over an arbitrary byte slice.
func (k PrivateKey) Sign(msg []byte) [ed25519.SignatureSize]byte {
	sig := ed25519.Sign(ed25519.PrivateKey(k.Bytes[:]), msg)
	var out [ed25519.SignatureSize]byte
	copy(out[:], sig)
	return out
}

// Verify reports whether sig is a valid signature over msg by this
// public key.
func (k PublicKey) Verify(msg []byte, sig [ed25519.SignatureSize]byte) bool {
	return ed25519.Verify(ed25519.PublicKey(k.Bytes[:]), msg, sig[:])
}

// Hash returns the one-way script-hash/address form of the public key:
// RIPEMD160(SHA256(pubkey)). It is address-compatible in the sense of
// spec.md §3 ("public keys are address-compatible via a one-way hash").
func (k PublicKey) Hash() [20]byte { return HashBytes(k.Bytes[:]) }

// HashBytes is the address-derivation primitive shared by public keys and
// spending scripts alike: RIPEMD160(SHA256(b)).
func HashBytes(b []byte) [20]byte {
	sh := sha256.Sum256(b)
	h := ripemd160.New()
	h.Write(sh[:])
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Equal reports whether two public keys are byte-identical.
func (k PublicKey) Equal(o PublicKey) bool {
	return bytes.Equal(k.Bytes[:], o.Bytes[:])
}

func checksum(version byte, payload []byte) [4]byte {
	buf := append([]byte{version}, payload...)
	h1 := sha256.Sum256(buf)
	h2 := sha256.Sum256(h1[:])
	var out [4]byte
	copy(out[:], h2[:4])
	return out
}

// WIF returns a WIF-like text encoding: version byte || payload ||
// 4-byte checksum, base64-encoded (a stand-in for base58, kept dependency
// free since the corpus did not retrieve a base58 library).
func (k PublicKey) WIF() string {
	return encodeWIF(PubKeyVersion, k.Bytes[:])
}

// WIF returns the private key's WIF-like text encoding.
func (k PrivateKey) WIF() string {
	return encodeWIF(PrivKeyVersion, k.Bytes[:])
}

func encodeWIF(version byte, payload []byte) string {
	cs := checksum(version, payload)
	buf := make([]byte, 0, 1+len(payload)+4)
	buf = append(buf, version)
	buf = append(buf, payload...)
	buf = append(buf, cs[:]...)
	return base64.StdEncoding.EncodeToString(buf)
}

// ParsePublicKeyWIF decodes a public key from its WIF-like text form.
func ParsePublicKeyWIF(s string) (PublicKey, error) {
	payload, err := decodeWIF(PubKeyVersion, s, ed25519.PublicKeySize)
	if err != nil {
		return PublicKey{}, err
	}
	var pk PublicKey
	copy(pk.Bytes[:], payload)
	return pk, nil
}

// ParsePrivateKeyWIF decodes a private key from its WIF-like text form.
func ParsePrivateKeyWIF(s string) (PrivateKey, error) {
	payload, err := decodeWIF(PrivKeyVersion, s, ed25519.PrivateKeySize)
	if err != nil {
		return PrivateKey{}, err
	}
	var pk PrivateKey
	copy(pk.Bytes[:], payload)
	return pk, nil
}

func decodeWIF(version byte, s string, payloadLen int) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid WIF encoding: %w", err)
	}
	if len(raw) != 1+payloadLen+4 {
		return nil, fmt.Errorf("crypto: invalid WIF length")
	}
	if raw[0] != version {
		return nil, fmt.Errorf("crypto: unexpected WIF version byte %x", raw[0])
	}
	payload := raw[1 : 1+payloadLen]
	want := checksum(version, payload)
	if !bytes.Equal(want[:], raw[1+payloadLen:]) {
		return nil, fmt.Errorf("crypto: WIF checksum mismatch")
	}
	return payload, nil
}
