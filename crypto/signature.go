package crypto

import (
	"bytes"
	"errors"
	"fmt"

	blst "github.com/supranational/blst/bindings/go"
)

// Sizes for the MinPk scheme (public keys in G1, signatures in G2), the same
// scheme Ethereum consensus clients use for validator signatures.
const (
	PublicKeySize = 48
	SignatureSize = 96
)

// domainSeparationTag scopes signatures to this protocol so a signature
// produced for one message domain can never verify against another.
var domainSeparationTag = []byte("LEANCHAIN_DENUNCIATION_BLS_SIG_V1")

// ErrInvalidPublicKey is returned when a byte string does not decode to a
// point on the curve in the expected subgroup.
var ErrInvalidPublicKey = errors.New("crypto: invalid public key encoding")

// ErrInvalidSignature is returned when a byte string does not decode to a
// valid G2 point, or when verification fails.
var ErrInvalidSignature = errors.New("crypto: signature verification failed")

// PublicKey is a compressed BLS12-381 G1 point identifying a validator.
type PublicKey [PublicKeySize]byte

// Signature is a compressed BLS12-381 G2 point.
type Signature [SignatureSize]byte

// ToBytes returns the compressed encoding.
func (pk PublicKey) ToBytes() []byte { return pk[:] }

// ToBytes returns the compressed encoding.
func (s Signature) ToBytes() []byte { return s[:] }

// Equal reports whether two signatures have the same encoding.
func (s Signature) Equal(other Signature) bool {
	return bytes.Equal(s[:], other[:])
}

// Equal reports whether two public keys have the same encoding.
func (pk PublicKey) Equal(other PublicKey) bool {
	return bytes.Equal(pk[:], other[:])
}

// PublicKeyFromBytes decodes a compressed G1 point, checking it is on-curve
// and in the correct subgroup.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, ErrInvalidPublicKey
	}
	if new(blst.P1Affine).Uncompress(b) == nil {
		return pk, ErrInvalidPublicKey
	}
	copy(pk[:], b)
	return pk, nil
}

// SignatureFromBytes decodes a compressed G2 point.
func SignatureFromBytes(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != SignatureSize {
		return sig, ErrInvalidSignature
	}
	if new(blst.P2Affine).Uncompress(b) == nil {
		return sig, ErrInvalidSignature
	}
	copy(sig[:], b)
	return sig, nil
}

// KeyPair is a BLS secret/public key pair, used by evidence producers
// (tests, validator signing) to sign digests.
type KeyPair struct {
	secret *blst.SecretKey
	public PublicKey
}

// GenerateKeyPair derives a key pair from input key material. ikm must be
// at least 32 bytes of randomness.
func GenerateKeyPair(ikm []byte) (*KeyPair, error) {
	if len(ikm) < 32 {
		return nil, fmt.Errorf("crypto: ikm must be at least 32 bytes, got %d", len(ikm))
	}
	sk := blst.KeyGen(ikm)
	if sk == nil {
		return nil, errors.New("crypto: key generation failed")
	}
	pub := new(blst.P1Affine).From(sk)
	kp := &KeyPair{secret: sk}
	copy(kp.public[:], pub.Compress())
	return kp, nil
}

// PublicKey returns the pair's public key.
func (kp *KeyPair) PublicKey() PublicKey { return kp.public }

// Sign signs digest, returning a compressed G2 signature.
func (kp *KeyPair) Sign(digest Hash) Signature {
	sig := new(blst.P2Affine).Sign(kp.secret, digest[:], domainSeparationTag)
	var out Signature
	copy(out[:], sig.Compress())
	return out
}

// Verify checks that sig is a valid BLS signature by pk over digest.
func Verify(pk PublicKey, digest Hash, sig Signature) error {
	p1 := new(blst.P1Affine).Uncompress(pk[:])
	if p1 == nil {
		return ErrInvalidPublicKey
	}
	p2 := new(blst.P2Affine).Uncompress(sig[:])
	if p2 == nil {
		return ErrInvalidSignature
	}
	if !p2.Verify(true, p1, true, digest[:], domainSeparationTag) {
		return ErrInvalidSignature
	}
	return nil
}
