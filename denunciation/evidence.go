package denunciation

import (
	"fmt"

	"github.com/leanchain/gean/crypto"
)

// Endorsement is the minimal fragment of a validator's endorsement needed to
// compute its content hash. The full endorsement object (including the
// endorsed block's other fields) lives in the consensus layer; only the
// bytes that feed the signing preimage are reproduced here.
type Endorsement struct {
	Slot          Slot
	Index         uint32
	EndorsedBlock crypto.Hash
}

// serialize produces the canonical byte layout hashed to form the content
// hash: slot ‖ varint(index) ‖ endorsed_block.
func (e Endorsement) serialize() []byte {
	buf := make([]byte, 0, 16+len(e.EndorsedBlock))
	buf = slotSerializer{}.serialize(e.Slot, buf)
	buf = putUvarint(buf, uint64(e.Index))
	buf = append(buf, e.EndorsedBlock[:]...)
	return buf
}

// ContentHash hashes the canonical serialization of e.
func (e Endorsement) ContentHash() crypto.Hash {
	return crypto.ComputeHash(e.serialize())
}

// BlockHeader is the minimal fragment of a block header needed to compute
// its content hash.
type BlockHeader struct {
	Slot                Slot
	Parents             []crypto.Hash
	OperationMerkleRoot crypto.Hash
}

// serialize produces the canonical byte layout hashed to form the content
// hash: slot ‖ varint(len(parents)) ‖ parents ‖ operation_merkle_root.
func (h BlockHeader) serialize() []byte {
	buf := make([]byte, 0, 16+len(h.Parents)*32+len(h.OperationMerkleRoot))
	buf = slotSerializer{}.serialize(h.Slot, buf)
	buf = putUvarint(buf, uint64(len(h.Parents)))
	for _, p := range h.Parents {
		buf = append(buf, p[:]...)
	}
	buf = append(buf, h.OperationMerkleRoot[:]...)
	return buf
}

// ContentHash hashes the canonical serialization of h.
func (h BlockHeader) ContentHash() crypto.Hash {
	return crypto.ComputeHash(h.serialize())
}

// SignedEndorsement is a network-received endorsement together with its
// creator's identity and signature. It is evidence: callers are expected to
// have already checked Signature against Content before handing this to the
// denunciation constructors.
type SignedEndorsement struct {
	ID               crypto.Hash
	Content          Endorsement
	CreatorPublicKey crypto.PublicKey
	Signature        crypto.Signature
}

// SignedBlockHeader is the block-header analogue of SignedEndorsement.
type SignedBlockHeader struct {
	ID               crypto.Hash
	Content          BlockHeader
	CreatorPublicKey crypto.PublicKey
	Signature        crypto.Signature
}

// NewSignedEndorsement signs content with kp and computes the envelope ID
// (hash of content hash ‖ signature, so the same content signed under two
// different keys gets two IDs; signing is deterministic, so the same key
// signing the same content twice yields the same ID). It is a
// test/producer helper, not part of the wire-facing API.
func NewSignedEndorsement(kp *crypto.KeyPair, content Endorsement) (*SignedEndorsement, error) {
	contentHash := content.ContentHash()
	digest := endorsementSigningDigest(kp.PublicKey(), content.Slot, content.Index, contentHash)
	sig := kp.Sign(digest)
	return &SignedEndorsement{
		ID:               crypto.ComputeHash(append(append([]byte{}, contentHash[:]...), sig[:]...)),
		Content:          content,
		CreatorPublicKey: kp.PublicKey(),
		Signature:        sig,
	}, nil
}

// NewSignedBlockHeader signs content with kp, mirroring NewSignedEndorsement.
func NewSignedBlockHeader(kp *crypto.KeyPair, content BlockHeader) (*SignedBlockHeader, error) {
	contentHash := content.ContentHash()
	digest := blockHeaderSigningDigest(kp.PublicKey(), content.Slot, contentHash)
	sig := kp.Sign(digest)
	return &SignedBlockHeader{
		ID:               crypto.ComputeHash(append(append([]byte{}, contentHash[:]...), sig[:]...)),
		Content:          content,
		CreatorPublicKey: kp.PublicKey(),
		Signature:        sig,
	}, nil
}

// VerifySignature checks that the envelope's signature actually covers its
// own content under its own claimed public key. Callers should run this
// before treating a gossiped SignedEndorsement/SignedBlockHeader as
// evidence at all.
func (e *SignedEndorsement) VerifySignature() error {
	contentHash := e.Content.ContentHash()
	digest := endorsementSigningDigest(e.CreatorPublicKey, e.Content.Slot, e.Content.Index, contentHash)
	if err := crypto.Verify(e.CreatorPublicKey, digest, e.Signature); err != nil {
		return fmt.Errorf("endorsement signature: %w", err)
	}
	return nil
}

// VerifySignature is the block-header analogue of SignedEndorsement.VerifySignature.
func (h *SignedBlockHeader) VerifySignature() error {
	contentHash := h.Content.ContentHash()
	digest := blockHeaderSigningDigest(h.CreatorPublicKey, h.Content.Slot, contentHash)
	if err := crypto.Verify(h.CreatorPublicKey, digest, h.Signature); err != nil {
		return fmt.Errorf("block header signature: %w", err)
	}
	return nil
}
