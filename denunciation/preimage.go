package denunciation

import "github.com/leanchain/gean/crypto"

// endorsementSigningDigest builds the preimage a validator actually signs
// for an endorsement: pubkey ‖ slot ‖ varint(index) ‖ content_hash. Binding
// the public key and slot into the digest (not just the content hash) is
// what makes a signature over one (slot, index) unusable as "evidence" for
// any other (slot, index): a forger who only has a content hash and a
// signature produced elsewhere cannot construct a valid digest match here.
func endorsementSigningDigest(pk crypto.PublicKey, slot Slot, index uint32, contentHash crypto.Hash) crypto.Hash {
	buf := make([]byte, 0, len(pk)+16+len(contentHash))
	buf = append(buf, pk[:]...)
	buf = slotSerializer{}.serialize(slot, buf)
	buf = putUvarint(buf, uint64(index))
	buf = append(buf, contentHash[:]...)
	return crypto.ComputeHash(buf)
}

// blockHeaderSigningDigest builds the preimage a validator signs for a
// block header: pubkey ‖ slot ‖ content_hash. Same binding rationale as
// endorsementSigningDigest, minus the endorsement index.
func blockHeaderSigningDigest(pk crypto.PublicKey, slot Slot, contentHash crypto.Hash) crypto.Hash {
	buf := make([]byte, 0, len(pk)+16+len(contentHash))
	buf = append(buf, pk[:]...)
	buf = slotSerializer{}.serialize(slot, buf)
	buf = append(buf, contentHash[:]...)
	return crypto.ComputeHash(buf)
}
