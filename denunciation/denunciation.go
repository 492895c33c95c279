package denunciation

import "github.com/leanchain/gean/crypto"

// TypeID discriminates a Denunciation's wire variant.
type TypeID uint32

const (
	TypeEndorsement  TypeID = 0
	TypeBlockHeader  TypeID = 1
)

// EndorsementDenunciation is proof that a single validator signed two
// distinct endorsements for the same (slot, index).
type EndorsementDenunciation struct {
	PublicKey   crypto.PublicKey
	Slot        Slot
	Index       uint32
	Hash1       crypto.Hash
	Hash2       crypto.Hash
	Signature1  crypto.Signature
	Signature2  crypto.Signature
}

// BlockHeaderDenunciation is proof that a single validator signed two
// distinct block headers for the same slot.
type BlockHeaderDenunciation struct {
	PublicKey  crypto.PublicKey
	Slot       Slot
	Hash1      crypto.Hash
	Hash2      crypto.Hash
	Signature1 crypto.Signature
	Signature2 crypto.Signature
}

// Denunciation is a tagged union over the two evidence kinds. Exactly one
// of the pointer fields is non-nil, selected by Type.
type Denunciation struct {
	Type         TypeID
	endorsement  *EndorsementDenunciation
	blockHeader  *BlockHeaderDenunciation
}

// IsForEndorsement reports whether d proves endorsement equivocation.
func (d *Denunciation) IsForEndorsement() bool { return d.Type == TypeEndorsement }

// IsForBlockHeader reports whether d proves block-header equivocation.
func (d *Denunciation) IsForBlockHeader() bool { return d.Type == TypeBlockHeader }

// Endorsement returns the endorsement evidence and true if d is an
// endorsement denunciation.
func (d *Denunciation) Endorsement() (*EndorsementDenunciation, bool) {
	return d.endorsement, d.Type == TypeEndorsement
}

// BlockHeader returns the block-header evidence and true if d is a
// block-header denunciation.
func (d *Denunciation) BlockHeader() (*BlockHeaderDenunciation, bool) {
	return d.blockHeader, d.Type == TypeBlockHeader
}

// IsAlsoForEndorsement reports whether a third, independently-received
// SignedEndorsement e is covered by d: same author/slot/index as d already
// denounces, a content hash distinct from both already captured, and a
// signature that verifies under d's own public key. A true result means no
// second denunciation is needed for e — it equivocates against the same
// pair d already proves, so callers like mempool deduplication or gossip
// scoring can skip constructing a redundant one. Like IsValid, a mismatch
// folds into false rather than an error: a bogus or unrelated third piece
// of evidence is a policy verdict, not a fault.
func (d *Denunciation) IsAlsoForEndorsement(e *SignedEndorsement) bool {
	ed, ok := d.Endorsement()
	if !ok {
		return false
	}
	if !ed.PublicKey.Equal(e.CreatorPublicKey) || ed.Slot != e.Content.Slot || ed.Index != e.Content.Index {
		return false
	}
	hash := e.Content.ContentHash()
	if hash == ed.Hash1 || hash == ed.Hash2 {
		return false
	}
	digest := endorsementSigningDigest(e.CreatorPublicKey, e.Content.Slot, e.Content.Index, hash)
	return crypto.Verify(e.CreatorPublicKey, digest, e.Signature) == nil
}

// IsAlsoForBlockHeader is the block-header analogue of IsAlsoForEndorsement.
func (d *Denunciation) IsAlsoForBlockHeader(h *SignedBlockHeader) bool {
	bd, ok := d.BlockHeader()
	if !ok {
		return false
	}
	if !bd.PublicKey.Equal(h.CreatorPublicKey) || bd.Slot != h.Content.Slot {
		return false
	}
	hash := h.Content.ContentHash()
	if hash == bd.Hash1 || hash == bd.Hash2 {
		return false
	}
	digest := blockHeaderSigningDigest(h.CreatorPublicKey, h.Content.Slot, hash)
	return crypto.Verify(h.CreatorPublicKey, digest, h.Signature) == nil
}

// NewFromEndorsements builds a Denunciation from two independently received
// signed endorsements, a and b. Both must already carry valid signatures
// over their own content (callers verify that at ingestion; this
// constructor re-derives and re-checks the signing digest anyway, since a
// forged b could otherwise slip a fabricated signature past a caller who
// skipped that step).
func NewFromEndorsements(a, b *SignedEndorsement) (*Denunciation, error) {
	if a.ID == b.ID {
		return nil, invalidInputf("evidence a and b are the same endorsement")
	}
	if a.Content.Slot != b.Content.Slot {
		return nil, invalidInputf("slot mismatch: %+v != %+v", a.Content.Slot, b.Content.Slot)
	}
	if a.Content.Index != b.Content.Index {
		return nil, invalidInputf("index mismatch: %d != %d", a.Content.Index, b.Content.Index)
	}
	if !a.CreatorPublicKey.Equal(b.CreatorPublicKey) {
		return nil, invalidInputf("public key mismatch")
	}

	hash1 := a.Content.ContentHash()
	hash2 := b.Content.ContentHash()
	if hash1 == hash2 {
		return nil, invalidInputf("evidence a and b have identical content")
	}

	digest1 := endorsementSigningDigest(a.CreatorPublicKey, a.Content.Slot, a.Content.Index, hash1)
	if err := crypto.Verify(a.CreatorPublicKey, digest1, a.Signature); err != nil {
		return nil, signatureErr(err)
	}
	digest2 := endorsementSigningDigest(b.CreatorPublicKey, b.Content.Slot, b.Content.Index, hash2)
	if err := crypto.Verify(b.CreatorPublicKey, digest2, b.Signature); err != nil {
		return nil, signatureErr(err)
	}

	return &Denunciation{
		Type: TypeEndorsement,
		endorsement: &EndorsementDenunciation{
			PublicKey:  a.CreatorPublicKey,
			Slot:       a.Content.Slot,
			Index:      a.Content.Index,
			Hash1:      hash1,
			Hash2:      hash2,
			Signature1: a.Signature,
			Signature2: b.Signature,
		},
	}, nil
}

// NewFromBlockHeaders builds a Denunciation from two independently received
// signed block headers, mirroring NewFromEndorsements.
func NewFromBlockHeaders(a, b *SignedBlockHeader) (*Denunciation, error) {
	if a.ID == b.ID {
		return nil, invalidInputf("evidence a and b are the same block header")
	}
	if a.Content.Slot != b.Content.Slot {
		return nil, invalidInputf("slot mismatch: %+v != %+v", a.Content.Slot, b.Content.Slot)
	}
	if !a.CreatorPublicKey.Equal(b.CreatorPublicKey) {
		return nil, invalidInputf("public key mismatch")
	}

	hash1 := a.Content.ContentHash()
	hash2 := b.Content.ContentHash()
	if hash1 == hash2 {
		return nil, invalidInputf("evidence a and b have identical content")
	}

	digest1 := blockHeaderSigningDigest(a.CreatorPublicKey, a.Content.Slot, hash1)
	if err := crypto.Verify(a.CreatorPublicKey, digest1, a.Signature); err != nil {
		return nil, signatureErr(err)
	}
	digest2 := blockHeaderSigningDigest(b.CreatorPublicKey, b.Content.Slot, hash2)
	if err := crypto.Verify(b.CreatorPublicKey, digest2, b.Signature); err != nil {
		return nil, signatureErr(err)
	}

	return &Denunciation{
		Type: TypeBlockHeader,
		blockHeader: &BlockHeaderDenunciation{
			PublicKey:  a.CreatorPublicKey,
			Slot:       a.Content.Slot,
			Hash1:      hash1,
			Hash2:      hash2,
			Signature1: a.Signature,
			Signature2: b.Signature,
		},
	}, nil
}

// IsValid re-derives both signing digests from a Denunciation's own stored
// fields and checks that the two pieces of evidence are genuinely distinct
// and both genuinely signed by PublicKey. This is the check a consensus
// layer runs on a Denunciation received over the wire or pulled out of a
// block body, where the constructor's own checks are not available (the
// object may have been serialized and deserialized in between).
func (d *Denunciation) IsValid() bool {
	if d.Hash1() == d.Hash2() {
		return false
	}
	switch d.Type {
	case TypeEndorsement:
		ed := d.endorsement
		if ed.Signature1.Equal(ed.Signature2) {
			return false
		}
		digest1 := endorsementSigningDigest(ed.PublicKey, ed.Slot, ed.Index, ed.Hash1)
		digest2 := endorsementSigningDigest(ed.PublicKey, ed.Slot, ed.Index, ed.Hash2)
		return crypto.Verify(ed.PublicKey, digest1, ed.Signature1) == nil &&
			crypto.Verify(ed.PublicKey, digest2, ed.Signature2) == nil
	case TypeBlockHeader:
		bd := d.blockHeader
		if bd.Signature1.Equal(bd.Signature2) {
			return false
		}
		digest1 := blockHeaderSigningDigest(bd.PublicKey, bd.Slot, bd.Hash1)
		digest2 := blockHeaderSigningDigest(bd.PublicKey, bd.Slot, bd.Hash2)
		return crypto.Verify(bd.PublicKey, digest1, bd.Signature1) == nil &&
			crypto.Verify(bd.PublicKey, digest2, bd.Signature2) == nil
	default:
		return false
	}
}

// Hash1 returns the first evidence's content hash, regardless of variant.
func (d *Denunciation) Hash1() crypto.Hash {
	if d.Type == TypeEndorsement {
		return d.endorsement.Hash1
	}
	return d.blockHeader.Hash1
}

// Hash2 returns the second evidence's content hash, regardless of variant.
func (d *Denunciation) Hash2() crypto.Hash {
	if d.Type == TypeEndorsement {
		return d.endorsement.Hash2
	}
	return d.blockHeader.Hash2
}

// PublicKey returns the denounced validator's public key, regardless of
// variant.
func (d *Denunciation) PublicKey() crypto.PublicKey {
	if d.Type == TypeEndorsement {
		return d.endorsement.PublicKey
	}
	return d.blockHeader.PublicKey
}

// Slot returns the denounced slot, regardless of variant.
func (d *Denunciation) Slot() Slot {
	if d.Type == TypeEndorsement {
		return d.endorsement.Slot
	}
	return d.blockHeader.Slot
}
