package denunciation

import (
	"bytes"
	"errors"
	"testing"

	"github.com/leanchain/gean/crypto"
)

func testParams() Params {
	return Params{ThreadCount: 32, EndorsementCount: 16}
}

func mustKeyPair(t *testing.T, seed byte) *crypto.KeyPair {
	t.Helper()
	ikm := bytes.Repeat([]byte{seed}, 32)
	kp, err := crypto.GenerateKeyPair(ikm)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return kp
}

func mustEndorsement(t *testing.T, kp *crypto.KeyPair, slot Slot, index uint32, endorsed byte) *SignedEndorsement {
	t.Helper()
	var block crypto.Hash
	block[0] = endorsed
	e, err := NewSignedEndorsement(kp, Endorsement{Slot: slot, Index: index, EndorsedBlock: block})
	if err != nil {
		t.Fatalf("NewSignedEndorsement: %v", err)
	}
	return e
}

func mustBlockHeader(t *testing.T, kp *crypto.KeyPair, slot Slot, parentByte byte) *SignedBlockHeader {
	t.Helper()
	var root crypto.Hash
	root[0] = parentByte
	h, err := NewSignedBlockHeader(kp, BlockHeader{Slot: slot, Parents: nil, OperationMerkleRoot: root})
	if err != nil {
		t.Fatalf("NewSignedBlockHeader: %v", err)
	}
	return h
}

func TestEndorsementDenunciation(t *testing.T) {
	kp := mustKeyPair(t, 1)
	slot := NewSlot(7, 3)
	a := mustEndorsement(t, kp, slot, 2, 0xAA)
	b := mustEndorsement(t, kp, slot, 2, 0xBB)

	d, err := NewFromEndorsements(a, b)
	if err != nil {
		t.Fatalf("NewFromEndorsements: %v", err)
	}
	if !d.IsForEndorsement() || d.IsForBlockHeader() {
		t.Fatalf("expected endorsement denunciation, got type %v", d.Type)
	}
	if !d.IsValid() {
		t.Fatalf("expected valid denunciation")
	}
	if !d.PublicKey().Equal(kp.PublicKey()) {
		t.Fatalf("public key mismatch")
	}
}

func TestEndorsementDenunciationInvalidIndexMismatch(t *testing.T) {
	kp := mustKeyPair(t, 1)
	slot := NewSlot(7, 3)
	a := mustEndorsement(t, kp, slot, 2, 0xAA)
	b := mustEndorsement(t, kp, slot, 3, 0xBB)

	if _, err := NewFromEndorsements(a, b); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestEndorsementDenunciationInvalidSelfPair(t *testing.T) {
	kp := mustKeyPair(t, 1)
	slot := NewSlot(7, 3)
	a := mustEndorsement(t, kp, slot, 2, 0xAA)

	if _, err := NewFromEndorsements(a, a); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected InvalidInput for self-pair, got %v", err)
	}
}

func TestEndorsementDenunciationInvalidSlotMismatch(t *testing.T) {
	kp := mustKeyPair(t, 1)
	a := mustEndorsement(t, kp, NewSlot(7, 3), 2, 0xAA)
	b := mustEndorsement(t, kp, NewSlot(8, 3), 2, 0xBB)

	if _, err := NewFromEndorsements(a, b); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected InvalidInput for slot mismatch, got %v", err)
	}
}

func TestEndorsementDenunciationInvalidKeyMismatch(t *testing.T) {
	kp1 := mustKeyPair(t, 1)
	kp2 := mustKeyPair(t, 2)
	slot := NewSlot(7, 3)
	a := mustEndorsement(t, kp1, slot, 2, 0xAA)
	b := mustEndorsement(t, kp2, slot, 2, 0xBB)

	if _, err := NewFromEndorsements(a, b); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected InvalidInput for key mismatch, got %v", err)
	}
}

func TestEndorsementDenunciationIsAlsoFor(t *testing.T) {
	kp := mustKeyPair(t, 1)
	slot := NewSlot(7, 3)
	a := mustEndorsement(t, kp, slot, 2, 0xAA)
	b := mustEndorsement(t, kp, slot, 2, 0xBB)
	c := mustEndorsement(t, kp, slot, 2, 0xCC)

	d, err := NewFromEndorsements(a, b)
	if err != nil {
		t.Fatalf("NewFromEndorsements: %v", err)
	}

	if !d.IsAlsoForEndorsement(c) {
		t.Fatalf("expected d to also cover a third endorsement for the same (pubkey, slot, index)")
	}

	otherSlot := NewSlot(7, 4)
	other := mustEndorsement(t, kp, otherSlot, 2, 0xDD)
	if d.IsAlsoForEndorsement(other) {
		t.Fatalf("did not expect d to cover a different slot")
	}

	if d.IsAlsoForEndorsement(a) {
		t.Fatalf("did not expect d to cover its own already-captured evidence")
	}
}

func TestBlockHeaderDenunciation(t *testing.T) {
	kp := mustKeyPair(t, 1)
	slot := NewSlot(7, 3)
	a := mustBlockHeader(t, kp, slot, 0xAA)
	b := mustBlockHeader(t, kp, slot, 0xBB)

	d, err := NewFromBlockHeaders(a, b)
	if err != nil {
		t.Fatalf("NewFromBlockHeaders: %v", err)
	}
	if !d.IsForBlockHeader() || d.IsForEndorsement() {
		t.Fatalf("expected block header denunciation, got type %v", d.Type)
	}
	if !d.IsValid() {
		t.Fatalf("expected valid denunciation")
	}
}

func TestBlockHeaderDenunciationIsAlsoFor(t *testing.T) {
	kp := mustKeyPair(t, 1)
	slot := NewSlot(2, 1)
	a := mustBlockHeader(t, kp, slot, 0xAA)
	b := mustBlockHeader(t, kp, slot, 0xBB)
	c := mustBlockHeader(t, kp, slot, 0xCC)

	d, err := NewFromBlockHeaders(a, b)
	if err != nil {
		t.Fatalf("NewFromBlockHeaders: %v", err)
	}

	if !d.IsAlsoForBlockHeader(c) {
		t.Fatalf("expected d to also cover a third header for the same (pubkey, slot)")
	}
	if d.IsAlsoForBlockHeader(a) {
		t.Fatalf("did not expect d to cover its own already-captured evidence")
	}

	otherSlot := NewSlot(2, 2)
	other := mustBlockHeader(t, kp, otherSlot, 0xDD)
	if d.IsAlsoForBlockHeader(other) {
		t.Fatalf("did not expect d to cover a different slot")
	}
}

func TestForgeInvalidDenunciationIdenticalContent(t *testing.T) {
	kp := mustKeyPair(t, 1)
	slot := NewSlot(7, 3)
	a := mustEndorsement(t, kp, slot, 2, 0xAA)

	// Forge a denunciation by hand with hash_1 == hash_2: even with two
	// genuinely valid signatures, this must never validate.
	contentHash := a.Content.ContentHash()
	digest := endorsementSigningDigest(kp.PublicKey(), slot, 2, contentHash)
	sig := kp.Sign(digest)

	forged := &Denunciation{
		Type: TypeEndorsement,
		endorsement: &EndorsementDenunciation{
			PublicKey:  kp.PublicKey(),
			Slot:       slot,
			Index:      2,
			Hash1:      contentHash,
			Hash2:      contentHash,
			Signature1: sig,
			Signature2: sig,
		},
	}
	if forged.IsValid() {
		t.Fatalf("expected identical-content forgery to be invalid")
	}
}

func TestForgeInvalidDenunciationCrossSlotSignatureReuse(t *testing.T) {
	kp := mustKeyPair(t, 1)
	slotA := NewSlot(7, 3)
	slotB := NewSlot(8, 3)

	a := mustEndorsement(t, kp, slotA, 2, 0xAA)
	// b is signed for a *different* slot; a forger tries to splice b's
	// signature into a denunciation claiming both evidence share slotA.
	bSigned, err := NewSignedEndorsement(kp, Endorsement{Slot: slotB, Index: 2, EndorsedBlock: a.Content.EndorsedBlock})
	if err != nil {
		t.Fatalf("NewSignedEndorsement: %v", err)
	}

	forged := &Denunciation{
		Type: TypeEndorsement,
		endorsement: &EndorsementDenunciation{
			PublicKey:  kp.PublicKey(),
			Slot:       slotA,
			Index:      2,
			Hash1:      a.Content.ContentHash(),
			Hash2:      bSigned.Content.ContentHash(),
			Signature1: a.Signature,
			Signature2: bSigned.Signature,
		},
	}
	if forged.IsValid() {
		t.Fatalf("expected cross-slot signature reuse to be invalid")
	}
}

func TestEndorsementDenunciationSerDer(t *testing.T) {
	kp := mustKeyPair(t, 1)
	slot := NewSlot(7, 3)
	a := mustEndorsement(t, kp, slot, 2, 0xAA)
	b := mustEndorsement(t, kp, slot, 2, 0xBB)

	d, err := NewFromEndorsements(a, b)
	if err != nil {
		t.Fatalf("NewFromEndorsements: %v", err)
	}

	serialized, err := (EndorsementDenunciationSerializer{}).Serialize(d.endorsement)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	got, n, err := NewEndorsementDenunciationDeserializer(testParams()).Deserialize(serialized)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if n != len(serialized) {
		t.Fatalf("expected to consume all %d bytes, consumed %d", len(serialized), n)
	}
	if !got.PublicKey.Equal(d.endorsement.PublicKey) || got.Slot != d.endorsement.Slot ||
		got.Index != d.endorsement.Index || got.Hash1 != d.endorsement.Hash1 || got.Hash2 != d.endorsement.Hash2 {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, d.endorsement)
	}
}

func TestBlockHeaderDenunciationSerDer(t *testing.T) {
	kp := mustKeyPair(t, 1)
	slot := NewSlot(7, 3)
	a := mustBlockHeader(t, kp, slot, 0xAA)
	b := mustBlockHeader(t, kp, slot, 0xBB)

	d, err := NewFromBlockHeaders(a, b)
	if err != nil {
		t.Fatalf("NewFromBlockHeaders: %v", err)
	}

	serialized, err := (BlockHeaderDenunciationSerializer{}).Serialize(d.blockHeader)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	got, n, err := NewBlockHeaderDenunciationDeserializer(testParams().ThreadCount).Deserialize(serialized)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if n != len(serialized) {
		t.Fatalf("expected to consume all %d bytes, consumed %d", len(serialized), n)
	}
	if !got.PublicKey.Equal(d.blockHeader.PublicKey) || got.Slot != d.blockHeader.Slot ||
		got.Hash1 != d.blockHeader.Hash1 || got.Hash2 != d.blockHeader.Hash2 {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, d.blockHeader)
	}
}

func TestDenunciationSerDer(t *testing.T) {
	kp := mustKeyPair(t, 1)
	slot := NewSlot(7, 3)

	ea := mustEndorsement(t, kp, slot, 2, 0xAA)
	eb := mustEndorsement(t, kp, slot, 2, 0xBB)
	endorsementDen, err := NewFromEndorsements(ea, eb)
	if err != nil {
		t.Fatalf("NewFromEndorsements: %v", err)
	}

	ha := mustBlockHeader(t, kp, slot, 0xAA)
	hb := mustBlockHeader(t, kp, slot, 0xBB)
	headerDen, err := NewFromBlockHeaders(ha, hb)
	if err != nil {
		t.Fatalf("NewFromBlockHeaders: %v", err)
	}

	for _, d := range []*Denunciation{endorsementDen, headerDen} {
		serialized, err := (Serializer{}).Serialize(d)
		if err != nil {
			t.Fatalf("Serialize: %v", err)
		}
		got, n, err := NewDeserializer(testParams()).Deserialize(serialized)
		if err != nil {
			t.Fatalf("Deserialize: %v", err)
		}
		if n != len(serialized) {
			t.Fatalf("expected to consume all %d bytes, consumed %d", len(serialized), n)
		}
		if got.Type != d.Type || got.PublicKey() != d.PublicKey() || got.Slot() != d.Slot() {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, d)
		}
	}
}

func TestDeserializerRejectsUnknownType(t *testing.T) {
	buf := putUvarint(nil, 7)
	if _, _, err := NewDeserializer(testParams()).Deserialize(buf); err == nil {
		t.Fatalf("expected error for unknown type id")
	}
}

func TestDeserializerRejectsOutOfBoundThread(t *testing.T) {
	kp := mustKeyPair(t, 1)
	slot := Slot{Period: 7, Thread: 0}
	a := mustEndorsement(t, kp, slot, 2, 0xAA)
	b := mustEndorsement(t, kp, slot, 2, 0xBB)
	d, err := NewFromEndorsements(a, b)
	if err != nil {
		t.Fatalf("NewFromEndorsements: %v", err)
	}
	// patch in an out-of-bound thread after construction
	d.endorsement.Slot.Thread = 200

	serialized, err := (EndorsementDenunciationSerializer{}).Serialize(d.endorsement)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if _, _, err := NewEndorsementDenunciationDeserializer(Params{ThreadCount: 32, EndorsementCount: 16}).Deserialize(serialized); err == nil {
		t.Fatalf("expected out-of-bound thread to be rejected")
	}
}

func TestDeserializerRejectsOutOfBoundIndex(t *testing.T) {
	kp := mustKeyPair(t, 1)
	slot := NewSlot(7, 3)
	a := mustEndorsement(t, kp, slot, 15, 0xAA)
	b := mustEndorsement(t, kp, slot, 15, 0xBB)
	d, err := NewFromEndorsements(a, b)
	if err != nil {
		t.Fatalf("NewFromEndorsements: %v", err)
	}

	serialized, err := (EndorsementDenunciationSerializer{}).Serialize(d.endorsement)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	// EndorsementCount of 10 makes index 15 out of bound [0,10).
	if _, _, err := NewEndorsementDenunciationDeserializer(Params{ThreadCount: 32, EndorsementCount: 10}).Deserialize(serialized); err == nil {
		t.Fatalf("expected out-of-bound index to be rejected")
	}
}

func TestPoolComputeIDStableAcrossEquivalentProofs(t *testing.T) {
	kp := mustKeyPair(t, 1)
	slot := NewSlot(7, 3)

	a := mustEndorsement(t, kp, slot, 2, 0xAA)
	b := mustEndorsement(t, kp, slot, 2, 0xBB)
	c := mustEndorsement(t, kp, slot, 2, 0xCC)

	d1, err := NewFromEndorsements(a, b)
	if err != nil {
		t.Fatalf("NewFromEndorsements: %v", err)
	}
	d2, err := NewFromEndorsements(a, c)
	if err != nil {
		t.Fatalf("NewFromEndorsements: %v", err)
	}

	if ComputeID(d1) != ComputeID(d2) {
		t.Fatalf("expected the same (pubkey, slot, index) to yield the same pool ID regardless of which evidence pair proved it")
	}
}
