package forkchoice

import (
	"bytes"
	"testing"

	"github.com/leanchain/gean/consensus"
	"github.com/leanchain/gean/crypto"
	"github.com/leanchain/gean/denunciation"
	"github.com/leanchain/gean/types"
)

// makeTestValidators creates n placeholder validators for testing.
func makeTestValidators(n uint64) []types.Validator {
	validators := make([]types.Validator, n)
	for i := uint64(0); i < n; i++ {
		validators[i] = types.Validator{Index: types.ValidatorIndex(i)}
	}
	return validators
}

// setupTestStore creates a store from genesis for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	state, block := consensus.GenerateGenesis(1000000000, makeTestValidators(8))
	store, err := NewStore(state, block, consensus.ProcessSlots, consensus.ProcessBlock)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

// buildValidBlock creates a valid block at the given slot using process,
// which may be the bare consensus.ProcessBlock or a wrapped
// forkchoice.ProcessBlockFunc such as consensus.NewProcessBlockFunc's
// result. Returns the block with a correct state root, or fails the test if
// process rejects it.
func buildValidBlock(t *testing.T, store *Store, slot types.Slot, body types.BlockBody, process ProcessBlockFunc) *types.Block {
	t.Helper()

	headState := store.States[store.Head]
	advanced, err := consensus.ProcessSlots(headState, slot)
	if err != nil {
		t.Fatalf("ProcessSlots: %v", err)
	}

	block := &types.Block{
		Slot:          slot,
		ProposerIndex: uint64(slot) % uint64(len(headState.Validators)),
		ParentRoot:    store.Head,
		Body:          body,
	}

	postState, err := process(advanced, block)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	stateRoot, err := postState.HashTreeRoot()
	if err != nil {
		t.Fatalf("HashTreeRoot: %v", err)
	}
	block.StateRoot = stateRoot

	return block
}

func TestNewStore_Initialization(t *testing.T) {
	state, block := consensus.GenerateGenesis(1000000000, makeTestValidators(8))
	store, err := NewStore(state, block, consensus.ProcessSlots, consensus.ProcessBlock)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	anchorRoot, _ := block.HashTreeRoot()
	if store.Head != anchorRoot {
		t.Error("head should be the anchor block root")
	}
	if len(store.Blocks) != 1 {
		t.Errorf("blocks count = %d, want 1", len(store.Blocks))
	}
	if len(store.States) != 1 {
		t.Errorf("states count = %d, want 1", len(store.States))
	}
	if len(store.LatestKnownVotes) != 8 {
		t.Errorf("known votes length = %d, want 8", len(store.LatestKnownVotes))
	}
	if len(store.LatestNewVotes) != 8 {
		t.Errorf("new votes length = %d, want 8", len(store.LatestNewVotes))
	}
	if store.Config.GenesisTime != 1000000000 {
		t.Errorf("genesis time = %d, want 1000000000", store.Config.GenesisTime)
	}
}

func TestNewStore_AnchorMismatch(t *testing.T) {
	state, block := consensus.GenerateGenesis(1000000000, makeTestValidators(8))
	block.StateRoot = types.Root{0xff} // corrupt the state root

	_, err := NewStore(state, block, consensus.ProcessSlots, consensus.ProcessBlock)
	if err == nil {
		t.Error("expected error for anchor block state root mismatch")
	}
}

func denunciationTestParams() denunciation.Params {
	return denunciation.Params{ThreadCount: 32, EndorsementCount: 16}
}

func mustEndorsementDenunciationBytes(t *testing.T, seed byte) []byte {
	t.Helper()
	ikm := bytes.Repeat([]byte{seed}, 32)
	kp, err := crypto.GenerateKeyPair(ikm)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	slot := denunciation.NewSlot(7, 3)
	var blockA, blockB crypto.Hash
	blockA[0], blockB[0] = 0xAA, 0xBB

	a, err := denunciation.NewSignedEndorsement(kp, denunciation.Endorsement{Slot: slot, Index: 2, EndorsedBlock: blockA})
	if err != nil {
		t.Fatalf("NewSignedEndorsement: %v", err)
	}
	b, err := denunciation.NewSignedEndorsement(kp, denunciation.Endorsement{Slot: slot, Index: 2, EndorsedBlock: blockB})
	if err != nil {
		t.Fatalf("NewSignedEndorsement: %v", err)
	}

	d, err := denunciation.NewFromEndorsements(a, b)
	if err != nil {
		t.Fatalf("NewFromEndorsements: %v", err)
	}
	encoded, err := (denunciation.Serializer{}).Serialize(d)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	return encoded
}

// TestProcessBlockFunc_AcceptsNoDenunciations checks that a block carrying
// no equivocation proofs is unaffected by wrapping ProcessBlock with
// denunciation validation.
func TestProcessBlockFunc_AcceptsNoDenunciations(t *testing.T) {
	store := setupTestStore(t)
	process := consensus.NewProcessBlockFunc(denunciationTestParams())

	block := buildValidBlock(t, store, 1, types.BlockBody{Attestations: []types.Attestation{}}, process)
	if err := store.ProcessBlock(block); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}
}

// TestProcessBlockFunc_AcceptsValidDenunciation checks that a block carrying
// a genuinely valid equivocation proof is accepted.
func TestProcessBlockFunc_AcceptsValidDenunciation(t *testing.T) {
	store := setupTestStore(t)
	process := consensus.NewProcessBlockFunc(denunciationTestParams())

	body := types.BlockBody{
		Attestations:  []types.Attestation{},
		Denunciations: [][]byte{mustEndorsementDenunciationBytes(t, 1)},
	}
	block := buildValidBlock(t, store, 1, body, process)
	if err := store.ProcessBlock(block); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}
}

// TestProcessBlockFunc_RejectsMalformedDenunciation checks that a block
// carrying an undecodable denunciation blob is rejected before the ordinary
// state transition runs.
func TestProcessBlockFunc_RejectsMalformedDenunciation(t *testing.T) {
	store := setupTestStore(t)
	process := consensus.NewProcessBlockFunc(denunciationTestParams())

	headState := store.States[store.Head]
	advanced, err := consensus.ProcessSlots(headState, 1)
	if err != nil {
		t.Fatalf("ProcessSlots: %v", err)
	}
	block := &types.Block{
		Slot:          1,
		ProposerIndex: 1,
		ParentRoot:    store.Head,
		Body: types.BlockBody{
			Attestations:  []types.Attestation{},
			Denunciations: [][]byte{{0xff, 0xff, 0xff}},
		},
	}

	if _, err := process(advanced, block); err == nil {
		t.Fatal("expected error for malformed denunciation")
	}
}

// TestProcessBlockFunc_RejectsInvalidDenunciation checks that a
// well-formed but cryptographically invalid denunciation (forged second
// signature) is rejected.
func TestProcessBlockFunc_RejectsInvalidDenunciation(t *testing.T) {
	store := setupTestStore(t)
	process := consensus.NewProcessBlockFunc(denunciationTestParams())

	valid := mustEndorsementDenunciationBytes(t, 1)
	tampered := append([]byte{}, valid...)
	tampered[len(tampered)-1] ^= 0xff // corrupt trailing signature byte

	headState := store.States[store.Head]
	advanced, err := consensus.ProcessSlots(headState, 1)
	if err != nil {
		t.Fatalf("ProcessSlots: %v", err)
	}
	block := &types.Block{
		Slot:          1,
		ProposerIndex: 1,
		ParentRoot:    store.Head,
		Body: types.BlockBody{
			Attestations:  []types.Attestation{},
			Denunciations: [][]byte{tampered},
		},
	}

	if _, err := process(advanced, block); err == nil {
		t.Fatal("expected error for tampered denunciation signature")
	}
}
