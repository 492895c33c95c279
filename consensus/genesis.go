package consensus

import (
	"github.com/OffchainLabs/go-bitfield"
	"github.com/leanchain/gean/types"
)

// GenerateValidators creates n placeholder validators with sequential
// indices. Real deployments assign pubkeys out of band (a deposit contract,
// a devnet config file); this just needs indices the round-robin proposer
// schedule can key off of.
func GenerateValidators(n int) []types.Validator {
	validators := make([]types.Validator, n)
	for i := range validators {
		validators[i] = types.Validator{Index: types.ValidatorIndex(i)}
	}
	return validators
}

// GenerateGenesis creates a genesis state and block for the given validator set.
func GenerateGenesis(genesisTime uint64, validators []types.Validator) (*types.State, *types.Block) {
	emptyBody := types.BlockBody{Attestations: []types.Attestation{}}
	bodyRoot, _ := emptyBody.HashTreeRoot()

	genesisHeader := types.BlockHeader{
		Slot:          0,
		ProposerIndex: 0,
		ParentRoot:    types.Root{},
		StateRoot:     types.Root{},
		BodyRoot:      bodyRoot,
	}

	// Genesis checkpoints use zero root - the store handles this as a special case
	genesisCheckpoint := types.Checkpoint{Root: types.Root{}, Slot: 0}

	state := &types.State{
		Config: types.Config{
			GenesisTime: genesisTime,
		},
		Slot:                    0,
		LatestBlockHeader:       genesisHeader,
		LatestJustified:         genesisCheckpoint,
		LatestFinalized:         genesisCheckpoint,
		HistoricalBlockHashes:   []types.Root{},
		JustifiedSlots:          bitfield.NewBitlist(1),
		Validators:              validators,
		JustificationRoots:      []types.Root{},
		JustificationValidators: bitfield.NewBitlist(1),
	}

	stateRoot, _ := state.HashTreeRoot()

	block := &types.Block{
		Slot:          0,
		ProposerIndex: 0,
		ParentRoot:    types.Root{},
		StateRoot:     stateRoot,
		Body:          emptyBody,
	}

	return state, block
}
