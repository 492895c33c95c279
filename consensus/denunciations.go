package consensus

import (
	"fmt"

	"github.com/leanchain/gean/denunciation"
	"github.com/leanchain/gean/types"
)

// ValidateBlockDenunciations checks that every equivocation proof in a
// block body deserializes cleanly under params and passes its own validity
// check. It does not decide whether the proofs are slashed, or whether a
// proposer should have included them — only that what was included is
// well-formed.
func ValidateBlockDenunciations(body *types.BlockBody, params denunciation.Params) error {
	deserializer := denunciation.NewDeserializer(params)
	for i, entry := range body.Denunciations {
		d, n, err := deserializer.Deserialize(entry)
		if err != nil {
			return fmt.Errorf("denunciation %d: %w", i, err)
		}
		if n != len(entry) {
			return fmt.Errorf("denunciation %d: %d trailing bytes", i, len(entry)-n)
		}
		if !d.IsValid() {
			return fmt.Errorf("denunciation %d: failed validity check", i)
		}
	}
	return nil
}

// NewProcessBlockFunc returns a function assignable to
// forkchoice.ProcessBlockFunc that runs ValidateBlockDenunciations ahead of
// the ordinary state transition, rejecting a block whose included proofs
// don't hold up. The return type is spelled out rather than named so this
// package does not import forkchoice. params bounds the
// same (ThreadCount, EndorsementCount) the node's gossip layer enforces
// (networking.MessageHandlers.DenunciationParams), so a block cannot sneak
// in a denunciation that gossip would reject.
func NewProcessBlockFunc(params denunciation.Params) func(*types.State, *types.Block) (*types.State, error) {
	return func(s *types.State, block *types.Block) (*types.State, error) {
		if err := ValidateBlockDenunciations(&block.Body, params); err != nil {
			return nil, fmt.Errorf("invalid block denunciations: %w", err)
		}
		return ProcessBlock(s, block)
	}
}
