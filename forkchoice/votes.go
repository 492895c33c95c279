package forkchoice

import (
	"fmt"

	"github.com/leanchain/gean/types"
)

// ValidateAttestation validates an attestation according to Devnet 0 spec.
func (s *Store) ValidateAttestation(signed *types.SignedAttestation) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validateAttestationLocked(signed)
}

func (s *Store) validateAttestationLocked(signed *types.SignedAttestation) error {
	att := signed.Message
	vote := att.Data

	if att.ValidatorID >= uint64(len(s.LatestKnownVotes)) {
		return fmt.Errorf("%w: validator %d", ErrValidatorOutOfRange, att.ValidatorID)
	}

	// Validate head exists in store
	if _, exists := s.Blocks[vote.Head.Root]; !exists {
		return fmt.Errorf("%w: head root %x", ErrHeadNotFound, vote.Head.Root[:8])
	}

	// Validate target exists in store
	targetBlock, exists := s.Blocks[vote.Target.Root]
	if !exists {
		return fmt.Errorf("%w: target root %x", ErrTargetNotFound, vote.Target.Root[:8])
	}

	// Validate source exists (zero root is valid for genesis checkpoint)
	var sourceSlot types.Slot
	if vote.Source.Root.IsZero() {
		// Genesis checkpoint - source slot must be 0
		if vote.Source.Slot != 0 {
			return fmt.Errorf("%w: genesis source must have slot 0, got %d",
				ErrSlotMismatch, vote.Source.Slot)
		}
		sourceSlot = 0
	} else {
		sourceBlock, exists := s.Blocks[vote.Source.Root]
		if !exists {
			return fmt.Errorf("%w: source root %x", ErrSourceNotFound, vote.Source.Root[:8])
		}
		sourceSlot = sourceBlock.Slot

		// Validate checkpoint slot matches block slot
		if sourceSlot != vote.Source.Slot {
			return fmt.Errorf("%w: source block slot %d != checkpoint slot %d",
				ErrSlotMismatch, sourceSlot, vote.Source.Slot)
		}
	}

	// Validate slot relationships
	if sourceSlot > targetBlock.Slot {
		return fmt.Errorf("%w: source slot %d > target block slot %d",
			ErrSlotMismatch, sourceSlot, targetBlock.Slot)
	}
	if vote.Source.Slot > vote.Target.Slot {
		return fmt.Errorf("%w: source slot %d > target slot %d",
			ErrSlotMismatch, vote.Source.Slot, vote.Target.Slot)
	}
	if targetBlock.Slot != vote.Target.Slot {
		return fmt.Errorf("%w: target block slot %d != checkpoint slot %d",
			ErrSlotMismatch, targetBlock.Slot, vote.Target.Slot)
	}

	// Validate attestation is not too far in future
	currentSlot := types.Slot(s.Time / types.IntervalsPerSlot)
	if vote.Slot > currentSlot+1 {
		return fmt.Errorf("%w: vote slot %d too far ahead (current: %d)",
			ErrFutureVote, vote.Slot, currentSlot)
	}

	return nil
}

// ProcessAttestation handles a new attestation from network gossip.
func (s *Store) ProcessAttestation(signed *types.SignedAttestation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateAttestationLocked(signed); err != nil {
		return err
	}
	s.processAttestationLocked(signed, false)
	return nil
}

// processAttestationLocked records a validated attestation. Invalid validator
// indices are ignored rather than panicking: callers that bypass
// validateAttestationLocked (e.g. block attestations that slipped past an
// upstream check) must not be able to crash the store.
func (s *Store) processAttestationLocked(signed *types.SignedAttestation, isFromBlock bool) {
	att := signed.Message
	idx := att.ValidatorID

	if idx >= uint64(len(s.LatestKnownVotes)) {
		return
	}

	if isFromBlock {
		known := s.LatestKnownVotes[idx]
		if known.Root.IsZero() || known.Slot < att.Data.Slot {
			s.LatestKnownVotes[idx] = att.Data.Target
		}
		newVote := s.LatestNewVotes[idx]
		if !newVote.Root.IsZero() && newVote.Slot <= att.Data.Target.Slot {
			s.LatestNewVotes[idx] = types.Checkpoint{}
		}
	} else {
		newVote := s.LatestNewVotes[idx]
		if newVote.Root.IsZero() || newVote.Slot < att.Data.Target.Slot {
			s.LatestNewVotes[idx] = att.Data.Target
		}
	}
}

func (s *Store) acceptNewVotesLocked() {
	for i, vote := range s.LatestNewVotes {
		if !vote.Root.IsZero() {
			s.LatestKnownVotes[i] = vote
			s.LatestNewVotes[i] = types.Checkpoint{}
		}
	}
	s.updateHeadLocked()
}

func (s *Store) getVoteTargetLocked() types.Checkpoint {
	targetRoot := s.Head

	// Walk back up to 3 steps while the target is newer than the safe target
	for i := 0; i < 3; i++ {
		if s.Blocks[targetRoot].Slot > s.Blocks[s.SafeTarget].Slot {
			targetRoot = s.Blocks[targetRoot].ParentRoot
		}
	}

	// Ensure target is in justifiable slot range
	for !s.Blocks[targetRoot].Slot.IsJustifiableAfter(s.LatestFinalized.Slot) {
		targetRoot = s.Blocks[targetRoot].ParentRoot
	}

	block := s.Blocks[targetRoot]
	blockRoot, _ := block.HashTreeRoot()
	return types.Checkpoint{Root: blockRoot, Slot: block.Slot}
}
