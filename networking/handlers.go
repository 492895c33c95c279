package networking

import (
	"context"
	"fmt"

	"github.com/leanchain/gean/denunciation"
	"github.com/leanchain/gean/types"
	"github.com/libp2p/go-libp2p/core/peer"
)

// BlockHandler processes incoming blocks from gossipsub.
type BlockHandler func(ctx context.Context, block *types.SignedBlockWithAttestation, from peer.ID) error

// AttestationHandler processes incoming attestations from gossipsub.
type AttestationHandler func(ctx context.Context, att *types.SignedAttestation) error

// DenunciationHandler processes an incoming equivocation proof from gossipsub.
type DenunciationHandler func(ctx context.Context, d *denunciation.Denunciation) error

// MessageHandlers holds handlers for different message types.
type MessageHandlers struct {
	OnBlock        BlockHandler
	OnAttestation  AttestationHandler
	OnDenunciation DenunciationHandler

	DenunciationParams denunciation.Params
}

// HandleBlockMessage decodes and processes an incoming block message.
func (h *MessageHandlers) HandleBlockMessage(ctx context.Context, data []byte, from peer.ID) error {
	decoded, err := DecompressMessage(data)
	if err != nil {
		return fmt.Errorf("decompress block: %w", err)
	}

	var block types.SignedBlockWithAttestation
	if err := block.UnmarshalSSZ(decoded); err != nil {
		return fmt.Errorf("unmarshal block: %w", err)
	}

	if h.OnBlock != nil {
		return h.OnBlock(ctx, &block, from)
	}
	return nil
}

// HandleAttestationMessage decodes and processes an incoming attestation.
func (h *MessageHandlers) HandleAttestationMessage(ctx context.Context, data []byte) error {
	decoded, err := DecompressMessage(data)
	if err != nil {
		return fmt.Errorf("decompress attestation: %w", err)
	}

	var att types.SignedAttestation
	if err := att.UnmarshalSSZ(decoded); err != nil {
		return fmt.Errorf("unmarshal attestation: %w", err)
	}

	if h.OnAttestation != nil {
		return h.OnAttestation(ctx, &att)
	}
	return nil
}

// HandleDenunciationMessage decodes and processes an incoming denunciation.
func (h *MessageHandlers) HandleDenunciationMessage(ctx context.Context, data []byte) error {
	decoded, err := DecompressMessage(data)
	if err != nil {
		return fmt.Errorf("decompress denunciation: %w", err)
	}

	d, _, err := denunciation.NewDeserializer(h.DenunciationParams).Deserialize(decoded)
	if err != nil {
		return fmt.Errorf("unmarshal denunciation: %w", err)
	}

	if h.OnDenunciation != nil {
		return h.OnDenunciation(ctx, d)
	}
	return nil
}
