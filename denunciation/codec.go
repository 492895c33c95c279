package denunciation

import "github.com/leanchain/gean/crypto"

// EndorsementDenunciationSerializer writes an EndorsementDenunciation to its
// wire form: pubkey ‖ slot ‖ varint(index) ‖ hash_1 ‖ hash_2 ‖ sig_1 ‖ sig_2.
type EndorsementDenunciationSerializer struct{}

func (EndorsementDenunciationSerializer) Serialize(d *EndorsementDenunciation) ([]byte, error) {
	buf := make([]byte, 0, crypto.PublicKeySize+16+64+2*crypto.SignatureSize)
	buf = append(buf, d.PublicKey[:]...)
	buf = slotSerializer{}.serialize(d.Slot, buf)
	var err error
	buf, err = newU32VarIntSerializer(0, 1<<32-1, false).serialize(d.Index, buf)
	if err != nil {
		return nil, serializationf("index: %w", err)
	}
	buf = append(buf, d.Hash1[:]...)
	buf = append(buf, d.Hash2[:]...)
	buf = append(buf, d.Signature1[:]...)
	buf = append(buf, d.Signature2[:]...)
	return buf, nil
}

// EndorsementDenunciationDeserializer reads the wire form produced by
// EndorsementDenunciationSerializer, bounding Slot.Thread to
// [0, ThreadCount) and Index to [0, EndorsementCount).
type EndorsementDenunciationDeserializer struct {
	params Params
}

func NewEndorsementDenunciationDeserializer(params Params) EndorsementDenunciationDeserializer {
	return EndorsementDenunciationDeserializer{params: params}
}

func (d EndorsementDenunciationDeserializer) Deserialize(data []byte) (*EndorsementDenunciation, int, error) {
	pk, n, err := takeFixed(data, crypto.PublicKeySize)
	if err != nil {
		return nil, 0, serializationf("public key: %w", err)
	}
	pubKey, err := crypto.PublicKeyFromBytes(pk)
	if err != nil {
		return nil, 0, serializationf("public key: %w", err)
	}
	off := n

	slot, n, err := newSlotDeserializer(d.params.ThreadCount).deserialize(data[off:])
	if err != nil {
		return nil, 0, serializationf("slot: %w", err)
	}
	off += n

	index, n, err := newU32VarIntDeserializer(0, uint64(d.params.EndorsementCount), true).deserialize(data[off:])
	if err != nil {
		return nil, 0, serializationf("index: %w", err)
	}
	off += n

	hash1, n, err := takeHash(data, off)
	if err != nil {
		return nil, 0, serializationf("hash_1: %w", err)
	}
	off += n

	hash2, n, err := takeHash(data, off)
	if err != nil {
		return nil, 0, serializationf("hash_2: %w", err)
	}
	off += n

	sig1, n, err := takeSignature(data, off)
	if err != nil {
		return nil, 0, serializationf("signature_1: %w", err)
	}
	off += n

	sig2, n, err := takeSignature(data, off)
	if err != nil {
		return nil, 0, serializationf("signature_2: %w", err)
	}
	off += n

	return &EndorsementDenunciation{
		PublicKey:  pubKey,
		Slot:       slot,
		Index:      index,
		Hash1:      hash1,
		Hash2:      hash2,
		Signature1: sig1,
		Signature2: sig2,
	}, off, nil
}

// BlockHeaderDenunciationSerializer writes a BlockHeaderDenunciation to its
// wire form: pubkey ‖ slot ‖ hash_1 ‖ hash_2 ‖ sig_1 ‖ sig_2.
type BlockHeaderDenunciationSerializer struct{}

func (BlockHeaderDenunciationSerializer) Serialize(d *BlockHeaderDenunciation) ([]byte, error) {
	buf := make([]byte, 0, crypto.PublicKeySize+16+64+2*crypto.SignatureSize)
	buf = append(buf, d.PublicKey[:]...)
	buf = slotSerializer{}.serialize(d.Slot, buf)
	buf = append(buf, d.Hash1[:]...)
	buf = append(buf, d.Hash2[:]...)
	buf = append(buf, d.Signature1[:]...)
	buf = append(buf, d.Signature2[:]...)
	return buf, nil
}

// BlockHeaderDenunciationDeserializer reads the wire form produced by
// BlockHeaderDenunciationSerializer.
type BlockHeaderDenunciationDeserializer struct {
	threadCount uint8
}

func NewBlockHeaderDenunciationDeserializer(threadCount uint8) BlockHeaderDenunciationDeserializer {
	return BlockHeaderDenunciationDeserializer{threadCount: threadCount}
}

func (d BlockHeaderDenunciationDeserializer) Deserialize(data []byte) (*BlockHeaderDenunciation, int, error) {
	pk, n, err := takeFixed(data, crypto.PublicKeySize)
	if err != nil {
		return nil, 0, serializationf("public key: %w", err)
	}
	pubKey, err := crypto.PublicKeyFromBytes(pk)
	if err != nil {
		return nil, 0, serializationf("public key: %w", err)
	}
	off := n

	slot, n, err := newSlotDeserializer(d.threadCount).deserialize(data[off:])
	if err != nil {
		return nil, 0, serializationf("slot: %w", err)
	}
	off += n

	hash1, n, err := takeHash(data, off)
	if err != nil {
		return nil, 0, serializationf("hash_1: %w", err)
	}
	off += n

	hash2, n, err := takeHash(data, off)
	if err != nil {
		return nil, 0, serializationf("hash_2: %w", err)
	}
	off += n

	sig1, n, err := takeSignature(data, off)
	if err != nil {
		return nil, 0, serializationf("signature_1: %w", err)
	}
	off += n

	sig2, n, err := takeSignature(data, off)
	if err != nil {
		return nil, 0, serializationf("signature_2: %w", err)
	}
	off += n

	return &BlockHeaderDenunciation{
		PublicKey:  pubKey,
		Slot:       slot,
		Hash1:      hash1,
		Hash2:      hash2,
		Signature1: sig1,
		Signature2: sig2,
	}, off, nil
}

// Serializer writes a Denunciation to its tagged wire form:
// varint(type_id) ‖ variant body.
type Serializer struct{}

func (Serializer) Serialize(d *Denunciation) ([]byte, error) {
	switch d.Type {
	case TypeEndorsement:
		body, err := (EndorsementDenunciationSerializer{}).Serialize(d.endorsement)
		if err != nil {
			return nil, err
		}
		return append(putUvarint(nil, uint64(TypeEndorsement)), body...), nil
	case TypeBlockHeader:
		body, err := (BlockHeaderDenunciationSerializer{}).Serialize(d.blockHeader)
		if err != nil {
			return nil, err
		}
		return append(putUvarint(nil, uint64(TypeBlockHeader)), body...), nil
	default:
		return nil, serializationf("unknown denunciation type %d", d.Type)
	}
}

// Deserializer reads the tagged wire form produced by Serializer, bounded
// by params.
type Deserializer struct {
	params Params
}

func NewDeserializer(params Params) Deserializer {
	return Deserializer{params: params}
}

func (d Deserializer) Deserialize(data []byte) (*Denunciation, int, error) {
	typeID, n, err := decodeBoundedUvarint(data, bound{lower: 0, upper: 1, upperExclusive: false})
	if err != nil {
		return nil, 0, serializationf("type id: %w", err)
	}
	off := n

	switch TypeID(typeID) {
	case TypeEndorsement:
		ed, n, err := NewEndorsementDenunciationDeserializer(d.params).Deserialize(data[off:])
		if err != nil {
			return nil, 0, err
		}
		return &Denunciation{Type: TypeEndorsement, endorsement: ed}, off + n, nil
	case TypeBlockHeader:
		bd, n, err := NewBlockHeaderDenunciationDeserializer(d.params.ThreadCount).Deserialize(data[off:])
		if err != nil {
			return nil, 0, err
		}
		return &Denunciation{Type: TypeBlockHeader, blockHeader: bd}, off + n, nil
	default:
		return nil, 0, serializationf("unknown denunciation type id %d", typeID)
	}
}

func takeFixed(data []byte, n int) ([]byte, int, error) {
	if len(data) < n {
		return nil, 0, serializationf("buffer too short: need %d bytes, have %d", n, len(data))
	}
	return data[:n], n, nil
}

func takeHash(data []byte, off int) (crypto.Hash, int, error) {
	b, n, err := takeFixed(data[off:], 32)
	if err != nil {
		return crypto.Hash{}, 0, err
	}
	var h crypto.Hash
	copy(h[:], b)
	return h, n, nil
}

func takeSignature(data []byte, off int) (crypto.Signature, int, error) {
	b, n, err := takeFixed(data[off:], crypto.SignatureSize)
	if err != nil {
		return crypto.Signature{}, 0, err
	}
	var s crypto.Signature
	copy(s[:], b)
	return s, n, nil
}
