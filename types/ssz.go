package types

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Hand-rolled merkleization and serialization support for the containers in
// containers.go. sszgen (see the go:generate directive there) would
// normally produce this file from the ssz struct tags; it is written by
// hand here in the same shape sszgen output takes: a MarshalSSZ/
// UnmarshalSSZ/HashTreeRoot trio per container, built on a small Merkleize
// helper.

func hashNodes(a, b Root) Root {
	h := sha256.New()
	h.Write(a[:])
	h.Write(b[:])
	var out Root
	copy(out[:], h.Sum(nil))
	return out
}

func nextPowerOfTwo(x int) int {
	if x <= 1 {
		return 1
	}
	n := x - 1
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}

func zeroTreeRoot(width int) Root {
	var h Root
	for width > 1 {
		h = hashNodes(h, h)
		width /= 2
	}
	return h
}

// merkleize computes the root of a balanced binary tree over chunks, padded
// with zero chunks up to nextPowerOfTwo(max(len(chunks), limit)).
func merkleize(chunks []Root, limit int) Root {
	n := len(chunks)
	if n == 0 {
		if limit > 0 {
			return zeroTreeRoot(nextPowerOfTwo(limit))
		}
		return Root{}
	}

	width := nextPowerOfTwo(n)
	if limit > 0 && limit > n {
		width = nextPowerOfTwo(limit)
	}

	level := make([]Root, width)
	copy(level, chunks)

	for len(level) > 1 {
		next := make([]Root, len(level)/2)
		for i := range next {
			next[i] = hashNodes(level[i*2], level[i*2+1])
		}
		level = next
	}
	return level[0]
}

func mixInLength(root Root, length uint64) Root {
	var lenChunk Root
	binary.LittleEndian.PutUint64(lenChunk[:8], length)
	return hashNodes(root, lenChunk)
}

func rootFromUint64(v uint64) Root {
	var r Root
	binary.LittleEndian.PutUint64(r[:8], v)
	return r
}

// packBytes splits raw bytes into zero-padded 32-byte chunks.
func packBytes(b []byte) []Root {
	n := (len(b) + 31) / 32
	if n == 0 {
		n = 1
	}
	chunks := make([]Root, n)
	for i := 0; i < n; i++ {
		start := i * 32
		end := start + 32
		if end > len(b) {
			end = len(b)
		}
		copy(chunks[i][:], b[start:end])
	}
	return chunks
}

func putUint64(dst []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(dst, tmp[:]...)
}

func putUint32(dst []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(dst, tmp[:]...)
}

// decoder is a small cursor over a byte slice used by the Unmarshal methods below.
type decoder struct {
	data []byte
	off  int
}

func (d *decoder) take(n int) ([]byte, error) {
	if d.off+n > len(d.data) {
		return nil, fmt.Errorf("ssz: buffer too short: need %d more bytes at offset %d, have %d", n, d.off, len(d.data))
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) uint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *decoder) uint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *decoder) root() (Root, error) {
	b, err := d.take(32)
	if err != nil {
		return Root{}, err
	}
	var r Root
	copy(r[:], b)
	return r, nil
}

// ---- Checkpoint ----

func (c *Checkpoint) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, 40)
	buf = append(buf, c.Root[:]...)
	buf = putUint64(buf, uint64(c.Slot))
	return buf, nil
}

func (c *Checkpoint) UnmarshalSSZ(data []byte) error {
	d := &decoder{data: data}
	root, err := d.root()
	if err != nil {
		return err
	}
	slot, err := d.uint64()
	if err != nil {
		return err
	}
	c.Root = root
	c.Slot = Slot(slot)
	return nil
}

func (c *Checkpoint) HashTreeRoot() (Root, error) {
	return merkleize([]Root{c.Root, rootFromUint64(uint64(c.Slot))}, 0), nil
}

// ---- Config ----

func (c *Config) MarshalSSZ() ([]byte, error) {
	return putUint64(nil, c.GenesisTime), nil
}

func (c *Config) UnmarshalSSZ(data []byte) error {
	d := &decoder{data: data}
	v, err := d.uint64()
	if err != nil {
		return err
	}
	c.GenesisTime = v
	return nil
}

func (c *Config) HashTreeRoot() (Root, error) {
	return rootFromUint64(c.GenesisTime), nil
}

// ---- AttestationData ----

func (a *AttestationData) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, 128)
	buf = putUint64(buf, uint64(a.Slot))
	for _, cp := range []Checkpoint{a.Head, a.Target, a.Source} {
		b, err := cp.MarshalSSZ()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

func (a *AttestationData) UnmarshalSSZ(data []byte) error {
	d := &decoder{data: data}
	slot, err := d.uint64()
	if err != nil {
		return err
	}
	a.Slot = Slot(slot)
	for _, cp := range []*Checkpoint{&a.Head, &a.Target, &a.Source} {
		b, err := d.take(40)
		if err != nil {
			return err
		}
		if err := cp.UnmarshalSSZ(b); err != nil {
			return err
		}
	}
	return nil
}

func (a *AttestationData) HashTreeRoot() (Root, error) {
	headRoot, err := a.Head.HashTreeRoot()
	if err != nil {
		return Root{}, err
	}
	targetRoot, err := a.Target.HashTreeRoot()
	if err != nil {
		return Root{}, err
	}
	sourceRoot, err := a.Source.HashTreeRoot()
	if err != nil {
		return Root{}, err
	}
	return merkleize([]Root{rootFromUint64(uint64(a.Slot)), headRoot, targetRoot, sourceRoot}, 0), nil
}

// ---- Attestation ----

func (a *Attestation) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, 136)
	buf = putUint64(buf, a.ValidatorID)
	dataBuf, err := a.Data.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	return append(buf, dataBuf...), nil
}

func (a *Attestation) UnmarshalSSZ(data []byte) error {
	d := &decoder{data: data}
	v, err := d.uint64()
	if err != nil {
		return err
	}
	rest, err := d.take(128)
	if err != nil {
		return err
	}
	if err := a.Data.UnmarshalSSZ(rest); err != nil {
		return err
	}
	a.ValidatorID = v
	return nil
}

func (a *Attestation) HashTreeRoot() (Root, error) {
	dataRoot, err := a.Data.HashTreeRoot()
	if err != nil {
		return Root{}, err
	}
	return merkleize([]Root{rootFromUint64(a.ValidatorID), dataRoot}, 0), nil
}

// ---- SignedAttestation ----

func (s *SignedAttestation) MarshalSSZ() ([]byte, error) {
	msgBuf, err := s.Message.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(msgBuf)+len(s.Signature))
	buf = append(buf, msgBuf...)
	buf = append(buf, s.Signature[:]...)
	return buf, nil
}

func (s *SignedAttestation) UnmarshalSSZ(data []byte) error {
	d := &decoder{data: data}
	msgBytes, err := d.take(136)
	if err != nil {
		return err
	}
	if err := s.Message.UnmarshalSSZ(msgBytes); err != nil {
		return err
	}
	sigBytes, err := d.take(len(s.Signature))
	if err != nil {
		return err
	}
	copy(s.Signature[:], sigBytes)
	return nil
}

func (s *SignedAttestation) HashTreeRoot() (Root, error) {
	msgRoot, err := s.Message.HashTreeRoot()
	if err != nil {
		return Root{}, err
	}
	sigRoot := merkleize(packBytes(s.Signature[:]), (len(s.Signature)+31)/32)
	return merkleize([]Root{msgRoot, sigRoot}, 0), nil
}

// ---- Validator ----

func (v *Validator) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, len(v.Pubkey)+8)
	buf = append(buf, v.Pubkey[:]...)
	buf = putUint64(buf, uint64(v.Index))
	return buf, nil
}

func (v *Validator) UnmarshalSSZ(data []byte) error {
	d := &decoder{data: data}
	pkBytes, err := d.take(len(v.Pubkey))
	if err != nil {
		return err
	}
	idx, err := d.uint64()
	if err != nil {
		return err
	}
	copy(v.Pubkey[:], pkBytes)
	v.Index = ValidatorIndex(idx)
	return nil
}

func (v *Validator) HashTreeRoot() (Root, error) {
	pkRoot := merkleize(packBytes(v.Pubkey[:]), (len(v.Pubkey)+31)/32)
	return merkleize([]Root{pkRoot, rootFromUint64(uint64(v.Index))}, 0), nil
}

// ---- BlockHeader ----

func (h *BlockHeader) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, 112)
	buf = putUint64(buf, uint64(h.Slot))
	buf = putUint64(buf, h.ProposerIndex)
	buf = append(buf, h.ParentRoot[:]...)
	buf = append(buf, h.StateRoot[:]...)
	buf = append(buf, h.BodyRoot[:]...)
	return buf, nil
}

func (h *BlockHeader) UnmarshalSSZ(data []byte) error {
	d := &decoder{data: data}
	slot, err := d.uint64()
	if err != nil {
		return err
	}
	proposer, err := d.uint64()
	if err != nil {
		return err
	}
	parent, err := d.root()
	if err != nil {
		return err
	}
	state, err := d.root()
	if err != nil {
		return err
	}
	body, err := d.root()
	if err != nil {
		return err
	}
	h.Slot = Slot(slot)
	h.ProposerIndex = proposer
	h.ParentRoot = parent
	h.StateRoot = state
	h.BodyRoot = body
	return nil
}

func (h *BlockHeader) HashTreeRoot() (Root, error) {
	chunks := []Root{
		rootFromUint64(uint64(h.Slot)),
		rootFromUint64(h.ProposerIndex),
		h.ParentRoot,
		h.StateRoot,
		h.BodyRoot,
	}
	return merkleize(chunks, 0), nil
}

// ---- BlockBody ----

// denunciationEntryByteLimit bounds the byte-chunk merkleization of a single
// encoded Denunciation: type id(1) + PublicKeySize(48) + slot(<=11: varint
// period <=10 plus thread byte) + varint index(<=5) + 2*hash(64) +
// 2*signature(192) is at most 321 bytes, which fits in 512.
const denunciationEntryByteLimit = 512

func (b *BlockBody) MarshalSSZ() ([]byte, error) {
	buf := putUint32(nil, uint32(len(b.Attestations)))
	for i := range b.Attestations {
		ab, err := b.Attestations[i].MarshalSSZ()
		if err != nil {
			return nil, err
		}
		buf = append(buf, ab...)
	}
	buf = putUint32(buf, uint32(len(b.Denunciations)))
	for _, entry := range b.Denunciations {
		buf = putUint32(buf, uint32(len(entry)))
		buf = append(buf, entry...)
	}
	return buf, nil
}

func (b *BlockBody) UnmarshalSSZ(data []byte) error {
	d := &decoder{data: data}
	count, err := d.uint32()
	if err != nil {
		return err
	}
	attestations := make([]Attestation, count)
	for i := range attestations {
		ab, err := d.take(136)
		if err != nil {
			return err
		}
		if err := attestations[i].UnmarshalSSZ(ab); err != nil {
			return err
		}
	}
	b.Attestations = attestations

	denunciationCount, err := d.uint32()
	if err != nil {
		return err
	}
	denunciations := make([][]byte, denunciationCount)
	for i := range denunciations {
		entryLen, err := d.uint32()
		if err != nil {
			return err
		}
		eb, err := d.take(int(entryLen))
		if err != nil {
			return err
		}
		denunciations[i] = append([]byte{}, eb...)
	}
	b.Denunciations = denunciations
	return nil
}

// denunciationEntryHashTreeRoot merkleizes a single encoded Denunciation as
// an SSZ List[byte, denunciationEntryByteLimit].
func denunciationEntryHashTreeRoot(entry []byte) Root {
	return mixInLength(merkleize(packBytes(entry), denunciationEntryByteLimit/32), uint64(len(entry)))
}

func (b *BlockBody) HashTreeRoot() (Root, error) {
	chunks := make([]Root, len(b.Attestations))
	for i := range b.Attestations {
		r, err := b.Attestations[i].HashTreeRoot()
		if err != nil {
			return Root{}, err
		}
		chunks[i] = r
	}
	attestationsRoot := mixInLength(merkleize(chunks, 4096), uint64(len(b.Attestations)))

	denunciationChunks := make([]Root, len(b.Denunciations))
	for i, entry := range b.Denunciations {
		denunciationChunks[i] = denunciationEntryHashTreeRoot(entry)
	}
	denunciationsRoot := mixInLength(merkleize(denunciationChunks, 256), uint64(len(b.Denunciations)))

	return merkleize([]Root{attestationsRoot, denunciationsRoot}, 0), nil
}

// ---- Block ----

func (b *Block) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, 80)
	buf = putUint64(buf, uint64(b.Slot))
	buf = putUint64(buf, b.ProposerIndex)
	buf = append(buf, b.ParentRoot[:]...)
	buf = append(buf, b.StateRoot[:]...)
	bodyBuf, err := b.Body.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	buf = putUint32(buf, uint32(len(bodyBuf)))
	buf = append(buf, bodyBuf...)
	return buf, nil
}

func (b *Block) UnmarshalSSZ(data []byte) error {
	d := &decoder{data: data}
	slot, err := d.uint64()
	if err != nil {
		return err
	}
	proposer, err := d.uint64()
	if err != nil {
		return err
	}
	parent, err := d.root()
	if err != nil {
		return err
	}
	state, err := d.root()
	if err != nil {
		return err
	}
	bodyLen, err := d.uint32()
	if err != nil {
		return err
	}
	bodyBytes, err := d.take(int(bodyLen))
	if err != nil {
		return err
	}
	if err := b.Body.UnmarshalSSZ(bodyBytes); err != nil {
		return err
	}
	b.Slot = Slot(slot)
	b.ProposerIndex = proposer
	b.ParentRoot = parent
	b.StateRoot = state
	return nil
}

func (b *Block) HashTreeRoot() (Root, error) {
	bodyRoot, err := b.Body.HashTreeRoot()
	if err != nil {
		return Root{}, err
	}
	chunks := []Root{
		rootFromUint64(uint64(b.Slot)),
		rootFromUint64(b.ProposerIndex),
		b.ParentRoot,
		b.StateRoot,
		bodyRoot,
	}
	return merkleize(chunks, 0), nil
}

// ---- BlockWithAttestation ----

func (b *BlockWithAttestation) MarshalSSZ() ([]byte, error) {
	blockBuf, err := b.Block.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	attBuf, err := b.ProposerAttestation.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	buf := putUint32(nil, uint32(len(blockBuf)))
	buf = append(buf, blockBuf...)
	buf = append(buf, attBuf...)
	return buf, nil
}

func (b *BlockWithAttestation) UnmarshalSSZ(data []byte) error {
	d := &decoder{data: data}
	blockLen, err := d.uint32()
	if err != nil {
		return err
	}
	blockBytes, err := d.take(int(blockLen))
	if err != nil {
		return err
	}
	if err := b.Block.UnmarshalSSZ(blockBytes); err != nil {
		return err
	}
	attBytes, err := d.take(136)
	if err != nil {
		return err
	}
	return b.ProposerAttestation.UnmarshalSSZ(attBytes)
}

func (b *BlockWithAttestation) HashTreeRoot() (Root, error) {
	blockRoot, err := b.Block.HashTreeRoot()
	if err != nil {
		return Root{}, err
	}
	attRoot, err := b.ProposerAttestation.HashTreeRoot()
	if err != nil {
		return Root{}, err
	}
	return merkleize([]Root{blockRoot, attRoot}, 0), nil
}

// ---- SignedBlockWithAttestation ----

func (s *SignedBlockWithAttestation) MarshalSSZ() ([]byte, error) {
	msgBuf, err := s.Message.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	buf := putUint32(nil, uint32(len(msgBuf)))
	buf = append(buf, msgBuf...)
	buf = putUint32(buf, uint32(len(s.Signature)))
	for _, sig := range s.Signature {
		buf = append(buf, sig[:]...)
	}
	return buf, nil
}

func (s *SignedBlockWithAttestation) UnmarshalSSZ(data []byte) error {
	d := &decoder{data: data}
	msgLen, err := d.uint32()
	if err != nil {
		return err
	}
	msgBytes, err := d.take(int(msgLen))
	if err != nil {
		return err
	}
	if err := s.Message.UnmarshalSSZ(msgBytes); err != nil {
		return err
	}
	sigCount, err := d.uint32()
	if err != nil {
		return err
	}
	sigs := make([]Signature, sigCount)
	for i := range sigs {
		b, err := d.take(len(sigs[i]))
		if err != nil {
			return err
		}
		copy(sigs[i][:], b)
	}
	s.Signature = sigs
	return nil
}

func (s *SignedBlockWithAttestation) HashTreeRoot() (Root, error) {
	msgRoot, err := s.Message.HashTreeRoot()
	if err != nil {
		return Root{}, err
	}
	chunks := make([]Root, len(s.Signature))
	for i, sig := range s.Signature {
		chunks[i] = merkleize(packBytes(sig[:]), (len(sig)+31)/32)
	}
	sigsRoot := mixInLength(merkleize(chunks, 4096), uint64(len(s.Signature)))
	return merkleize([]Root{msgRoot, sigsRoot}, 0), nil
}

// ---- State ----

func (s *State) MarshalSSZ() ([]byte, error) {
	cfgBuf, err := s.Config.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	headerBuf, err := s.LatestBlockHeader.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	justifiedBuf, err := s.LatestJustified.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	finalizedBuf, err := s.LatestFinalized.MarshalSSZ()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 256)
	buf = append(buf, cfgBuf...)
	buf = putUint64(buf, uint64(s.Slot))
	buf = append(buf, headerBuf...)
	buf = append(buf, justifiedBuf...)
	buf = append(buf, finalizedBuf...)

	buf = putUint32(buf, uint32(len(s.HistoricalBlockHashes)))
	for _, r := range s.HistoricalBlockHashes {
		buf = append(buf, r[:]...)
	}

	buf = putUint32(buf, uint32(len(s.JustifiedSlots)))
	buf = append(buf, s.JustifiedSlots...)

	buf = putUint32(buf, uint32(len(s.Validators)))
	for i := range s.Validators {
		vb, err := s.Validators[i].MarshalSSZ()
		if err != nil {
			return nil, err
		}
		buf = append(buf, vb...)
	}

	buf = putUint32(buf, uint32(len(s.JustificationRoots)))
	for _, r := range s.JustificationRoots {
		buf = append(buf, r[:]...)
	}

	buf = putUint32(buf, uint32(len(s.JustificationValidators)))
	buf = append(buf, s.JustificationValidators...)

	return buf, nil
}

func (s *State) UnmarshalSSZ(data []byte) error {
	d := &decoder{data: data}

	cfgBytes, err := d.take(8)
	if err != nil {
		return err
	}
	if err := s.Config.UnmarshalSSZ(cfgBytes); err != nil {
		return err
	}

	slot, err := d.uint64()
	if err != nil {
		return err
	}
	s.Slot = Slot(slot)

	headerBytes, err := d.take(112)
	if err != nil {
		return err
	}
	if err := s.LatestBlockHeader.UnmarshalSSZ(headerBytes); err != nil {
		return err
	}

	justifiedBytes, err := d.take(40)
	if err != nil {
		return err
	}
	if err := s.LatestJustified.UnmarshalSSZ(justifiedBytes); err != nil {
		return err
	}

	finalizedBytes, err := d.take(40)
	if err != nil {
		return err
	}
	if err := s.LatestFinalized.UnmarshalSSZ(finalizedBytes); err != nil {
		return err
	}

	histCount, err := d.uint32()
	if err != nil {
		return err
	}
	hist := make([]Root, histCount)
	for i := range hist {
		r, err := d.root()
		if err != nil {
			return err
		}
		hist[i] = r
	}
	s.HistoricalBlockHashes = hist

	justifiedSlotsLen, err := d.uint32()
	if err != nil {
		return err
	}
	justifiedSlots, err := d.take(int(justifiedSlotsLen))
	if err != nil {
		return err
	}
	s.JustifiedSlots = append([]byte{}, justifiedSlots...)

	valCount, err := d.uint32()
	if err != nil {
		return err
	}
	validators := make([]Validator, valCount)
	for i := range validators {
		vb, err := d.take(60)
		if err != nil {
			return err
		}
		if err := validators[i].UnmarshalSSZ(vb); err != nil {
			return err
		}
	}
	s.Validators = validators

	justRootsCount, err := d.uint32()
	if err != nil {
		return err
	}
	justRoots := make([]Root, justRootsCount)
	for i := range justRoots {
		r, err := d.root()
		if err != nil {
			return err
		}
		justRoots[i] = r
	}
	s.JustificationRoots = justRoots

	justValsLen, err := d.uint32()
	if err != nil {
		return err
	}
	justVals, err := d.take(int(justValsLen))
	if err != nil {
		return err
	}
	s.JustificationValidators = append([]byte{}, justVals...)

	return nil
}

func (s *State) HashTreeRoot() (Root, error) {
	cfgRoot, err := s.Config.HashTreeRoot()
	if err != nil {
		return Root{}, err
	}
	headerRoot, err := s.LatestBlockHeader.HashTreeRoot()
	if err != nil {
		return Root{}, err
	}
	justifiedRoot, err := s.LatestJustified.HashTreeRoot()
	if err != nil {
		return Root{}, err
	}
	finalizedRoot, err := s.LatestFinalized.HashTreeRoot()
	if err != nil {
		return Root{}, err
	}

	histRoot := mixInLength(merkleize(s.HistoricalBlockHashes, 262144), uint64(len(s.HistoricalBlockHashes)))
	justifiedSlotsRoot := mixInLength(merkleize(packBytes(s.JustifiedSlots), 262144/32), uint64(len(s.JustifiedSlots))*8)

	valChunks := make([]Root, len(s.Validators))
	for i := range s.Validators {
		r, err := s.Validators[i].HashTreeRoot()
		if err != nil {
			return Root{}, err
		}
		valChunks[i] = r
	}
	validatorsRoot := mixInLength(merkleize(valChunks, 4096), uint64(len(s.Validators)))

	justRootsRoot := mixInLength(merkleize(s.JustificationRoots, 262144), uint64(len(s.JustificationRoots)))
	justValsRoot := mixInLength(merkleize(packBytes(s.JustificationValidators), 1073741824/32), uint64(len(s.JustificationValidators))*8)

	chunks := []Root{
		cfgRoot,
		rootFromUint64(uint64(s.Slot)),
		headerRoot,
		justifiedRoot,
		finalizedRoot,
		histRoot,
		justifiedSlotsRoot,
		validatorsRoot,
		justRootsRoot,
		justValsRoot,
	}
	return merkleize(chunks, 0), nil
}
