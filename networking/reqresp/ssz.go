package reqresp

import (
	"encoding/binary"
	"fmt"

	"github.com/leanchain/gean/types"
)

// Hand-rolled Marshal/Unmarshal for the req/resp handshake messages, in the
// same style as types/ssz.go.

func (s *Status) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, 80)
	finalizedBuf, err := s.Finalized.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	headBuf, err := s.Head.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	buf = append(buf, finalizedBuf...)
	buf = append(buf, headBuf...)
	return buf, nil
}

func (s *Status) UnmarshalSSZ(data []byte) error {
	if len(data) < 80 {
		return fmt.Errorf("reqresp: status buffer too short: have %d, need 80", len(data))
	}
	if err := s.Finalized.UnmarshalSSZ(data[:40]); err != nil {
		return err
	}
	return s.Head.UnmarshalSSZ(data[40:80])
}

func (r *BlocksByRootRequest) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 4, 4+len(r.Roots)*32)
	binary.LittleEndian.PutUint32(buf, uint32(len(r.Roots)))
	for _, root := range r.Roots {
		buf = append(buf, root[:]...)
	}
	return buf, nil
}

func (r *BlocksByRootRequest) UnmarshalSSZ(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("reqresp: blocks_by_root buffer too short")
	}
	count := binary.LittleEndian.Uint32(data[:4])
	off := 4
	roots := make([]types.Root, count)
	for i := range roots {
		if off+32 > len(data) {
			return fmt.Errorf("reqresp: blocks_by_root truncated root list")
		}
		copy(roots[i][:], data[off:off+32])
		off += 32
	}
	r.Roots = roots
	return nil
}
