package disk

import (
	"github.com/kraken-disk/diskcore/core"
)

// pieceBuffer accumulates incoming block payloads for one in-progress
// piece. It uses a dense byte buffer sized to the piece's expected length
// plus a received-range map keyed by offset, so assembly on completion is
// free and memory use is bounded by the piece size -- the representation
// spec.md §4.3 calls out as preferred.
type pieceBuffer struct {
	expectedLength int64
	buf            []byte
	received       map[int64]int64 // offset -> length, for duplicate/overlap detection
	receivedBytes  int64
	blocks         []core.BlockInfo // in arrival order, for the eventual BatchWrite
}

func newPieceBuffer(expectedLength int64) *pieceBuffer {
	return &pieceBuffer{
		expectedLength: expectedLength,
		buf:            make([]byte, expectedLength),
		received:       make(map[int64]int64),
	}
}

// insertResult describes the outcome of inserting one block.
type insertResult int

const (
	insertAccepted insertResult = iota
	insertDuplicate
)

// insert accumulates b into the buffer. b must already have passed
// Block.ValidateAgainst. Duplicate inserts (same offset already present)
// and inserts overlapping an already received range are absorbed silently
// and reported as insertDuplicate so the caller emits no alert for them,
// per spec.md §4.2 step 2 and §8 property 4.
func (p *pieceBuffer) insert(info core.BlockInfo, data []byte) insertResult {
	if _, dup := p.received[info.Offset]; dup {
		return insertDuplicate
	}
	for off, length := range p.received {
		if info.Offset < off+length && off < info.Offset+info.Length {
			return insertDuplicate
		}
	}
	copy(p.buf[info.Offset:info.Offset+info.Length], data)
	p.received[info.Offset] = info.Length
	p.receivedBytes += info.Length
	p.blocks = append(p.blocks, info)
	return insertAccepted
}

// complete reports whether every byte of the piece has been received.
func (p *pieceBuffer) complete() bool {
	return p.receivedBytes == p.expectedLength
}

// assemble returns the fully accumulated piece image. Only valid once
// complete() is true.
func (p *pieceBuffer) assemble() []byte {
	return p.buf
}
