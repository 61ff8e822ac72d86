package disk

import (
	"path/filepath"
	"testing"

	"github.com/kraken-disk/diskcore/core"

	"github.com/uber-go/tally"
)

// fourPieceStorageInfo returns the layout scenario.md §8 walks through:
// 4 pieces of 65536 bytes, last piece short by 935 bytes, 4 blocks/piece.
func fourPieceStorageInfo(t *testing.T, dir string) core.StorageInfo {
	t.Helper()
	const numPieces = 4
	const pieceLength = 65536
	downloadLength := int64(numPieces)*pieceLength - 935
	return core.NewStorageInfo(numPieces, pieceLength, downloadLength, filepath.Join(dir, "content"))
}

// piecePayload returns P_i per spec.md scenario A: P_i[b] = (b+i) mod 256.
func piecePayload(i int, length int64) []byte {
	buf := make([]byte, length)
	for b := range buf {
		buf[b] = byte((b + i) % 256)
	}
	return buf
}

// blocksForPiece splits a piece payload into BlockSize chunks (the final
// chunk may be shorter), returning BlockInfo/data pairs in ascending offset
// order.
func blocksForPiece(pieceIndex int, payload []byte) []core.Block {
	var blocks []core.Block
	const blockSize = core.BlockSize
	for off := 0; off < len(payload); off += blockSize {
		end := off + blockSize
		if end > len(payload) {
			end = len(payload)
		}
		blocks = append(blocks, core.Block{
			BlockInfo: core.BlockInfo{
				PieceIndex: pieceIndex,
				Offset:     int64(off),
				Length:     int64(end - off),
			},
			Data: append([]byte(nil), payload[off:end]...),
		})
	}
	return blocks
}

func corrupt(payload []byte, delta byte) []byte {
	out := make([]byte, len(payload))
	for i, b := range payload {
		sum := int(b) + int(delta)
		if sum > 255 {
			sum = 255
		}
		out[i] = byte(sum)
	}
	return out
}

func newTestTask() *Task {
	return New(Config{}, tally.NoopScope)
}
