package disk

import (
	"time"

	"github.com/willf/bitset"
)

// TorrentProgress is a read-only snapshot of one torrent's on-disk state,
// the engine-facing view spec.md's alert stream is meant to let a caller
// build without the disk task itself making any piece-selection decisions.
type TorrentProgress struct {
	// Bitfield has bit i set iff piece i has been committed to disk.
	Bitfield *bitset.BitSet
	// BytesWritten is the total bytes committed to disk so far.
	BytesWritten int64
	// Progress is BytesWritten as a fraction of the torrent's total length.
	Progress float64
	// LastWriteTime is when the most recently committed piece landed, or
	// the zero time if no piece has yet been committed.
	LastWriteTime time.Time
}

type progressReply struct {
	progress TorrentProgress
	err      error
}
