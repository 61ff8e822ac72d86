package disk

import "github.com/kraken-disk/diskcore/core"

// TorrentAllocation is emitted on the global alert channel in response to
// every NewTorrent command.
type TorrentAllocation struct {
	ID    core.TorrentID
	Alert <-chan BatchWrite // non-nil iff Err == nil
	Err   error
}

// OK reports whether the allocation succeeded.
func (a TorrentAllocation) OK() bool { return a.Err == nil }

// BatchWrite is emitted on a torrent's per-torrent alert channel once a
// piece has been finalised (committed, rejected, or failed).
//
// The IsPieceValid field is nil only for hypothetical intermediate
// batches; in this single-piece-per-batch implementation it is always
// non-nil whenever an Err is absent.
type BatchWrite struct {
	Blocks       []core.BlockInfo
	IsPieceValid *bool
	Err          error
}

// OK reports whether the batch completed without an I/O error. A
// completed-but-rejected (invalid digest) piece still reports OK() == true;
// check IsPieceValid to distinguish.
func (b BatchWrite) OK() bool { return b.Err == nil }

func boolPtr(v bool) *bool { return &v }
