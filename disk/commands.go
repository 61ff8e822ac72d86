package disk

import "github.com/kraken-disk/diskcore/core"

// command describes an external instruction which modifies disk task
// state. While a command is applying, it is guaranteed to be the only
// accessor of the task's registry, following the single-consumer event
// loop model the scheduler package uses for its own event stream.
type command interface {
	apply(t *Task)
}

// newTorrentCmd requests allocation of a new torrent.
type newTorrentCmd struct {
	id          core.TorrentID
	info        core.StorageInfo
	pieceHashes core.PieceHashes
}

func (c newTorrentCmd) apply(t *Task) {
	t.handleNewTorrent(c)
}

// writeBlockCmd delivers one block of peer-received data.
type writeBlockCmd struct {
	id    core.TorrentID
	block core.Block
}

func (c writeBlockCmd) apply(t *Task) {
	t.handleWriteBlock(c)
}

// shutdownCmd terminates the event loop.
type shutdownCmd struct{}

func (c shutdownCmd) apply(t *Task) {
	t.handleShutdown()
}

// pieceWriteResultCmd delivers the outcome of a piece write dispatched to
// the write-worker pool back onto the event loop, so commit/reject
// bookkeeping still happens on the single goroutine that owns entry state.
type pieceWriteResultCmd struct {
	id    core.TorrentID
	piece assembledPiece
	err   error
}

func (c pieceWriteResultCmd) apply(t *Task) {
	t.handlePieceWriteResult(c)
}

// progressQueryCmd synchronously queries one torrent's on-disk progress.
type progressQueryCmd struct {
	id    core.TorrentID
	reply chan<- progressReply
}

func (c progressQueryCmd) apply(t *Task) {
	t.handleProgressQuery(c)
}
