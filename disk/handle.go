package disk

import "github.com/kraken-disk/diskcore/core"

// Handle is a cheap, clonable value that forwards commands onto a disk
// task's command inbox. It performs no work of its own; every operation is
// an enqueue that waits until the inbox accepts the command and fails only
// once the task has exited, mirroring the liftedEventLoop pattern the scheduler package uses
// to expose its own event loop to outside callers.
type Handle struct {
	inbox chan<- command
	done  <-chan struct{}
}

// send enqueues c, returning ErrChannelClosed if the task has exited.
func (h Handle) send(c command) error {
	select {
	case h.inbox <- c:
		return nil
	case <-h.done:
		return ErrChannelClosed
	}
}

// AllocateNewTorrent enqueues an allocation command. The caller must ensure
// len(pieceHashes) == info.NumPieces * core.DigestLength; the outcome is
// delivered asynchronously on the global alert channel, not returned here.
func (h Handle) AllocateNewTorrent(id core.TorrentID, info core.StorageInfo, pieceHashes core.PieceHashes) error {
	return h.send(newTorrentCmd{id: id, info: info, pieceHashes: pieceHashes})
}

// WriteBlock enqueues a block. The caller must ensure len(data) ==
// block.Length; the outcome is delivered asynchronously on the torrent's
// alert channel once the containing piece is finalised.
func (h Handle) WriteBlock(id core.TorrentID, block core.BlockInfo, data []byte) error {
	return h.send(writeBlockCmd{id: id, block: core.Block{BlockInfo: block, Data: data}})
}

// Shutdown enqueues a terminal command. Subsequent sends on any clone of h
// fail with ErrChannelClosed.
func (h Handle) Shutdown() error {
	return h.send(shutdownCmd{})
}

// Progress synchronously queries a torrent's on-disk progress snapshot.
// Blocks until the event loop computes and returns it; returns
// ErrUnknownTorrent if id names no registered torrent, or ErrChannelClosed
// if the task has already exited.
func (h Handle) Progress(id core.TorrentID) (TorrentProgress, error) {
	reply := make(chan progressReply, 1)
	if err := h.send(progressQueryCmd{id: id, reply: reply}); err != nil {
		return TorrentProgress{}, err
	}
	select {
	case r := <-reply:
		return r.progress, r.err
	case <-h.done:
		return TorrentProgress{}, ErrChannelClosed
	}
}
