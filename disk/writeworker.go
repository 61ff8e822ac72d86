package disk

import "github.com/kraken-disk/diskcore/core"

// writeJob is one piece write handed off to the write-worker pool.
type writeJob struct {
	id     core.TorrentID
	piece  assembledPiece
	offset int64
	writer FileWriter
}

// runWriteWorker performs positioned writes dispatched by the event loop
// when Config.WriteDispatch is DispatchWorkerPool, reporting each result
// back onto the command inbox so the event loop goroutine remains the sole
// mutator of entry and registry state. Exits once t.writeJobs is closed and
// drained; handleShutdown closes it and then applies every outstanding
// result before closing any file.
func (t *Task) runWriteWorker() {
	h := t.Handle()
	for job := range t.writeJobs {
		err := job.writer.WriteAt(job.piece.data, job.offset)
		_ = h.send(pieceWriteResultCmd{id: job.id, piece: job.piece, err: err})
	}
}
