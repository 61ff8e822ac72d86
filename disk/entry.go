package disk

import (
	"os"
	"time"

	"github.com/kraken-disk/diskcore/core"
	"github.com/kraken-disk/diskcore/internal/log"

	"github.com/andres-erbsen/clock"
	"github.com/willf/bitset"
	"go.uber.org/atomic"
)

// torrentEntry is the disk task's per-torrent state: storage layout,
// expected hashes, the open destination file, block buffers keyed by piece
// index for in-progress pieces, and the outbound per-torrent alert sender.
// Owned exclusively by the Task; created on successful allocation and
// never destroyed mid-session in this spec.
type torrentEntry struct {
	id          core.TorrentID
	info        core.StorageInfo
	pieceHashes core.PieceHashes
	writer      FileWriter

	buffers map[int]*pieceBuffer

	alerts chan BatchWrite

	numComplete *atomic.Int32
	bytesDone   *atomic.Int64
	committed   *bitset.BitSet // bit i set iff piece i has been committed

	clock       clock.Clock
	lastWriteAt *atomic.Int64 // unix nanos of the last piece commit
}

func newTorrentEntry(id core.TorrentID, info core.StorageInfo, hashes core.PieceHashes, w FileWriter, alertBuf int, clk clock.Clock) *torrentEntry {
	return &torrentEntry{
		id:          id,
		info:        info,
		pieceHashes: hashes,
		writer:      w,
		buffers:     make(map[int]*pieceBuffer),
		alerts:      make(chan BatchWrite, alertBuf),
		numComplete: atomic.NewInt32(0),
		bytesDone:   atomic.NewInt64(0),
		committed:   bitset.New(uint(info.NumPieces)),
		clock:       clk,
		lastWriteAt: atomic.NewInt64(0),
	}
}

// LastWriteTime returns the time of the most recently committed piece, or
// the zero time if no piece has yet been committed. Useful for an engine
// tracking idle/stalled torrents, the way dispatcher.LastWriteTime does for
// the scheduler's own idle-torrent sweep.
func (e *torrentEntry) LastWriteTime() time.Time {
	if e.numComplete.Load() == 0 {
		return time.Time{}
	}
	return time.Unix(0, e.lastWriteAt.Load())
}

// Bitfield returns a snapshot of which pieces have been committed to disk,
// true meaning complete. This is a read-only, engine-facing progress view;
// it makes no piece-selection decisions itself (that remains out of
// scope), it just reports state the engine already causes to exist.
func (e *torrentEntry) Bitfield() *bitset.BitSet {
	return e.committed.Clone()
}

// BytesWritten returns an estimate of total bytes committed to disk so far.
func (e *torrentEntry) BytesWritten() int64 {
	return e.bytesDone.Load()
}

// Progress returns the fraction of the torrent's content committed to disk,
// in [0, 1].
func (e *torrentEntry) Progress() float64 {
	if e.info.DownloadLength == 0 {
		return 1
	}
	return float64(e.bytesDone.Load()) / float64(e.info.DownloadLength)
}

// bufferFor fetches or creates the pieceBuffer for piece i.
func (e *torrentEntry) bufferFor(i int) *pieceBuffer {
	b, ok := e.buffers[i]
	if !ok {
		b = newPieceBuffer(e.info.PieceLengthAt(i))
		e.buffers[i] = b
	}
	return b
}

// dropBuffer discards the in-progress buffer for piece i; committed,
// rejected, and failed pieces all terminate this way, and any subsequent
// block for the same index begins a fresh buffer (an Empty state, per the
// state machine in spec.md §4.6).
func (e *torrentEntry) dropBuffer(i int) {
	delete(e.buffers, i)
}

// assembledPiece is a fully received piece, hashed and ready to be either
// written to disk (inline, on the event loop goroutine) or handed off to
// the write-worker pool, with everything its eventual commit/reject alert
// needs already captured.
type assembledPiece struct {
	index  int
	data   []byte
	blocks []core.BlockInfo
}

// verifyAndAssemble hashes buf's contents against the expected digest for
// piece pi, returning the assembled piece and whether it matched. The piece
// is fully decided either way, so the caller always drops buf afterward.
func (e *torrentEntry) verifyAndAssemble(pi int, buf *pieceBuffer) (assembledPiece, bool) {
	data := buf.assemble()
	blocks := make([]core.BlockInfo, len(buf.blocks))
	copy(blocks, buf.blocks)
	valid := verifyPiece(data, e.pieceHashes.At(pi))
	return assembledPiece{index: pi, data: data, blocks: blocks}, valid
}

// rejectPiece emits the invalid-piece alert for a piece that failed hash
// verification; no write to disk is attempted.
func (e *torrentEntry) rejectPiece(pi int) {
	log.With("torrent", e.id, "piece", pi).Infof("piece failed hash verification, rejecting")
	e.alerts <- BatchWrite{Blocks: nil, IsPieceValid: boolPtr(false)}
}

// failPiece emits an I/O-error alert for a piece whose write to disk
// failed, whether that write ran inline or on the write-worker pool.
func (e *torrentEntry) failPiece(pi int, err error) {
	log.With("torrent", e.id, "piece", pi).Errorf("writing piece to disk: %s", err)
	e.alerts <- BatchWrite{Err: IOError{Cause: err}}
}

// commitPiece records a successfully written piece's bookkeeping -- the
// committed bitset, progress counters, and last-write timestamp -- and
// emits the valid-piece alert. Called once p's write has actually landed
// on disk, whether that happened inline or via the write-worker pool.
func (e *torrentEntry) commitPiece(p assembledPiece) {
	e.committed.Set(uint(p.index))
	e.numComplete.Inc()
	e.bytesDone.Add(int64(len(p.data)))
	e.lastWriteAt.Store(e.clock.Now().UnixNano())

	log.With("torrent", e.id, "piece", p.index).Infof("piece committed")
	e.alerts <- BatchWrite{Blocks: p.blocks, IsPieceValid: boolPtr(true)}
}

// close releases the entry's open file handle.
func (e *torrentEntry) close() {
	if err := e.writer.Close(); err != nil {
		log.With("torrent", e.id).Errorf("closing destination file: %s", err)
	}
}

// removeFile best-effort removes the destination file; used only when
// allocation itself failed partway through. Returns the removal error, if
// any and not itself a not-exist error, so the caller can fold it into the
// alert it reports alongside the original allocation failure.
func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
