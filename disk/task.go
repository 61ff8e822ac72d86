// Package disk implements the disk I/O core of a BitTorrent client: the
// subsystem that persists downloaded content to local files, verifies
// piece integrity, and coordinates those operations across many
// concurrently downloading torrents.
//
// The design mirrors the single-consumer event loop kraken's
// lib/torrent/scheduler package uses to serialize all state mutations
// behind one command channel: a Task owns the registry and every
// torrentEntry, and is driven exclusively by commands enqueued through a
// cheap, clonable Handle. Piece writes themselves may run inline on that
// same goroutine or be offloaded to a fixed write-worker pool, per
// Config.WriteDispatch; either way, only the event loop goroutine ever
// touches registry or entry state.
package disk

import (
	"fmt"

	"github.com/kraken-disk/diskcore/core"
	"github.com/kraken-disk/diskcore/internal/errutil"
	"github.com/kraken-disk/diskcore/internal/log"

	"github.com/andres-erbsen/clock"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"
)

// Task is the disk core's single long-running event loop. Exactly one
// goroutine ever calls Run, giving a total order over all registry and
// per-torrent buffer mutations -- there is no shared mutable state outside
// it, and all synchronisation reduces to message passing over commands.
type Task struct {
	config Config
	stats  tally.Scope
	clock  clock.Clock

	commands chan command
	done     chan struct{}
	shutdown bool

	globalAlerts chan TorrentAllocation

	reg *registry

	// writeJobs feeds the write-worker pool when config.WriteDispatch is
	// DispatchWorkerPool; nil when writes run inline.
	writeJobs chan writeJob
	// pendingWrites counts write jobs dispatched to the pool that haven't
	// yet reported their result back to the event loop. Shutdown drains to
	// zero before closing any file.
	pendingWrites *atomic.Int64

	// allocate creates the destination FileWriter for a new torrent. Tests
	// override this to inject a mocked FileWriter without touching the
	// filesystem, the same seam agentstorage tests use for caDownloadStore.
	allocate func(path string, length int64) (FileWriter, error)
}

// New constructs a Task. Call Run in its own goroutine to start the event
// loop, and Handle to obtain a sender for commands.
func New(config Config, stats tally.Scope) *Task {
	config = config.applyDefaults()
	if stats == nil {
		stats = tally.NoopScope
	}

	var writeJobs chan writeJob
	if config.WriteDispatch == DispatchWorkerPool {
		writeJobs = make(chan writeJob, config.WriteQueueDepth)
	}

	return &Task{
		config:        config,
		stats:         stats,
		clock:         clock.New(),
		commands:      make(chan command, config.CommandBufferSize),
		done:          make(chan struct{}),
		globalAlerts:  make(chan TorrentAllocation, config.AlertBufferSize),
		reg:           newRegistry(),
		writeJobs:     writeJobs,
		pendingWrites: atomic.NewInt64(0),
		allocate: func(path string, length int64) (FileWriter, error) {
			return allocateFile(path, length)
		},
	}
}

// Handle returns a new clonable Handle for sending commands to t.
func (t *Task) Handle() Handle {
	return Handle{inbox: t.commands, done: t.done}
}

// GlobalAlerts returns the receive side of the global alert channel, on
// which TorrentAllocation results are delivered.
func (t *Task) GlobalAlerts() <-chan TorrentAllocation {
	return t.globalAlerts
}

// Run executes the event loop until a Shutdown command is processed.
// Intended to be run in its own goroutine; Run returns once the loop
// exits, at which point every open torrent file has been closed.
func (t *Task) Run() {
	if t.writeJobs != nil {
		for i := 0; i < t.config.NumWriteWorkers; i++ {
			go t.runWriteWorker()
		}
	}
	for {
		select {
		case c := <-t.commands:
			c.apply(t)
		case <-t.done:
			return
		}
	}
}

// handleNewTorrent implements spec.md §4.2's NewTorrent command.
func (t *Task) handleNewTorrent(c newTorrentCmd) {
	if t.reg.has(c.id) {
		log.With("torrent", c.id).Infof("rejecting duplicate allocation")
		t.globalAlerts <- TorrentAllocation{ID: c.id, Err: ErrAlreadyExists}
		return
	}

	if err := c.pieceHashes.ValidateLength(c.info.NumPieces); err != nil {
		log.With("torrent", c.id).Infof("rejecting allocation, invalid piece hashes: %s", err)
		t.globalAlerts <- TorrentAllocation{ID: c.id, Err: InvalidMetadataError{Cause: err}}
		return
	}
	if err := c.info.Validate(); err != nil {
		log.With("torrent", c.id).Infof("rejecting allocation, invalid storage info: %s", err)
		t.globalAlerts <- TorrentAllocation{ID: c.id, Err: InvalidMetadataError{Cause: err}}
		return
	}

	w, err := t.allocate(c.info.DownloadPath, c.info.DownloadLength)
	if err != nil {
		log.With("torrent", c.id).Errorf("allocating destination file: %s", err)
		cleanupErr := removeFile(c.info.DownloadPath)
		if cleanupErr != nil {
			log.With("torrent", c.id).Errorf("best-effort cleanup of partially allocated file failed: %s", cleanupErr)
		}
		t.globalAlerts <- TorrentAllocation{ID: c.id, Err: IOError{Cause: errutil.Join([]error{err, cleanupErr})}}
		return
	}

	entry := newTorrentEntry(c.id, c.info, c.pieceHashes, w, t.config.AlertBufferSize, t.clock)
	t.reg.insert(c.id, entry)
	t.stats.Gauge("torrents").Update(float64(len(t.reg.all())))

	log.With("torrent", c.id).Infof("allocated %d bytes across %d pieces at %s",
		c.info.DownloadLength, c.info.NumPieces, c.info.DownloadPath)
	t.globalAlerts <- TorrentAllocation{ID: c.id, Alert: entry.alerts}
}

// handleWriteBlock implements spec.md §4.2's WriteBlock command.
func (t *Task) handleWriteBlock(c writeBlockCmd) {
	entry, ok := t.reg.get(c.id)
	if !ok {
		// The engine must have allocated the torrent first; this
		// precondition is enforced at the engine, so a block for an
		// unknown torrent is dropped silently.
		log.With("torrent", c.id).Infof("dropping block for unknown torrent")
		return
	}

	if err := c.block.ValidateAgainst(entry.info); err != nil {
		t.stats.Counter("blocks.invalid").Inc(1)
		log.With("torrent", c.id, "piece", c.block.PieceIndex).Infof("invalid block: %s", err)
		entry.dropBuffer(c.block.PieceIndex)
		entry.alerts <- BatchWrite{Err: InvalidBlockError{Cause: err}}
		return
	}

	if c.block.Offset%t.config.BlockSize != 0 &&
		c.block.Offset+c.block.Length != entry.info.PieceLengthAt(c.block.PieceIndex) {
		err := fmt.Errorf("block offset %d not aligned to configured block size %d",
			c.block.Offset, t.config.BlockSize)
		t.stats.Counter("blocks.invalid").Inc(1)
		log.With("torrent", c.id, "piece", c.block.PieceIndex).Infof("invalid block: %s", err)
		entry.dropBuffer(c.block.PieceIndex)
		entry.alerts <- BatchWrite{Err: InvalidBlockError{Cause: err}}
		return
	}

	buf := entry.bufferFor(c.block.PieceIndex)
	if buf.insert(c.block.BlockInfo, c.block.Data) == insertDuplicate {
		// Idempotent at-least-once delivery from peers is absorbed
		// silently: no alert, no state change.
		return
	}

	if !buf.complete() {
		return
	}

	t.stats.Counter("pieces.finalized").Inc(1)
	piece, valid := entry.verifyAndAssemble(c.block.PieceIndex, buf)
	entry.dropBuffer(c.block.PieceIndex)

	if !valid {
		entry.rejectPiece(piece.index)
		return
	}

	offset := entry.info.PieceOffset(piece.index)
	if t.writeJobs == nil {
		if err := entry.writer.WriteAt(piece.data, offset); err != nil {
			entry.failPiece(piece.index, err)
			return
		}
		entry.commitPiece(piece)
		return
	}

	t.pendingWrites.Inc()
	t.writeJobs <- writeJob{id: c.id, piece: piece, offset: offset, writer: entry.writer}
}

// handlePieceWriteResult applies the outcome of a piece write the
// write-worker pool performed off the event loop goroutine.
func (t *Task) handlePieceWriteResult(c pieceWriteResultCmd) {
	defer t.pendingWrites.Dec()

	entry, ok := t.reg.get(c.id)
	if !ok {
		// This spec never removes a torrent mid-session, so this is
		// unreachable in practice; guarded defensively regardless.
		return
	}
	if c.err != nil {
		entry.failPiece(c.piece.index, c.err)
		return
	}
	entry.commitPiece(c.piece)
}

// handleProgressQuery implements the Handle.Progress synchronous query.
func (t *Task) handleProgressQuery(c progressQueryCmd) {
	entry, ok := t.reg.get(c.id)
	if !ok {
		c.reply <- progressReply{err: ErrUnknownTorrent}
		return
	}
	c.reply <- progressReply{progress: TorrentProgress{
		Bitfield:      entry.Bitfield(),
		BytesWritten:  entry.BytesWritten(),
		Progress:      entry.Progress(),
		LastWriteTime: entry.LastWriteTime(),
	}}
}

// handleShutdown implements spec.md §4.2's Shutdown command: drain any
// write-worker-pool jobs still in flight, close every open file, and
// terminate the loop. Command processing is strictly sequential, so no
// allocation can be mid-flight when this runs.
func (t *Task) handleShutdown() {
	if t.shutdown {
		return
	}
	t.shutdown = true

	if t.writeJobs != nil {
		close(t.writeJobs)
		for t.pendingWrites.Load() > 0 {
			c := <-t.commands
			c.apply(t)
		}
	}

	for _, e := range t.reg.all() {
		e.close()
	}
	close(t.done)
}
