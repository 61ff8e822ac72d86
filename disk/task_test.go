package disk

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kraken-disk/diskcore/core"

	"github.com/stretchr/testify/require"
)

func allocateAndAwait(t *testing.T, task *Task, h Handle, id core.TorrentID, info core.StorageInfo, hashes core.PieceHashes) <-chan BatchWrite {
	t.Helper()
	require.NoError(t, h.AllocateNewTorrent(id, info, hashes))
	select {
	case a := <-task.GlobalAlerts():
		require.Equal(t, id, a.ID)
		require.True(t, a.OK(), "allocation failed: %v", a.Err)
		return a.Alert
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for allocation result")
		return nil
	}
}

// Scenario A: single torrent, 4 pieces, writing all blocks in ascending
// order produces four ordered BatchWrite(Ok, valid) alerts, and the file
// on disk equals the concatenation of the pieces.
func TestWriteBlockScenarioA(t *testing.T) {
	dir := t.TempDir()
	task := newTestTask()
	go task.Run()
	h := task.Handle()

	info := fourPieceStorageInfo(t, dir)

	var allHashes core.PieceHashes
	var pieces [][]byte
	for i := 0; i < info.NumPieces; i++ {
		p := piecePayload(i, info.PieceLengthAt(i))
		pieces = append(pieces, p)
		d := core.HashPiece(p)
		allHashes = append(allHashes, d[:]...)
	}

	id := core.NewTorrentID()
	alerts := allocateAndAwait(t, task, h, id, info, allHashes)

	for i := 0; i < info.NumPieces; i++ {
		for _, b := range blocksForPiece(i, pieces[i]) {
			require.NoError(t, h.WriteBlock(id, b.BlockInfo, b.Data))
		}
		select {
		case a := <-alerts:
			require.NoError(t, a.Err)
			require.NotNil(t, a.IsPieceValid)
			require.True(t, *a.IsPieceValid)
			require.Len(t, a.Blocks, len(blocksForPiece(i, pieces[i])))
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for piece %d alert", i)
		}
	}

	require.NoError(t, h.Shutdown())

	want := append(append(append(append([]byte{}, pieces[0]...), pieces[1]...), pieces[2]...), pieces[3]...)
	got, err := os.ReadFile(info.DownloadPath)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// Scenario B: re-allocating the same id fails with AlreadyExists.
func TestNewTorrentScenarioBAlreadyExists(t *testing.T) {
	dir := t.TempDir()
	task := newTestTask()
	go task.Run()
	h := task.Handle()

	info := fourPieceStorageInfo(t, dir)
	hashes := make(core.PieceHashes, info.NumPieces*core.DigestLength)
	id := core.NewTorrentID()

	allocateAndAwait(t, task, h, id, info, hashes)

	require.NoError(t, h.AllocateNewTorrent(id, info, hashes))
	select {
	case a := <-task.GlobalAlerts():
		require.Equal(t, id, a.ID)
		require.ErrorIs(t, a.Err, ErrAlreadyExists)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for duplicate allocation result")
	}
}

// Scenario C: corrupting piece 0 rejects it, emits an empty-blocks invalid
// alert, and leaves the destination region untouched (zero-filled).
func TestWriteBlockScenarioCCorruptPiece(t *testing.T) {
	dir := t.TempDir()
	task := newTestTask()
	go task.Run()
	h := task.Handle()

	info := fourPieceStorageInfo(t, dir)
	good := piecePayload(0, info.PieceLengthAt(0))
	expectedDigest := core.HashPiece(good)

	var allHashes core.PieceHashes
	allHashes = append(allHashes, expectedDigest[:]...)
	for i := 1; i < info.NumPieces; i++ {
		d := core.HashPiece(piecePayload(i, info.PieceLengthAt(i)))
		allHashes = append(allHashes, d[:]...)
	}

	id := core.NewTorrentID()
	alerts := allocateAndAwait(t, task, h, id, info, allHashes)

	corrupted := corrupt(good, 5)
	for _, b := range blocksForPiece(0, corrupted) {
		require.NoError(t, h.WriteBlock(id, b.BlockInfo, b.Data))
	}

	select {
	case a := <-alerts:
		require.NoError(t, a.Err)
		require.NotNil(t, a.IsPieceValid)
		require.False(t, *a.IsPieceValid)
		require.Empty(t, a.Blocks)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for corrupt piece alert")
	}

	require.NoError(t, h.Shutdown())

	region := make([]byte, info.PieceLengthAt(0))
	f, err := os.Open(info.DownloadPath)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.ReadAt(region, info.PieceOffset(0))
	require.NoError(t, err)
	for _, b := range region {
		require.Equal(t, byte(0), b)
	}
}

// Scenario D: writing a piece's blocks out of order still produces a
// single valid BatchWrite once the last block lands.
func TestWriteBlockScenarioDOutOfOrder(t *testing.T) {
	dir := t.TempDir()
	task := newTestTask()
	go task.Run()
	h := task.Handle()

	info := fourPieceStorageInfo(t, dir)
	payload := piecePayload(1, info.PieceLengthAt(1))
	d := core.HashPiece(payload)

	var allHashes core.PieceHashes
	for i := 0; i < info.NumPieces; i++ {
		if i == 1 {
			allHashes = append(allHashes, d[:]...)
			continue
		}
		zd := core.HashPiece(piecePayload(i, info.PieceLengthAt(i)))
		allHashes = append(allHashes, zd[:]...)
	}

	id := core.NewTorrentID()
	alerts := allocateAndAwait(t, task, h, id, info, allHashes)

	blocks := blocksForPiece(1, payload)
	order := []int{3, 1, 0, 2}
	for idx, bi := range order {
		b := blocks[bi]
		require.NoError(t, h.WriteBlock(id, b.BlockInfo, b.Data))
		if idx < len(order)-1 {
			select {
			case <-alerts:
				t.Fatal("alert fired before piece was complete")
			case <-time.After(50 * time.Millisecond):
			}
		}
	}

	select {
	case a := <-alerts:
		require.NoError(t, a.Err)
		require.True(t, *a.IsPieceValid)
		require.Len(t, a.Blocks, 4)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for out-of-order piece alert")
	}

	require.NoError(t, h.Shutdown())
}

// Scenario E: two interleaved torrents see independent alert streams.
func TestWriteBlockScenarioEInterleavedTorrents(t *testing.T) {
	dir := t.TempDir()
	task := newTestTask()
	go task.Run()
	h := task.Handle()

	mkTorrent := func(name string) (core.TorrentID, core.StorageInfo, core.PieceHashes, []byte) {
		info := core.NewStorageInfo(1, 32768, 32768, filepath.Join(dir, name))
		payload := piecePayload(0, info.PieceLengthAt(0))
		d := core.HashPiece(payload)
		return core.NewTorrentID(), info, core.PieceHashes(d[:]), payload
	}

	idA, infoA, hashesA, payloadA := mkTorrent("a")
	idB, infoB, hashesB, payloadB := mkTorrent("b")

	alertsA := allocateAndAwait(t, task, h, idA, infoA, hashesA)
	alertsB := allocateAndAwait(t, task, h, idB, infoB, hashesB)

	blocksA := blocksForPiece(0, payloadA)
	blocksB := blocksForPiece(0, payloadB)

	for i := range blocksA {
		require.NoError(t, h.WriteBlock(idA, blocksA[i].BlockInfo, blocksA[i].Data))
		require.NoError(t, h.WriteBlock(idB, blocksB[i].BlockInfo, blocksB[i].Data))
	}

	for _, alerts := range []<-chan BatchWrite{alertsA, alertsB} {
		select {
		case a := <-alerts:
			require.NoError(t, a.Err)
			require.True(t, *a.IsPieceValid)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for interleaved alert")
		}
	}

	require.NoError(t, h.Shutdown())
}

// Scenario F: after Shutdown, WriteBlock returns ChannelClosed.
func TestShutdownScenarioF(t *testing.T) {
	task := newTestTask()
	go task.Run()
	h := task.Handle()

	require.NoError(t, h.Shutdown())

	// Give the loop a chance to actually close done before asserting.
	require.Eventually(t, func() bool {
		return h.WriteBlock(core.NewTorrentID(), core.BlockInfo{Length: 1}, []byte{0}) == ErrChannelClosed
	}, time.Second, time.Millisecond)
}

// Duplicate absorption: replaying a block after the piece has committed
// produces no alert.
func TestWriteBlockDuplicateAbsorption(t *testing.T) {
	dir := t.TempDir()
	task := newTestTask()
	go task.Run()
	h := task.Handle()

	info := core.NewStorageInfo(1, 32768, 32768, filepath.Join(dir, "content"))
	payload := piecePayload(0, info.PieceLengthAt(0))
	d := core.HashPiece(payload)
	id := core.NewTorrentID()

	alerts := allocateAndAwait(t, task, h, id, info, core.PieceHashes(d[:]))
	blocks := blocksForPiece(0, payload)
	for _, b := range blocks {
		require.NoError(t, h.WriteBlock(id, b.BlockInfo, b.Data))
	}
	select {
	case a := <-alerts:
		require.True(t, *a.IsPieceValid)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for commit alert")
	}

	// Replay the first block: no new buffer exists (piece dropped on
	// commit), and the block is simply re-accumulated into a fresh Empty
	// buffer without completing, so no alert should fire.
	require.NoError(t, h.WriteBlock(id, blocks[0].BlockInfo, blocks[0].Data))
	select {
	case <-alerts:
		t.Fatal("replaying a single block of a committed piece must not alert")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, h.Shutdown())
}
