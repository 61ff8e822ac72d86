package disk

import "github.com/kraken-disk/diskcore/core"

// registry is the disk task's map of TorrentID -> torrentEntry. Owned
// solely by the Task; never accessed concurrently, since the task is a
// single-consumer event loop.
type registry struct {
	entries map[core.TorrentID]*torrentEntry
}

func newRegistry() *registry {
	return &registry{entries: make(map[core.TorrentID]*torrentEntry)}
}

func (r *registry) get(id core.TorrentID) (*torrentEntry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

func (r *registry) has(id core.TorrentID) bool {
	_, ok := r.entries[id]
	return ok
}

// insert adds e under id. Callers must have already checked !has(id); the
// "already exists" error is produced by the caller, not here, since only
// NewTorrent handling needs to distinguish it from other failures.
func (r *registry) insert(id core.TorrentID, e *torrentEntry) {
	r.entries[id] = e
}

func (r *registry) all() []*torrentEntry {
	out := make([]*torrentEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}
