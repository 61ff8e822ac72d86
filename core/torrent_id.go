package core

import (
	"github.com/google/uuid"
)

// TorrentID is a process-unique opaque identifier for a torrent, assigned
// by the external engine. The disk core treats it strictly as an
// equality-comparable key; it never inspects its contents.
type TorrentID [16]byte

// NewTorrentID generates a fresh, random TorrentID. Exposed for the
// convenience of engines that don't already have their own id scheme.
func NewTorrentID() TorrentID {
	return TorrentID(uuid.New())
}

// String returns the canonical hyphenated hex representation of id.
func (id TorrentID) String() string {
	return uuid.UUID(id).String()
}
