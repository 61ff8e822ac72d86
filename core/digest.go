package core

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// DigestLength is the size in bytes of a piece digest, per the BitTorrent
// protocol's mandated use of SHA-1.
const DigestLength = sha1.Size // 20

// PieceDigest is the 20-byte SHA-1 digest of an assembled piece.
type PieceDigest [DigestLength]byte

// HashPiece computes the PieceDigest of an assembled piece buffer.
func HashPiece(piece []byte) PieceDigest {
	return PieceDigest(sha1.Sum(piece))
}

// Hex returns the lowercase hex encoding of d.
func (d PieceDigest) Hex() string {
	return hex.EncodeToString(d[:])
}

func (d PieceDigest) String() string {
	return fmt.Sprintf("sha1:%s", d.Hex())
}

// Equal reports whether two digests are byte-identical.
func (d PieceDigest) Equal(other PieceDigest) bool {
	return d == other
}
