package disk

import "github.com/kraken-disk/diskcore/core"

// verifyPiece computes the SHA-1 digest of an assembled piece and compares
// it byte-wise against the expected digest.
func verifyPiece(piece []byte, expected core.PieceDigest) bool {
	return core.HashPiece(piece).Equal(expected)
}
