package core

import "fmt"

// PieceHashes is the flat N*20-byte sequence of expected piece digests
// supplied at torrent allocation time. The i-th 20-byte slice is the
// expected digest of piece i.
type PieceHashes []byte

// ValidateLength reports whether p carries exactly one digest per piece.
func (p PieceHashes) ValidateLength(numPieces int) error {
	want := numPieces * DigestLength
	if len(p) != want {
		return fmt.Errorf("piece hashes length %d, want %d (%d pieces * %d bytes)",
			len(p), want, numPieces, DigestLength)
	}
	return nil
}

// At returns the expected digest of piece i. Assumes ValidateLength already
// succeeded for the corresponding piece count; callers that skip validation
// may panic on an out-of-range slice.
func (p PieceHashes) At(i int) PieceDigest {
	var d PieceDigest
	copy(d[:], p[i*DigestLength:(i+1)*DigestLength])
	return d
}
