package core

import "fmt"

// BlockSize is the conventional BitTorrent block size: the unit of
// peer-wire transfer and of disk-task command-inbox traffic.
const BlockSize = 16 * 1024 // 16 KiB

// StorageInfo is the immutable layout configuration for one single-file
// torrent.
type StorageInfo struct {
	// NumPieces is the total piece count, N >= 1.
	NumPieces int
	// PieceLength is the uniform piece length L, in bytes.
	PieceLength int64
	// LastPieceLength is the length of the final piece, L', with
	// 1 <= L' <= L. L' < L iff DownloadLength is not a multiple of L.
	LastPieceLength int64
	// DownloadLength is the total content length, (N-1)*L + L'.
	DownloadLength int64
	// DownloadPath is the destination file path.
	DownloadPath string
}

// NewStorageInfo builds a StorageInfo from piece count, piece length, and
// total content length, deriving the last piece length.
func NewStorageInfo(numPieces int, pieceLength, downloadLength int64, path string) StorageInfo {
	last := downloadLength % pieceLength
	if last == 0 {
		last = pieceLength
	}
	return StorageInfo{
		NumPieces:       numPieces,
		PieceLength:     pieceLength,
		LastPieceLength: last,
		DownloadLength:  downloadLength,
		DownloadPath:    path,
	}
}

// Validate checks StorageInfo for internal self-consistency.
func (s StorageInfo) Validate() error {
	if s.NumPieces < 1 {
		return fmt.Errorf("num pieces must be >= 1, got %d", s.NumPieces)
	}
	if s.PieceLength < 1 {
		return fmt.Errorf("piece length must be >= 1, got %d", s.PieceLength)
	}
	if s.LastPieceLength < 1 || s.LastPieceLength > s.PieceLength {
		return fmt.Errorf("last piece length %d out of range (0, %d]", s.LastPieceLength, s.PieceLength)
	}
	want := int64(s.NumPieces-1)*s.PieceLength + s.LastPieceLength
	if s.DownloadLength != want {
		return fmt.Errorf("download length %d inconsistent with piece layout (want %d)", s.DownloadLength, want)
	}
	if s.DownloadPath == "" {
		return fmt.Errorf("download path must not be empty")
	}
	return nil
}

// PieceLengthAt returns the length of piece i.
func (s StorageInfo) PieceLengthAt(i int) int64 {
	if i == s.NumPieces-1 {
		return s.LastPieceLength
	}
	return s.PieceLength
}

// PieceOffset returns the absolute byte offset of piece i within the
// destination file.
func (s StorageInfo) PieceOffset(i int) int64 {
	return int64(i) * s.PieceLength
}
