package disk

import (
	"os"
)

// FileWriter is the positioned-write capability abstraction spec.md §9
// calls out as the seam for pluggable storage backends: {allocate, write_at}.
// osFileWriter is the only implementation this spec requires; tests mock
// this interface the way agentstorage/torrent_test.go mocks its
// caDownloadStore.
type FileWriter interface {
	// WriteAt performs a positioned write of data at offset. Must be
	// atomic at piece granularity from the caller's perspective: either
	// every byte lands, or an error is returned and no partial write is
	// assumed durable.
	WriteAt(data []byte, offset int64) error
	// Close releases the underlying file handle.
	Close() error
}

// osFileWriter is a FileWriter backed by a real *os.File, pre-sized to the
// full download length at allocation time so piece writes never extend the
// file and never need locking against concurrent size changes.
type osFileWriter struct {
	f *os.File
}

// allocateFile creates (or truncates) the destination file and pre-sizes
// it to length bytes -- the "allocation" spec.md names in NewTorrent step 2.
func allocateFile(path string, length int64) (*osFileWriter, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(length); err != nil {
		f.Close()
		return nil, err
	}
	return &osFileWriter{f: f}, nil
}

func (w *osFileWriter) WriteAt(data []byte, offset int64) error {
	_, err := w.f.WriteAt(data, offset)
	return err
}

func (w *osFileWriter) Close() error {
	return w.f.Close()
}
