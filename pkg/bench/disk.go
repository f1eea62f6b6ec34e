package bench

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// DiskRead times a sequential read of exactly blockBytes from the test file.
// The file must already exist and hold at least blockBytes; fixture creation
// is the caller's concern.
func DiskRead(path string, blockBytes int64) (Measurement, error) {
	if blockBytes <= 0 || blockBytes > DiskTestBudgetBytes {
		return Measurement{}, ErrInvalidSize
	}

	f, err := os.Open(path)
	if err != nil {
		return Measurement{}, fmt.Errorf("bench: open test file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, blockBytes)

	start := time.Now()

	n, err := io.ReadFull(f, buf)
	if err != nil {
		return Measurement{}, fmt.Errorf("%w: got %d of %d bytes: %v", ErrShortRead, n, blockBytes, err)
	}

	return Measurement{Bytes: blockBytes, Elapsed: time.Since(start)}, nil
}

// DiskWrite times a sequential write of blockBytes to a scratch file next to
// the test file. The scratch file is synced inside the timed window so the
// figure reflects storage, not just the page cache, and is removed on every
// exit path.
func DiskWrite(path string, blockBytes int64) (Measurement, error) {
	if blockBytes <= 0 || blockBytes > DiskTestBudgetBytes {
		return Measurement{}, ErrInvalidSize
	}

	scratch := filepath.Join(filepath.Dir(path), fmt.Sprintf(".bench-write-%d", os.Getpid()))

	f, err := os.OpenFile(scratch, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return Measurement{}, fmt.Errorf("bench: create scratch file: %w", err)
	}

	defer func() {
		f.Close()
		os.Remove(scratch)
	}()

	buf := make([]byte, blockBytes)
	for i := range buf {
		buf[i] = fillByte
	}

	start := time.Now()

	if _, err := f.Write(buf); err != nil {
		return Measurement{}, fmt.Errorf("bench: write scratch file: %w", err)
	}

	if err := f.Sync(); err != nil {
		return Measurement{}, fmt.Errorf("bench: sync scratch file: %w", err)
	}

	return Measurement{Bytes: blockBytes, Elapsed: time.Since(start)}, nil
}
