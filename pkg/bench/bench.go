// Package bench provides raw throughput measurement primitives. The probes
// run against the OS as-is: page cache, readahead, and writeback all count,
// because the consumers of these numbers place data based on achievable
// throughput, not theoretical peaks.
package bench

import (
	"errors"
	"time"
)

const (
	// DiskTestBudgetBytes caps the total bytes a disk probe pass may touch.
	DiskTestBudgetBytes = 500 << 20

	// DiskSeqBlockBytes is the block size for sequential bandwidth probes.
	DiskSeqBlockBytes = 100 << 20

	// DiskRndBlockBytes is the block size for random-access probes.
	DiskRndBlockBytes = 4096

	// DefaultMemoryProbeBytes is the buffer size for the memory probe.
	DefaultMemoryProbeBytes = 64 << 20

	cacheLineBytes = 64
	fillByte       = 0xA5
)

var (
	// ErrInvalidSize is returned when a probe is asked for a non-positive
	// or over-budget byte count.
	ErrInvalidSize = errors.New("bench: invalid probe size")

	// ErrShortRead is returned when the test file holds fewer bytes than
	// the requested block.
	ErrShortRead = errors.New("bench: short read from test file")
)

// Measurement is one timed transfer. The zero Measurement reports 0 GB/s,
// which is the sentinel for "unmeasured" everywhere in this module.
type Measurement struct {
	Bytes   int64
	Elapsed time.Duration
}

// GBps returns the measured throughput in gigabytes per second.
func (m Measurement) GBps() float64 {
	if m.Elapsed <= 0 || m.Bytes <= 0 {
		return 0
	}

	return float64(m.Bytes) / m.Elapsed.Seconds() / 1e9
}
