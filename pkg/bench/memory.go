package bench

import (
	"sync/atomic"
	"time"
)

// memSink absorbs the read-pass accumulator so the compiler cannot drop the
// strided loads.
var memSink atomic.Uint64

// MemoryBandwidth allocates a buffer of bufBytes, times a full write pass
// and a cache-line-strided read pass over it, and returns the average of the
// two throughputs in GB/s.
func MemoryBandwidth(bufBytes int) (float64, error) {
	if bufBytes < cacheLineBytes {
		return 0, ErrInvalidSize
	}

	buf := make([]byte, bufBytes)

	writeStart := time.Now()

	for i := range buf {
		buf[i] = fillByte
	}

	write := Measurement{Bytes: int64(bufBytes), Elapsed: time.Since(writeStart)}

	var sum uint64

	readStart := time.Now()

	for i := 0; i < len(buf); i += cacheLineBytes {
		sum += uint64(buf[i])
	}

	read := Measurement{Bytes: int64(bufBytes), Elapsed: time.Since(readStart)}

	memSink.Store(sum)

	return (write.GBps() + read.GBps()) / 2, nil
}
