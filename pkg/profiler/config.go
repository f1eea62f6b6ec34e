package profiler

import (
	"runtime"

	"github.com/infermesh/profiler/pkg/bench"
)

const (
	defaultMatrixDim = 256
	minMatrixDim     = 32
	maxMatrixDim     = 1024
)

// Config controls a profiling pass.
type Config struct {
	// TestFilePath is the disk-bandwidth fixture. Creation and cleanup are
	// the operator's concern; when empty, disk probes report the zero
	// sentinel instead of failing the pass.
	TestFilePath string `json:"test_file_path"`

	// Threads is the worker count handed to the compute backend. The
	// prober itself stays single-threaded.
	Threads int `json:"threads"`

	// MatrixDim is the square matmul dimension for FLOPS probes.
	MatrixDim int `json:"matrix_dim"`

	// MemoryProbeBytes is the memory-bandwidth buffer size.
	MemoryProbeBytes int `json:"memory_probe_bytes"`

	// SeqBlockBytes and RndBlockBytes are the disk probe block sizes.
	SeqBlockBytes int64 `json:"seq_block_bytes"`
	RndBlockBytes int64 `json:"rnd_block_bytes"`
}

// Normalize populates defaults and clamps ranges.
func (c *Config) Normalize() {
	if c.Threads < 1 {
		c.Threads = runtime.NumCPU()
	}

	if c.MatrixDim == 0 {
		c.MatrixDim = defaultMatrixDim
	} else if c.MatrixDim < minMatrixDim {
		c.MatrixDim = minMatrixDim
	} else if c.MatrixDim > maxMatrixDim {
		c.MatrixDim = maxMatrixDim
	}

	if c.MemoryProbeBytes <= 0 {
		c.MemoryProbeBytes = bench.DefaultMemoryProbeBytes
	}

	if c.SeqBlockBytes <= 0 || c.SeqBlockBytes > bench.DiskTestBudgetBytes {
		c.SeqBlockBytes = bench.DiskSeqBlockBytes
	}

	if c.RndBlockBytes <= 0 || c.RndBlockBytes > bench.DiskTestBudgetBytes {
		c.RndBlockBytes = bench.DiskRndBlockBytes
	}
}
