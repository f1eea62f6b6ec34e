// Package compute defines the contract with the compute backend that runs
// representative tensor operations for FLOPS estimation. Accelerator-backed
// implementations live outside this module; Local provides a pure-Go CPU
// fallback so a node without any accelerator stack can still be profiled.
package compute

import (
	"context"
	"errors"
	"time"

	"github.com/infermesh/profiler/pkg/models"
)

// ErrUnsupported is returned for operations or devices a backend does not
// implement. Callers map it to the zero sentinel.
var ErrUnsupported = errors.New("compute: unsupported by backend")

// CPUDevice is the conventional device index for the CPU backend.
const CPUDevice = -1

// DeviceProps is a backend device description keyed by device index.
type DeviceProps struct {
	Name             string
	Description      string
	MemoryFreeBytes  uint64
	MemoryTotalBytes uint64
}

// Backend executes representative operations and reports elapsed time and
// device properties. The profiler treats it as a black box: the contract is
// "run the op, tell me how long it took", never the kernel itself.
type Backend interface {
	Name() string

	// Supports reports whether the backend family is present. The seven
	// families are orthogonal; a backend may support several.
	Supports(family models.BackendFamily) bool

	// MatMulElapsed runs a dim x dim x dim matrix multiplication for the
	// given type pair using at most threads workers and returns the wall
	// time of the kernel alone (operand setup excluded).
	MatMulElapsed(ctx context.Context, pair models.TypePair, dim, threads int) (time.Duration, error)

	// VRAMReadBandwidth measures accelerator memory read throughput in
	// GB/s. Backends without device memory return ErrUnsupported.
	VRAMReadBandwidth(ctx context.Context) (float64, error)

	// DeviceProps describes the device at the given index; CPUDevice (-1)
	// denotes the CPU.
	DeviceProps(ctx context.Context, device int) (DeviceProps, error)
}

// MatMulFlops is the FLOP count of a dim x dim x dim multiplication.
func MatMulFlops(dim int) int64 {
	d := int64(dim)
	return 2 * d * d * d
}

// GFlops derives a GFLOPS figure from an operation size and its elapsed
// wall time. Zero elapsed yields the zero sentinel.
func GFlops(flops int64, elapsed time.Duration) float64 {
	if elapsed <= 0 || flops <= 0 {
		return 0
	}

	return float64(flops) / elapsed.Seconds() / 1e9
}
