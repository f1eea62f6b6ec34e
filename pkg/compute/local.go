package compute

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sync/errgroup"

	"github.com/infermesh/profiler/pkg/models"
)

var (
	errBadDimension = errors.New("compute: matrix dimension must be positive")

	cpuInfoWithContext       = cpu.InfoWithContext
	virtualMemoryWithContext = mem.VirtualMemoryWithContext
)

// Local is the pure-Go CPU backend. It runs a row-partitioned float32
// matmul across the requested number of goroutines. All type pairs execute
// the same f32 kernel: real backends dequantize operands on load, so the
// kernel shape is representative even when the storage format is not.
type Local struct{}

func NewLocal() *Local {
	return &Local{}
}

func (*Local) Name() string { return "cpu" }

// Supports reports false for every accelerator family: the local backend
// drives nothing but the host CPU.
func (*Local) Supports(_ models.BackendFamily) bool { return false }

func (*Local) MatMulElapsed(ctx context.Context, _ models.TypePair, dim, threads int) (time.Duration, error) {
	if dim <= 0 {
		return 0, errBadDimension
	}

	if threads < 1 {
		threads = 1
	}

	a := make([]float32, dim*dim)
	b := make([]float32, dim*dim)
	c := make([]float32, dim*dim)

	for i := range a {
		a[i] = float32(i%17) * 0.5
		b[i] = float32(i%13) * 0.25
	}

	rowsPerWorker := (dim + threads - 1) / threads

	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)

	for w := 0; w < threads; w++ {
		lo := w * rowsPerWorker
		hi := lo + rowsPerWorker

		if lo >= dim {
			break
		}

		if hi > dim {
			hi = dim
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			for i := lo; i < hi; i++ {
				for k := 0; k < dim; k++ {
					aik := a[i*dim+k]
					for j := 0; j < dim; j++ {
						c[i*dim+j] += aik * b[k*dim+j]
					}
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	return time.Since(start), nil
}

// VRAMReadBandwidth is unsupported: the local backend has no device memory.
func (*Local) VRAMReadBandwidth(_ context.Context) (float64, error) {
	return 0, ErrUnsupported
}

func (*Local) DeviceProps(ctx context.Context, device int) (DeviceProps, error) {
	if device != CPUDevice {
		return DeviceProps{}, fmt.Errorf("%w: device %d", ErrUnsupported, device)
	}

	props := DeviceProps{
		Name:        runtime.GOARCH,
		Description: runtime.GOOS + "/" + runtime.GOARCH,
	}

	if infos, err := cpuInfoWithContext(ctx); err == nil && len(infos) > 0 {
		if name := strings.TrimSpace(infos[0].ModelName); name != "" {
			props.Name = name
		}

		if infos[0].Mhz > 0 {
			props.Description = fmt.Sprintf("%s, %.0f MHz", props.Description, infos[0].Mhz)
		}
	}

	if vmStats, err := virtualMemoryWithContext(ctx); err == nil {
		props.MemoryFreeBytes = vmStats.Available
		props.MemoryTotalBytes = vmStats.Total
	}

	return props, nil
}
