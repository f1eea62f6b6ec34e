package profiler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/infermesh/profiler/pkg/bench"
	"github.com/infermesh/profiler/pkg/compute"
	"github.com/infermesh/profiler/pkg/logger"
	"github.com/infermesh/profiler/pkg/models"
)

var errProbe = errors.New("probe failure")

func withCounts(fn func(context.Context, bool) (int, error)) option {
	return func(d *probeDeps) {
		d.countsWithContext = fn
	}
}

func withVirtualMemory(fn func(context.Context) (*mem.VirtualMemoryStat, error)) option {
	return func(d *probeDeps) {
		d.virtualMemory = fn
	}
}

func withSwapMemory(fn func(context.Context) (*mem.SwapMemoryStat, error)) option {
	return func(d *probeDeps) {
		d.swapMemory = fn
	}
}

func withHostname(fn func() (string, error)) option {
	return func(d *probeDeps) {
		d.hostname = fn
	}
}

func withDiskRead(fn func(string, int64) (bench.Measurement, error)) option {
	return func(d *probeDeps) {
		d.diskRead = fn
	}
}

func withDiskWrite(fn func(string, int64) (bench.Measurement, error)) option {
	return func(d *probeDeps) {
		d.diskWrite = fn
	}
}

func withMemoryBandwidth(fn func(int) (float64, error)) option {
	return func(d *probeDeps) {
		d.memoryBandwidth = fn
	}
}

// stubBackend is a fixed-response compute backend for prober tests.
type stubBackend struct {
	families map[models.BackendFamily]bool
	elapsed  time.Duration
	matErr   error
	vramGBps float64
	vramErr  error
	props    compute.DeviceProps
	propsErr error
}

func (*stubBackend) Name() string { return "stub" }

func (s *stubBackend) Supports(family models.BackendFamily) bool {
	return s.families[family]
}

func (s *stubBackend) MatMulElapsed(context.Context, models.TypePair, int, int) (time.Duration, error) {
	return s.elapsed, s.matErr
}

func (s *stubBackend) VRAMReadBandwidth(context.Context) (float64, error) {
	return s.vramGBps, s.vramErr
}

func (s *stubBackend) DeviceProps(context.Context, int) (compute.DeviceProps, error) {
	return s.props, s.propsErr
}

func failingDeps() []option {
	return []option{
		withCounts(func(context.Context, bool) (int, error) { return 0, errProbe }),
		withVirtualMemory(func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, errProbe }),
		withSwapMemory(func(context.Context) (*mem.SwapMemoryStat, error) { return nil, errProbe }),
		withHostname(func() (string, error) { return "", errProbe }),
		withDiskRead(func(string, int64) (bench.Measurement, error) { return bench.Measurement{}, errProbe }),
		withDiskWrite(func(string, int64) (bench.Measurement, error) { return bench.Measurement{}, errProbe }),
		withMemoryBandwidth(func(int) (float64, error) { return 0, errProbe }),
	}
}

func TestCPUCoresFallsBackToOne(t *testing.T) {
	t.Parallel()

	p := New(Config{}, &stubBackend{}, logger.NewTestLogger(),
		withCounts(func(context.Context, bool) (int, error) { return 0, errProbe }))

	if got := p.CPUCores(context.Background()); got != 1 {
		t.Errorf("expected fallback core count 1, got %d", got)
	}
}

func TestCPUCoresNeverZero(t *testing.T) {
	t.Parallel()

	p := New(Config{}, &stubBackend{}, logger.NewTestLogger(),
		withCounts(func(context.Context, bool) (int, error) { return 0, nil }))

	if got := p.CPUCores(context.Background()); got != 1 {
		t.Errorf("expected 1 for zero-count platform answer, got %d", got)
	}
}

func TestMemoryQueriesZeroOnFailure(t *testing.T) {
	t.Parallel()

	p := New(Config{}, &stubBackend{}, logger.NewTestLogger(), failingDeps()...)

	ctx := context.Background()

	for _, available := range []bool{true, false} {
		if got := p.PhysicalMemory(ctx, available); got != 0 {
			t.Errorf("physical(available=%v): expected 0, got %d", available, got)
		}

		if got := p.SwapMemory(ctx, available); got != 0 {
			t.Errorf("swap(available=%v): expected 0, got %d", available, got)
		}
	}
}

func TestMemoryQueriesSelectQuantity(t *testing.T) {
	t.Parallel()

	p := New(Config{}, &stubBackend{}, logger.NewTestLogger(),
		withVirtualMemory(func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 16 << 30, Available: 8 << 30}, nil
		}),
		withSwapMemory(func(context.Context) (*mem.SwapMemoryStat, error) {
			return &mem.SwapMemoryStat{Total: 4 << 30, Free: 2 << 30}, nil
		}),
	)

	ctx := context.Background()

	if got := p.PhysicalMemory(ctx, false); got != 16<<30 {
		t.Errorf("expected total physical 16GiB, got %d", got)
	}

	if got := p.PhysicalMemory(ctx, true); got != 8<<30 {
		t.Errorf("expected available physical 8GiB, got %d", got)
	}

	if got := p.SwapMemory(ctx, false); got != 4<<30 {
		t.Errorf("expected total swap 4GiB, got %d", got)
	}

	if got := p.SwapMemory(ctx, true); got != 2<<30 {
		t.Errorf("expected free swap 2GiB, got %d", got)
	}
}

func TestDiskBandwidthWithoutFixture(t *testing.T) {
	t.Parallel()

	p := New(Config{}, &stubBackend{}, logger.NewTestLogger())

	if disk := p.DiskBandwidth(); disk != (models.DiskBandwidth{}) {
		t.Errorf("expected all-zero disk bandwidth without fixture, got %+v", disk)
	}
}

func TestDiskBandwidthUsesConfiguredBlocks(t *testing.T) {
	t.Parallel()

	var readBlocks, writeBlocks []int64

	p := New(Config{TestFilePath: "/tmp/fixture", SeqBlockBytes: 1 << 20, RndBlockBytes: 4096},
		&stubBackend{}, logger.NewTestLogger(),
		withDiskRead(func(_ string, block int64) (bench.Measurement, error) {
			readBlocks = append(readBlocks, block)
			return bench.Measurement{Bytes: block, Elapsed: time.Millisecond}, nil
		}),
		withDiskWrite(func(_ string, block int64) (bench.Measurement, error) {
			writeBlocks = append(writeBlocks, block)
			return bench.Measurement{Bytes: block, Elapsed: time.Millisecond}, nil
		}),
	)

	disk := p.DiskBandwidth()

	if disk.ReadSeqGBps <= 0 || disk.WriteSeqGBps <= 0 || disk.ReadRndGBps <= 0 || disk.WriteRndGBps <= 0 {
		t.Errorf("expected positive figures, got %+v", disk)
	}

	if len(readBlocks) != 2 || readBlocks[0] != 1<<20 || readBlocks[1] != 4096 {
		t.Errorf("unexpected read block sequence %v", readBlocks)
	}

	if len(writeBlocks) != 2 || writeBlocks[0] != 1<<20 || writeBlocks[1] != 4096 {
		t.Errorf("unexpected write block sequence %v", writeBlocks)
	}
}

func TestCPUFlopsDerivation(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{elapsed: time.Second}

	p := New(Config{MatrixDim: 100}, backend, logger.NewTestLogger())

	// 2 * 100^3 flops over one second = 0.002 GFLOPS.
	got := p.CPUFlops(context.Background(), models.TypePairF32F32, 4)
	if got != 0.002 {
		t.Errorf("expected 0.002 GFLOPS, got %f", got)
	}
}

func TestFlopsZeroOnBackendFailure(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{matErr: errProbe, vramErr: errProbe}

	p := New(Config{}, backend, logger.NewTestLogger())

	if got := p.CPUFlops(context.Background(), models.TypePairQ6KF32, 2); got != 0 {
		t.Errorf("expected zero sentinel, got %f", got)
	}

	if got := p.BackendFlops(context.Background(), models.TypePairQ6KF32); got != 0 {
		t.Errorf("expected zero sentinel, got %f", got)
	}

	if got := p.VRAMReadBandwidth(context.Background()); got != 0 {
		t.Errorf("expected zero sentinel, got %f", got)
	}
}

func TestCapabilityFlagsIdempotent(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{families: map[models.BackendFamily]bool{
		models.BackendCUDA: true,
		models.BackendBLAS: true,
	}}

	p := New(Config{}, backend, logger.NewTestLogger())

	first := p.CapabilityFlags()
	second := p.CapabilityFlags()

	if first != second {
		t.Errorf("capability flags changed between calls: %+v vs %+v", first, second)
	}

	if !first.CUDA || !first.BLAS {
		t.Errorf("expected cuda and blas set, got %+v", first)
	}

	if first.Metal || first.Vulkan || first.Kompute || first.GPUBLAS || first.SYCL {
		t.Errorf("unexpected flags set: %+v", first)
	}
}

func TestProfileAllFailuresStillValid(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{matErr: errProbe, vramErr: errProbe, propsErr: errProbe}

	p := New(Config{}, backend, logger.NewTestLogger(), failingDeps()...)

	profile := p.Profile(context.Background(), 7)

	if profile.Rank != 7 {
		t.Errorf("expected rank 7, got %d", profile.Rank)
	}

	if profile.CaptureID == "" {
		t.Error("expected capture ID even on a degraded pass")
	}

	if profile.DeviceName != "" {
		t.Errorf("expected empty device name, got %q", profile.DeviceName)
	}

	// Cores is the one field whose failure sentinel is 1, not 0.
	if profile.CPU.Cores != 1 {
		t.Errorf("expected core fallback 1, got %d", profile.CPU.Cores)
	}

	if profile.Memory != (models.MemoryCapacity{}) {
		t.Errorf("expected zeroed memory record, got %+v", profile.Memory)
	}

	if profile.Disk != (models.DiskBandwidth{}) {
		t.Errorf("expected zeroed disk record, got %+v", profile.Disk)
	}

	if profile.CPU.Flops != (models.FlopsEstimate{}) {
		t.Errorf("expected zeroed cpu flops, got %+v", profile.CPU.Flops)
	}
}

func TestProfileAssemblesFields(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{
		families: map[models.BackendFamily]bool{models.BackendCUDA: true},
		elapsed:  time.Second,
		vramGBps: 500,
		props: compute.DeviceProps{
			Name:             "TestDevice",
			Description:      "test",
			MemoryFreeBytes:  2 << 30,
			MemoryTotalBytes: 8 << 30,
		},
	}

	p := New(Config{MatrixDim: 100}, backend, logger.NewTestLogger(),
		withCounts(func(context.Context, bool) (int, error) { return 8, nil }),
		withVirtualMemory(func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 16 << 30, Available: 12 << 30}, nil
		}),
		withSwapMemory(func(context.Context) (*mem.SwapMemoryStat, error) {
			return &mem.SwapMemoryStat{Total: 1 << 30, Free: 1 << 30}, nil
		}),
		withHostname(func() (string, error) { return "node-a", nil }),
		withMemoryBandwidth(func(int) (float64, error) { return 12.5, nil }),
	)

	profile := p.Profile(context.Background(), 3)

	if profile.DeviceName != "node-a" {
		t.Errorf("expected device name node-a, got %q", profile.DeviceName)
	}

	if profile.CPU.Cores != 8 {
		t.Errorf("expected 8 cores, got %d", profile.CPU.Cores)
	}

	if profile.Memory.TotalPhysicalGiB != 16 {
		t.Errorf("expected 16 GiB total, got %f", profile.Memory.TotalPhysicalGiB)
	}

	if profile.Memory.AvailablePhysicalGiB != 12 {
		t.Errorf("expected 12 GiB available, got %f", profile.Memory.AvailablePhysicalGiB)
	}

	if profile.Memory.BandwidthGBps != 12.5 {
		t.Errorf("expected 12.5 GB/s, got %f", profile.Memory.BandwidthGBps)
	}

	if !profile.GPUSupport.CUDA {
		t.Error("expected cuda flag set")
	}

	if profile.GPU.Name != "TestDevice" {
		t.Errorf("expected gpu name from backend, got %q", profile.GPU.Name)
	}

	if profile.GPU.FreeGiB != 2 || profile.GPU.TotalGiB != 8 {
		t.Errorf("unexpected vram sizing: free=%f total=%f", profile.GPU.FreeGiB, profile.GPU.TotalGiB)
	}

	if profile.GPU.CUDA.VRAMReadGBps != 500 {
		t.Errorf("expected 500 GB/s vram bandwidth, got %f", profile.GPU.CUDA.VRAMReadGBps)
	}

	if profile.GPU.CUDA.Flops.F32F32 != 0.002 {
		t.Errorf("expected 0.002 GFLOPS, got %f", profile.GPU.CUDA.Flops.F32F32)
	}

	// Metal is absent, so its throughput block stays zero.
	if profile.GPU.Metal != (models.BackendThroughput{}) {
		t.Errorf("expected zero metal block, got %+v", profile.GPU.Metal)
	}
}
