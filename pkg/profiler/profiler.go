// Package profiler populates a DeviceProfile from OS queries, benchmark
// primitives, and the compute backend. Every measurement degrades to the
// zero sentinel on failure; no failure aborts the pass.
package profiler

import (
	"context"
	"os"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/infermesh/profiler/pkg/bench"
	"github.com/infermesh/profiler/pkg/compute"
	"github.com/infermesh/profiler/pkg/logger"
	"github.com/infermesh/profiler/pkg/models"
)

const bytesPerGiB = 1 << 30

type probeDeps struct {
	countsWithContext func(context.Context, bool) (int, error)
	virtualMemory     func(context.Context) (*mem.VirtualMemoryStat, error)
	swapMemory        func(context.Context) (*mem.SwapMemoryStat, error)
	hostname          func() (string, error)
	diskRead          func(string, int64) (bench.Measurement, error)
	diskWrite         func(string, int64) (bench.Measurement, error)
	memoryBandwidth   func(int) (float64, error)
}

type option func(*probeDeps)

func defaultDeps() probeDeps {
	return probeDeps{
		countsWithContext: cpu.CountsWithContext,
		virtualMemory:     mem.VirtualMemoryWithContext,
		swapMemory:        mem.SwapMemoryWithContext,
		hostname:          os.Hostname,
		diskRead:          bench.DiskRead,
		diskWrite:         bench.DiskWrite,
		memoryBandwidth:   bench.MemoryBandwidth,
	}
}

// Prober assembles DeviceProfiles. It holds no shared mutable state; each
// Profile call produces an independent, exclusively-owned record.
type Prober struct {
	cfg     Config
	backend compute.Backend
	log     logger.Logger
	deps    probeDeps
}

// New creates a Prober. The config is normalized in place.
func New(cfg Config, backend compute.Backend, log logger.Logger, opts ...option) *Prober {
	cfg.Normalize()

	deps := defaultDeps()
	for _, opt := range opts {
		opt(&deps)
	}

	return &Prober{
		cfg:     cfg,
		backend: backend,
		log:     log,
		deps:    deps,
	}
}

// CPUCores returns the logical core count, falling back to 1 when the
// platform query fails. Never 0.
func (p *Prober) CPUCores(ctx context.Context) uint32 {
	count, err := p.deps.countsWithContext(ctx, true)
	if err != nil || count < 1 {
		p.log.Warn().Err(err).Msg("cpu core count query failed; defaulting to 1")
		return 1
	}

	return uint32(count)
}

// PhysicalMemory returns total or currently available physical memory in
// bytes; 0 on platform failure.
func (p *Prober) PhysicalMemory(ctx context.Context, available bool) uint64 {
	vmStats, err := p.deps.virtualMemory(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("physical memory query failed")
		return 0
	}

	if available {
		return vmStats.Available
	}

	return vmStats.Total
}

// SwapMemory returns total or free swap in bytes; 0 on platform failure.
func (p *Prober) SwapMemory(ctx context.Context, available bool) uint64 {
	swapStats, err := p.deps.swapMemory(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("swap memory query failed")
		return 0
	}

	if available {
		return swapStats.Free
	}

	return swapStats.Total
}

// DeviceName returns the hostname as a freshly allocated string; empty on
// failure.
func (p *Prober) DeviceName() string {
	name, err := p.deps.hostname()
	if err != nil {
		p.log.Warn().Err(err).Msg("hostname query failed")
		return ""
	}

	return name
}

// DiskBandwidth runs the sequential and random disk probes for both read
// and write conditions. Without a test file every figure is the zero
// sentinel.
func (p *Prober) DiskBandwidth() models.DiskBandwidth {
	var disk models.DiskBandwidth

	if p.cfg.TestFilePath == "" {
		p.log.Debug().Msg("no disk test file configured; disk bandwidth unmeasured")
		return disk
	}

	disk.ReadSeqGBps = p.diskProbe(p.deps.diskRead, "disk seq read", p.cfg.SeqBlockBytes)
	disk.WriteSeqGBps = p.diskProbe(p.deps.diskWrite, "disk seq write", p.cfg.SeqBlockBytes)
	disk.ReadRndGBps = p.diskProbe(p.deps.diskRead, "disk rnd read", p.cfg.RndBlockBytes)
	disk.WriteRndGBps = p.diskProbe(p.deps.diskWrite, "disk rnd write", p.cfg.RndBlockBytes)

	return disk
}

func (p *Prober) diskProbe(probe func(string, int64) (bench.Measurement, error), name string, block int64) float32 {
	m, err := probe(p.cfg.TestFilePath, block)
	if err != nil {
		p.log.Warn().Err(err).Str("probe", name).Msg("disk probe failed")
		return 0
	}

	return float32(m.GBps())
}

// MemoryBandwidth measures host memory throughput in GB/s. The thread count
// is accepted for future parallel variants; the baseline measurement is
// single-threaded.
func (p *Prober) MemoryBandwidth(_ int) float32 {
	gbps, err := p.deps.memoryBandwidth(p.cfg.MemoryProbeBytes)
	if err != nil {
		p.log.Warn().Err(err).Msg("memory bandwidth probe failed")
		return 0
	}

	return float32(gbps)
}

// CPUFlops measures CPU GFLOPS for the given type pair by delegating a
// representative matmul to the backend.
func (p *Prober) CPUFlops(ctx context.Context, pair models.TypePair, threads int) float32 {
	return p.matmulGFlops(ctx, pair, threads)
}

// BackendFlops measures accelerator GFLOPS for the given type pair. The
// backend owns its internal parallelism.
func (p *Prober) BackendFlops(ctx context.Context, pair models.TypePair) float32 {
	return p.matmulGFlops(ctx, pair, 1)
}

func (p *Prober) matmulGFlops(ctx context.Context, pair models.TypePair, threads int) float32 {
	elapsed, err := p.backend.MatMulElapsed(ctx, pair, p.cfg.MatrixDim, threads)
	if err != nil {
		p.log.Warn().Err(err).Str("type_pair", pair.String()).Msg("matmul probe failed")
		return 0
	}

	return float32(compute.GFlops(compute.MatMulFlops(p.cfg.MatrixDim), elapsed))
}

// VRAMReadBandwidth measures accelerator memory throughput; 0 when no
// backend device memory is present.
func (p *Prober) VRAMReadBandwidth(ctx context.Context) float32 {
	gbps, err := p.backend.VRAMReadBandwidth(ctx)
	if err != nil {
		p.log.Debug().Err(err).Msg("vram bandwidth unavailable")
		return 0
	}

	return float32(gbps)
}

// CapabilityFlags queries backend presence for each of the seven supported
// accelerator families. The flags are orthogonal booleans.
func (p *Prober) CapabilityFlags() models.GPUSupport {
	return models.GPUSupport{
		Metal:   p.backend.Supports(models.BackendMetal),
		CUDA:    p.backend.Supports(models.BackendCUDA),
		Vulkan:  p.backend.Supports(models.BackendVulkan),
		Kompute: p.backend.Supports(models.BackendKompute),
		GPUBLAS: p.backend.Supports(models.BackendGPUBLAS),
		BLAS:    p.backend.Supports(models.BackendBLAS),
		SYCL:    p.backend.Supports(models.BackendSYCL),
	}
}

// DeviceProps queries the backend for a device description; a zero value on
// failure.
func (p *Prober) DeviceProps(ctx context.Context, device int) compute.DeviceProps {
	props, err := p.backend.DeviceProps(ctx, device)
	if err != nil {
		p.log.Debug().Err(err).Int("device", device).Msg("device properties unavailable")
		return compute.DeviceProps{}
	}

	return props
}

// Profile runs the full profiling pass and assembles the DeviceProfile for
// the given rank. The per-model compute-estimate and parameter-footprint
// records are filled in by the model analyzer, not here.
func (p *Prober) Profile(ctx context.Context, rank uint32) *models.DeviceProfile {
	profile := models.NewDeviceProfile(rank)

	profile.DeviceName = p.DeviceName()

	cpuProps := p.DeviceProps(ctx, compute.CPUDevice)
	profile.CPU.Name = cpuProps.Name
	profile.CPU.Description = cpuProps.Description
	profile.CPU.Cores = p.CPUCores(ctx)

	for _, pair := range models.TypePairs() {
		profile.CPU.Flops.Set(pair, p.CPUFlops(ctx, pair, p.cfg.Threads))
	}

	profile.Memory = models.MemoryCapacity{
		TotalPhysicalGiB:     bytesToGiB(p.PhysicalMemory(ctx, false)),
		AvailablePhysicalGiB: bytesToGiB(p.PhysicalMemory(ctx, true)),
		TotalSwapGiB:         bytesToGiB(p.SwapMemory(ctx, false)),
		AvailableSwapGiB:     bytesToGiB(p.SwapMemory(ctx, true)),
		BandwidthGBps:        p.MemoryBandwidth(p.cfg.Threads),
	}

	profile.Disk = p.DiskBandwidth()
	profile.GPUSupport = p.CapabilityFlags()

	if profile.GPUSupport.Metal || profile.GPUSupport.CUDA {
		gpuProps := p.DeviceProps(ctx, 0)
		profile.GPU.Name = gpuProps.Name
		profile.GPU.Description = gpuProps.Description
		profile.GPU.FreeGiB = bytesToGiB(gpuProps.MemoryFreeBytes)
		profile.GPU.TotalGiB = bytesToGiB(gpuProps.MemoryTotalBytes)

		throughput := models.BackendThroughput{
			VRAMReadGBps: p.VRAMReadBandwidth(ctx),
		}
		for _, pair := range models.TypePairs() {
			throughput.Flops.Set(pair, p.BackendFlops(ctx, pair))
		}

		if profile.GPUSupport.Metal {
			profile.GPU.Metal = throughput
		}

		if profile.GPUSupport.CUDA {
			profile.GPU.CUDA = throughput
		}
	}

	p.log.Info().
		Uint32("rank", rank).
		Str("capture_id", profile.CaptureID).
		Str("device", profile.DeviceName).
		Uint32("cores", profile.CPU.Cores).
		Msg("profiling pass complete")

	return profile
}

func bytesToGiB(b uint64) float32 {
	return float32(float64(b) / bytesPerGiB)
}
