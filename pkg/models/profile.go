// Package models defines the device capability record exchanged between
// nodes of a distributed inference group.
package models

import "github.com/google/uuid"

// TypePair identifies the operand/accumulator format combination of a
// representative tensor operation. The five categories below are a fixed
// layout: the CPU, GPU, compute-estimate, and parameter-footprint records
// all index by it, and the wire format writes them in this order.
type TypePair int

const (
	TypePairF32F32 TypePair = iota // full precision x full precision
	TypePairF16F32                 // half precision x full precision
	TypePairQ4KF32                 // 4-bit K-quantized x full precision
	TypePairQ6KF32                 // 6-bit K-quantized x full precision
	TypePairQ80F32                 // 8-bit quantized x full precision

	// NumTypePairs is the size of the fixed category layout.
	NumTypePairs = 5
)

func (p TypePair) String() string {
	switch p {
	case TypePairF32F32:
		return "f32_f32"
	case TypePairF16F32:
		return "f16_f32"
	case TypePairQ4KF32:
		return "q4k_f32"
	case TypePairQ6KF32:
		return "q6k_f32"
	case TypePairQ80F32:
		return "q80_f32"
	default:
		return "unknown"
	}
}

// TypePairs lists all categories in wire order.
func TypePairs() [NumTypePairs]TypePair {
	return [NumTypePairs]TypePair{
		TypePairF32F32, TypePairF16F32, TypePairQ4KF32, TypePairQ6KF32, TypePairQ80F32,
	}
}

// BackendFamily names one acceleration backend family. The seven support
// flags are orthogonal booleans, not mutually exclusive.
type BackendFamily string

const (
	BackendMetal   BackendFamily = "metal"
	BackendCUDA    BackendFamily = "cuda"
	BackendVulkan  BackendFamily = "vulkan"
	BackendKompute BackendFamily = "kompute"
	BackendGPUBLAS BackendFamily = "gpublas"
	BackendBLAS    BackendFamily = "blas"
	BackendSYCL    BackendFamily = "sycl"
)

// FlopsEstimate holds measured GFLOPS per type-pair category. Zero means
// unmeasured or unsupported, never negative.
type FlopsEstimate struct {
	F32F32 float32 `json:"f32_f32"`
	F16F32 float32 `json:"f16_f32"`
	Q4KF32 float32 `json:"q4k_f32"`
	Q6KF32 float32 `json:"q6k_f32"`
	Q80F32 float32 `json:"q80_f32"`
}

// Get returns the estimate for the given category.
func (f *FlopsEstimate) Get(pair TypePair) float32 {
	switch pair {
	case TypePairF32F32:
		return f.F32F32
	case TypePairF16F32:
		return f.F16F32
	case TypePairQ4KF32:
		return f.Q4KF32
	case TypePairQ6KF32:
		return f.Q6KF32
	case TypePairQ80F32:
		return f.Q80F32
	default:
		return 0
	}
}

// Set stores the estimate for the given category. Unknown categories are
// ignored rather than panicking; a profiling pass never aborts.
func (f *FlopsEstimate) Set(pair TypePair, gflops float32) {
	switch pair {
	case TypePairF32F32:
		f.F32F32 = gflops
	case TypePairF16F32:
		f.F16F32 = gflops
	case TypePairQ4KF32:
		f.Q4KF32 = gflops
	case TypePairQ6KF32:
		f.Q6KF32 = gflops
	case TypePairQ80F32:
		f.Q80F32 = gflops
	}
}

// DiskBandwidth carries the four disk throughput figures in GB/s.
type DiskBandwidth struct {
	ReadSeqGBps  float32 `json:"read_seq_gbps"`
	WriteSeqGBps float32 `json:"write_seq_gbps"`
	ReadRndGBps  float32 `json:"read_rnd_gbps"`
	WriteRndGBps float32 `json:"write_rnd_gbps"`
}

// CPUCapability describes the host CPU and its measured throughput.
type CPUCapability struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Cores       uint32        `json:"cores"`
	Flops       FlopsEstimate `json:"flops"`
}

// MemoryCapacity carries host memory sizing in GiB and measured memory
// bandwidth in GB/s.
type MemoryCapacity struct {
	TotalPhysicalGiB     float32 `json:"total_physical_gib"`
	AvailablePhysicalGiB float32 `json:"available_physical_gib"`
	TotalSwapGiB         float32 `json:"total_swap_gib"`
	AvailableSwapGiB     float32 `json:"available_swap_gib"`
	BandwidthGBps        float32 `json:"bandwidth_gbps"`
}

// GPUSupport holds the seven independent acceleration capability flags.
type GPUSupport struct {
	Metal   bool `json:"metal"`
	CUDA    bool `json:"cuda"`
	Vulkan  bool `json:"vulkan"`
	Kompute bool `json:"kompute"`
	GPUBLAS bool `json:"gpublas"`
	BLAS    bool `json:"blas"`
	SYCL    bool `json:"sycl"`
}

// BackendThroughput holds per-backend VRAM bandwidth and FLOPS estimates,
// populated only for backends actually present on the node.
type BackendThroughput struct {
	VRAMReadGBps float32       `json:"vram_read_gbps"`
	Flops        FlopsEstimate `json:"flops"`
}

// GPUCapability describes the accelerator device, if any.
type GPUCapability struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	FreeGiB     float32           `json:"free_gib"`
	TotalGiB    float32           `json:"total_gib"`
	Metal       BackendThroughput `json:"metal"`
	CUDA        BackendThroughput `json:"cuda"`
}

// OpCount holds per-category int64 counts (FLOPs or elements).
type OpCount struct {
	F32F32 int64 `json:"f32_f32"`
	F16F32 int64 `json:"f16_f32"`
	Q4KF32 int64 `json:"q4k_f32"`
	Q6KF32 int64 `json:"q6k_f32"`
	Q80F32 int64 `json:"q80_f32"`
}

// ComputeEstimate is the per-model FLOP cost breakdown: one transformer
// layer and the output projection, per category, plus the input embedding
// stage latency.
type ComputeEstimate struct {
	InputEmbedMs float32 `json:"input_embed_ms"`
	Output       OpCount `json:"output"`
	Layer        OpCount `json:"layer"`
}

// ParameterFootprint counts tensor elements per role and category, used
// downstream to estimate memory/storage cost per quantization scheme.
type ParameterFootprint struct {
	Input  OpCount `json:"input"`
	Output OpCount `json:"output"`
	Layer  OpCount `json:"layer"`
}

// DeviceProfile is the capability record for one participating node. It is
// built once per profiling pass, optionally serialized and sent to a
// coordinator, and consumed read-only after decode.
type DeviceProfile struct {
	// Rank is this node's position in the distributed group. Assigned
	// externally, immutable after creation; uniqueness is the placement
	// layer's concern.
	Rank uint32 `json:"rank"`

	// CaptureID distinguishes successive profiling runs of the same rank.
	CaptureID string `json:"capture_id"`

	DeviceName string             `json:"device_name"`
	Disk       DiskBandwidth      `json:"disk"`
	CPU        CPUCapability      `json:"cpu"`
	Memory     MemoryCapacity     `json:"memory"`
	GPUSupport GPUSupport         `json:"gpu_support"`
	GPU        GPUCapability      `json:"gpu"`
	Estimate   ComputeEstimate    `json:"model_flops"`
	Params     ParameterFootprint `json:"model_params"`
}

// NewDeviceProfile returns an empty profile for the given rank with a fresh
// capture ID. All capability fields start at the zero sentinel.
func NewDeviceProfile(rank uint32) *DeviceProfile {
	return &DeviceProfile{
		Rank:      rank,
		CaptureID: uuid.New().String(),
	}
}
