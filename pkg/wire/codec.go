package wire

import (
	"github.com/infermesh/profiler/pkg/models"
)

// Legacy layout, field order fixed:
//
//	rank u32
//	deviceName, cpuName, cpuDescription, gpuName, gpuDescription (prefixed strings)
//	disk seq-read bandwidth f32
//	cpu core count u32
//	memory record: total phys, avail phys, total swap, avail swap, bandwidth (5 x f32)
//	gpu support flags: metal, cuda, vulkan, kompute, gpublas, blas, sycl (7 x u8)
//	gpu free memory f32
//	gpu total memory f32
const (
	memoryRecordBytes = 5 * 4
	gpuSupportBytes   = 7

	legacyFixedBytes = 4 + 4 + 4 + memoryRecordBytes + gpuSupportBytes + 4 + 4
)

// Extended layout: header, the legacy body, then the fields the legacy
// format omits (capture ID, remaining disk figures, per-type FLOPS, the
// compute estimate, and the parameter footprint).
const (
	extVersion = 0x02
	extMagic   = "DPRF"
)

const (
	flopsEstimateBytes = 5 * 4
	opCountBytes       = 5 * 8

	extExtraFixedBytes = len(extMagic) + 1 + // header
		3*4 + // write-seq, read-rnd, write-rnd disk figures
		flopsEstimateBytes + // cpu flops
		2*(4+flopsEstimateBytes) + // metal and cuda throughput blocks
		4 + 2*opCountBytes + // compute estimate
		3*opCountBytes // parameter footprint
)

func legacySize(p *models.DeviceProfile) int {
	return legacyFixedBytes +
		stringWireSize(p.DeviceName) +
		stringWireSize(p.CPU.Name) +
		stringWireSize(p.CPU.Description) +
		stringWireSize(p.GPU.Name) +
		stringWireSize(p.GPU.Description)
}

// Encode serializes the profile's summary fields in the legacy layout. The
// buffer is exactly sized; there are no padding gaps.
func Encode(p *models.DeviceProfile) []byte {
	w := newWriter(legacySize(p))
	encodeLegacyBody(w, p)

	return w.bytes()
}

func encodeLegacyBody(w *writer, p *models.DeviceProfile) {
	w.putUint32(p.Rank)

	w.putString(p.DeviceName)
	w.putString(p.CPU.Name)
	w.putString(p.CPU.Description)
	w.putString(p.GPU.Name)
	w.putString(p.GPU.Description)

	w.putFloat32(p.Disk.ReadSeqGBps)
	w.putUint32(p.CPU.Cores)

	w.putFloat32(p.Memory.TotalPhysicalGiB)
	w.putFloat32(p.Memory.AvailablePhysicalGiB)
	w.putFloat32(p.Memory.TotalSwapGiB)
	w.putFloat32(p.Memory.AvailableSwapGiB)
	w.putFloat32(p.Memory.BandwidthGBps)

	w.putBool(p.GPUSupport.Metal)
	w.putBool(p.GPUSupport.CUDA)
	w.putBool(p.GPUSupport.Vulkan)
	w.putBool(p.GPUSupport.Kompute)
	w.putBool(p.GPUSupport.GPUBLAS)
	w.putBool(p.GPUSupport.BLAS)
	w.putBool(p.GPUSupport.SYCL)

	w.putFloat32(p.GPU.FreeGiB)
	w.putFloat32(p.GPU.TotalGiB)
}

// Decode reconstructs a profile from a legacy-layout buffer. Decoded
// strings are fresh allocations owned by the returned record. The whole
// buffer must be consumed; truncated or oversized buffers are errors.
func Decode(buf []byte) (*models.DeviceProfile, error) {
	r := newReader(buf)

	p, err := decodeLegacyBody(r)
	if err != nil {
		return nil, err
	}

	if err := r.done(); err != nil {
		return nil, err
	}

	return p, nil
}

func decodeLegacyBody(r *reader) (*models.DeviceProfile, error) {
	p := &models.DeviceProfile{}

	var err error

	if p.Rank, err = r.uint32(); err != nil {
		return nil, err
	}

	for _, dst := range []*string{
		&p.DeviceName, &p.CPU.Name, &p.CPU.Description, &p.GPU.Name, &p.GPU.Description,
	} {
		if *dst, err = r.string(); err != nil {
			return nil, err
		}
	}

	if p.Disk.ReadSeqGBps, err = r.float32(); err != nil {
		return nil, err
	}

	if p.CPU.Cores, err = r.uint32(); err != nil {
		return nil, err
	}

	for _, dst := range []*float32{
		&p.Memory.TotalPhysicalGiB, &p.Memory.AvailablePhysicalGiB,
		&p.Memory.TotalSwapGiB, &p.Memory.AvailableSwapGiB, &p.Memory.BandwidthGBps,
	} {
		if *dst, err = r.float32(); err != nil {
			return nil, err
		}
	}

	for _, dst := range []*bool{
		&p.GPUSupport.Metal, &p.GPUSupport.CUDA, &p.GPUSupport.Vulkan,
		&p.GPUSupport.Kompute, &p.GPUSupport.GPUBLAS, &p.GPUSupport.BLAS, &p.GPUSupport.SYCL,
	} {
		if *dst, err = r.bool(); err != nil {
			return nil, err
		}
	}

	if p.GPU.FreeGiB, err = r.float32(); err != nil {
		return nil, err
	}

	if p.GPU.TotalGiB, err = r.float32(); err != nil {
		return nil, err
	}

	return p, nil
}

// EncodeFull serializes the complete profile, including the per-type FLOPS
// and parameter-footprint records the legacy layout omits.
func EncodeFull(p *models.DeviceProfile) []byte {
	size := extExtraFixedBytes + legacySize(p) + stringWireSize(p.CaptureID)

	w := newWriter(size)

	copy(w.buf, extMagic)
	w.off += len(extMagic)
	w.buf[w.off] = extVersion
	w.off++

	encodeLegacyBody(w, p)

	w.putString(p.CaptureID)

	w.putFloat32(p.Disk.WriteSeqGBps)
	w.putFloat32(p.Disk.ReadRndGBps)
	w.putFloat32(p.Disk.WriteRndGBps)

	encodeFlops(w, &p.CPU.Flops)

	w.putFloat32(p.GPU.Metal.VRAMReadGBps)
	encodeFlops(w, &p.GPU.Metal.Flops)
	w.putFloat32(p.GPU.CUDA.VRAMReadGBps)
	encodeFlops(w, &p.GPU.CUDA.Flops)

	w.putFloat32(p.Estimate.InputEmbedMs)
	encodeOpCount(w, &p.Estimate.Output)
	encodeOpCount(w, &p.Estimate.Layer)

	encodeOpCount(w, &p.Params.Input)
	encodeOpCount(w, &p.Params.Output)
	encodeOpCount(w, &p.Params.Layer)

	return w.bytes()
}

// DecodeFull reconstructs a profile from an extended-layout buffer.
func DecodeFull(buf []byte) (*models.DeviceProfile, error) {
	r := newReader(buf)

	if err := r.expect(extMagic); err != nil {
		return nil, err
	}

	if err := r.need(1); err != nil {
		return nil, err
	}

	if version := r.buf[r.off]; version != extVersion {
		return nil, &UnknownVersionError{Version: version}
	}

	r.off++

	p, err := decodeLegacyBody(r)
	if err != nil {
		return nil, err
	}

	if p.CaptureID, err = r.string(); err != nil {
		return nil, err
	}

	for _, dst := range []*float32{&p.Disk.WriteSeqGBps, &p.Disk.ReadRndGBps, &p.Disk.WriteRndGBps} {
		if *dst, err = r.float32(); err != nil {
			return nil, err
		}
	}

	if err = decodeFlops(r, &p.CPU.Flops); err != nil {
		return nil, err
	}

	if p.GPU.Metal.VRAMReadGBps, err = r.float32(); err != nil {
		return nil, err
	}

	if err = decodeFlops(r, &p.GPU.Metal.Flops); err != nil {
		return nil, err
	}

	if p.GPU.CUDA.VRAMReadGBps, err = r.float32(); err != nil {
		return nil, err
	}

	if err = decodeFlops(r, &p.GPU.CUDA.Flops); err != nil {
		return nil, err
	}

	if p.Estimate.InputEmbedMs, err = r.float32(); err != nil {
		return nil, err
	}

	for _, dst := range []*models.OpCount{
		&p.Estimate.Output, &p.Estimate.Layer,
		&p.Params.Input, &p.Params.Output, &p.Params.Layer,
	} {
		if err = decodeOpCount(r, dst); err != nil {
			return nil, err
		}
	}

	if err := r.done(); err != nil {
		return nil, err
	}

	return p, nil
}

func encodeFlops(w *writer, f *models.FlopsEstimate) {
	w.putFloat32(f.F32F32)
	w.putFloat32(f.F16F32)
	w.putFloat32(f.Q4KF32)
	w.putFloat32(f.Q6KF32)
	w.putFloat32(f.Q80F32)
}

func decodeFlops(r *reader, f *models.FlopsEstimate) error {
	for _, dst := range []*float32{&f.F32F32, &f.F16F32, &f.Q4KF32, &f.Q6KF32, &f.Q80F32} {
		var err error
		if *dst, err = r.float32(); err != nil {
			return err
		}
	}

	return nil
}

func encodeOpCount(w *writer, c *models.OpCount) {
	w.putInt64(c.F32F32)
	w.putInt64(c.F16F32)
	w.putInt64(c.Q4KF32)
	w.putInt64(c.Q6KF32)
	w.putInt64(c.Q80F32)
}

func decodeOpCount(r *reader, c *models.OpCount) error {
	for _, dst := range []*int64{&c.F32F32, &c.F16F32, &c.Q4KF32, &c.Q6KF32, &c.Q80F32} {
		var err error
		if *dst, err = r.int64(); err != nil {
			return err
		}
	}

	return nil
}
