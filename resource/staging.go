package resource

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/gpu"
)

const hostCoherent = gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent

func (a *Allocator) staging(data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("upload of zero bytes")
	}

	staging, err := a.CreateBuffer(len(data), gpu.BufferUsageTransferSrc, hostCoherent)
	if err != nil {
		return nil, errors.Wrap(err, "create staging buffer")
	}

	mapped, err := a.device.MapMemory(staging.Memory, 0, len(data))
	if err != nil {
		staging.Destroy()
		return nil, errors.Wrap(err, "map staging memory")
	}
	copy(mapped, data)
	a.device.UnmapMemory(staging.Memory)

	return staging, nil
}

// UploadViaStaging creates a device-local buffer with usage|TransferDst and
// fills it with data through a host-visible staging buffer.
func (a *Allocator) UploadViaStaging(data []byte, usage gpu.BufferUsageFlags) (*Buffer, error) {
	staging, err := a.staging(data)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	dst, err := a.CreateBuffer(len(data), usage|gpu.BufferUsageTransferDst, gpu.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, err
	}

	if err := a.CopyBuffer(staging, dst, len(data)); err != nil {
		dst.Destroy()
		return nil, err
	}
	return dst, nil
}

// Update overwrites the start of an existing device-local buffer with data.
// It blocks on the transfer queue just like the initial upload.
func (a *Allocator) Update(dst *Buffer, data []byte) error {
	if len(data) > dst.Size {
		return errors.Newf("update of %d bytes into a %d byte buffer", len(data), dst.Size)
	}

	staging, err := a.staging(data)
	if err != nil {
		return err
	}
	defer staging.Destroy()

	return a.CopyBuffer(staging, dst, len(data))
}

// Download reads back the first size bytes of a device-local buffer created
// with TransferSrc usage.
func (a *Allocator) Download(src *Buffer, size int) ([]byte, error) {
	if size > src.Size {
		return nil, errors.Newf("download of %d bytes from a %d byte buffer", size, src.Size)
	}

	readback, err := a.CreateBuffer(size, gpu.BufferUsageTransferDst, hostCoherent)
	if err != nil {
		return nil, errors.Wrap(err, "create readback buffer")
	}
	defer readback.Destroy()

	if err := a.CopyBuffer(src, readback, size); err != nil {
		return nil, err
	}

	mapped, err := a.device.MapMemory(readback.Memory, 0, size)
	if err != nil {
		return nil, errors.Wrap(err, "map readback memory")
	}
	out := append([]byte(nil), mapped...)
	a.device.UnmapMemory(readback.Memory)

	return out, nil
}
