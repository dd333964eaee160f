package renderer

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/vkngwrapper/frameloop/gpu"
)

// UniformBufferObject is the vertex shader's binding 0. Matrices are column
// major, as GLSL expects.
type UniformBufferObject struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

var uniformSize = int(unsafe.Sizeof(UniformBufferObject{}))

// NewUniformBufferObject turns the model a quarter turn about Z per second
// and looks at it from (2,2,2) with a 45 degree field of view.
func NewUniformBufferObject(elapsed time.Duration, extent gpu.Extent2D) UniformBufferObject {
	period := math.Mod(elapsed.Seconds(), 4.0)

	ubo := UniformBufferObject{
		Model: mgl32.HomogRotate3DZ(float32(period * math.Pi / 2.0)),
		View: mgl32.LookAtV(
			mgl32.Vec3{2, 2, 2},
			mgl32.Vec3{0, 0, 0},
			mgl32.Vec3{0, 0, 1},
		),
	}

	aspectRatio := float32(1)
	if extent.Height > 0 {
		aspectRatio = float32(extent.Width) / float32(extent.Height)
	}
	ubo.Proj = mgl32.Perspective(mgl32.DegToRad(45), aspectRatio, 0.1, 10)
	// Clip space Y points down.
	ubo.Proj.Set(1, 1, -ubo.Proj.At(1, 1))

	return ubo
}

func (u UniformBufferObject) Bytes() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, &u); err != nil {
		return nil, errors.Wrap(err, "encode uniform buffer object")
	}
	return buf.Bytes(), nil
}
