// Package mesh holds the indexed geometry the renderer draws.
package mesh

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// Vertex matches the vertex shader's inputs: location 0 is the position,
// location 1 the color.
type Vertex struct {
	Position mgl32.Vec2
	Color    mgl32.Vec3
}

var layout Vertex

var (
	VertexStride   = int(unsafe.Sizeof(layout))
	PositionOffset = int(unsafe.Offsetof(layout.Position))
	ColorOffset    = int(unsafe.Offsetof(layout.Color))
)

type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// Quad is a unit square split into two triangles, one color per corner.
func Quad() Mesh {
	return Mesh{
		Vertices: []Vertex{
			{Position: mgl32.Vec2{-0.5, -0.5}, Color: mgl32.Vec3{1, 0, 0}},
			{Position: mgl32.Vec2{0.5, -0.5}, Color: mgl32.Vec3{0, 1, 0}},
			{Position: mgl32.Vec2{0.5, 0.5}, Color: mgl32.Vec3{0, 0, 1}},
			{Position: mgl32.Vec2{-0.5, 0.5}, Color: mgl32.Vec3{1, 1, 1}},
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}

// Triangle is the single clockwise triangle drawn without a transform.
func Triangle() Mesh {
	return Mesh{
		Vertices: []Vertex{
			{Position: mgl32.Vec2{0, -0.5}, Color: mgl32.Vec3{1, 0, 0}},
			{Position: mgl32.Vec2{0.5, 0.5}, Color: mgl32.Vec3{0, 1, 0}},
			{Position: mgl32.Vec2{-0.5, 0.5}, Color: mgl32.Vec3{0, 0, 1}},
		},
		Indices: []uint32{0, 1, 2},
	}
}

// Validate checks that the mesh is a non-empty triangle list whose indices
// all refer to existing vertices.
func (m Mesh) Validate() error {
	if len(m.Vertices) == 0 {
		return errors.New("mesh has no vertices")
	}
	if len(m.Indices) == 0 || len(m.Indices)%3 != 0 {
		return errors.Newf("mesh has %d indices, want a positive multiple of 3", len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return errors.Newf("index %d refers to vertex %d of %d", i, idx, len(m.Vertices))
		}
	}
	return nil
}

func (m Mesh) VertexBytes() ([]byte, error) {
	return encode(m.Vertices)
}

func (m Mesh) IndexBytes() ([]byte, error) {
	return encode(m.Indices)
}

func encode(data any) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, data); err != nil {
		return nil, errors.Wrap(err, "encode mesh data")
	}
	return buf.Bytes(), nil
}

// Builder accumulates triangles, storing each distinct vertex once.
type Builder struct {
	mesh   Mesh
	unique map[Vertex]uint32
}

func NewBuilder() *Builder {
	return &Builder{unique: make(map[Vertex]uint32)}
}

func (b *Builder) Add(v Vertex) {
	index, ok := b.unique[v]
	if !ok {
		index = uint32(len(b.mesh.Vertices))
		b.mesh.Vertices = append(b.mesh.Vertices, v)
		b.unique[v] = index
	}
	b.mesh.Indices = append(b.mesh.Indices, index)
}

func (b *Builder) Triangle(v0, v1, v2 Vertex) {
	b.Add(v0)
	b.Add(v1)
	b.Add(v2)
}

// Fan triangulates a convex polygon around its first vertex.
func (b *Builder) Fan(polygon []Vertex) {
	for i := 2; i < len(polygon); i++ {
		b.Triangle(polygon[0], polygon[i-1], polygon[i])
	}
}

func (b *Builder) Mesh() Mesh {
	return b.mesh
}
