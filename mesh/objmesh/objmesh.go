// Package objmesh reads Wavefront OBJ geometry into a mesh.Mesh. Only the
// x and y coordinates of each position are kept; every vertex is white.
package objmesh

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/vkngwrapper/frameloop/mesh"
)

// Load decodes the OBJ file at path. The material library next to it is
// ignored.
func Load(path string) (mesh.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return mesh.Mesh{}, errors.Wrap(err, "open mesh")
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return mesh.Mesh{}, errors.Wrapf(err, "decode %s", path)
	}
	return m, nil
}

func Decode(r io.Reader) (mesh.Mesh, error) {
	decoder, err := obj.DecodeReader(r, strings.NewReader(""))
	if err != nil {
		return mesh.Mesh{}, err
	}

	white := mgl32.Vec3{1, 1, 1}
	builder := mesh.NewBuilder()

	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			polygon := make([]mesh.Vertex, 0, len(face.Vertices))
			for _, vertInd := range face.Vertices {
				if (vertInd+1)*3 > len(decoder.Vertices) {
					return mesh.Mesh{}, errors.Newf("face refers to vertex %d of %d", vertInd, len(decoder.Vertices)/3)
				}
				polygon = append(polygon, mesh.Vertex{
					Position: mgl32.Vec2{decoder.Vertices[vertInd*3], decoder.Vertices[vertInd*3+1]},
					Color:    white,
				})
			}
			builder.Fan(polygon)
		}
	}

	m := builder.Mesh()
	if err := m.Validate(); err != nil {
		return mesh.Mesh{}, err
	}
	return m, nil
}
