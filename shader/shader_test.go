package shader_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vkngwrapper/frameloop/shader"
)

// Magic number, version 1.0, generator, bound, schema.
var header = []byte{
	0x03, 0x02, 0x23, 0x07,
	0x00, 0x00, 0x01, 0x00,
	0x0b, 0x00, 0x08, 0x00,
	0x10, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

func TestToBytecode(t *testing.T) {
	c := qt.New(t)

	code, err := shader.ToBytecode(header)
	c.Assert(err, qt.IsNil)
	c.Assert(code, qt.DeepEquals, []uint32{shader.SPIRVMagic, 0x00010000, 0x0008000b, 0x10, 0})
}

func TestToBytecodeRejects(t *testing.T) {
	c := qt.New(t)

	_, err := shader.ToBytecode(nil)
	c.Assert(err, qt.ErrorMatches, "shader binary of 0 bytes is not a whole number of words")

	_, err = shader.ToBytecode(header[:7])
	c.Assert(err, qt.ErrorMatches, "shader binary of 7 bytes is not a whole number of words")

	_, err = shader.ToBytecode([]byte("#version 450\n\x00\x00\x00"))
	c.Assert(err, qt.ErrorMatches, "shader binary starts with .*, not the SPIR-V magic number")
}

func TestLoad(t *testing.T) {
	c := qt.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "vert.spv")
	c.Assert(os.WriteFile(path, header, 0o644), qt.IsNil)

	raw, err := shader.ReadBinary(path)
	c.Assert(err, qt.IsNil)
	c.Assert(raw, qt.DeepEquals, header)

	code, err := shader.Load(path)
	c.Assert(err, qt.IsNil)
	c.Assert(code, qt.HasLen, 5)

	_, err = shader.Load(filepath.Join(dir, "missing.spv"))
	c.Assert(err, qt.ErrorMatches, "read shader binary: .*")
}
