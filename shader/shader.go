// Package shader loads precompiled SPIR-V binaries.
package shader

import (
	"os"

	"github.com/cockroachdb/errors"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

// ReadBinary returns the file at path verbatim.
func ReadBinary(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read shader binary")
	}
	return data, nil
}

// ToBytecode reinterprets little-endian SPIR-V bytes as the 32-bit words a
// shader module is created from.
func ToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Newf("shader binary of %d bytes is not a whole number of words", len(b))
	}

	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	if byteCode[0] != SPIRVMagic {
		return nil, errors.Newf("shader binary starts with %#08x, not the SPIR-V magic number", byteCode[0])
	}
	return byteCode, nil
}

// Load reads and converts the binary at path.
func Load(path string) ([]uint32, error) {
	data, err := ReadBinary(path)
	if err != nil {
		return nil, err
	}
	code, err := ToBytecode(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return code, nil
}
