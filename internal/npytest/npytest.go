// Package npytest writes minimal .npy fixtures byte-by-byte, the same
// way real exporters lay them out, so parser tests do not depend on a
// writer implementation.
package npytest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
)

// WriteFloats writes a little-endian float64 .npy file.
func WriteFloats(path string, shape []int, data []float64) error {
	return write(path, "<f8", shape, data)
}

// WriteInts writes a little-endian int64 .npy file.
func WriteInts(path string, shape []int, data []int64) error {
	return write(path, "<i8", shape, data)
}

func write(path, descr string, shape []int, data interface{}) error {
	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.WriteByte(1)
	buf.WriteByte(0)

	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }",
		descr, shapeTuple(shape))
	// Pad with spaces so the data section starts on a 16-byte boundary;
	// the header always ends with a newline.
	total := 6 + 2 + 2 + len(header) + 1
	pad := (16 - total%16) % 16
	header += strings.Repeat(" ", pad) + "\n"

	if err := binary.Write(&buf, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	buf.WriteString(header)
	if err := binary.Write(&buf, binary.LittleEndian, data); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func shapeTuple(shape []int) string {
	if len(shape) == 1 {
		return fmt.Sprintf("(%d,)", shape[0])
	}
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
