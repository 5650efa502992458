package evaluation

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
)

var npyMagic = []byte("\x93NUMPY")

// WriteNPY stores v as a one-dimensional little-endian int64 array in the
// NumPy .npy v1.0 format, loadable with numpy.load.
func WriteNPY(path string, v []int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := EncodeNPY(w, v); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func EncodeNPY(w io.Writer, v []int) error {
	header := fmt.Sprintf("{'descr': '<i8', 'fortran_order': False, 'shape': (%d,), }", len(v))
	// magic(6) + version(2) + length(2) + header + '\n' is padded to 64 bytes
	total := 10 + len(header) + 1
	if rem := total % 64; rem != 0 {
		header += string(bytes.Repeat([]byte(" "), 64-rem))
	}
	header += "\n"

	buf := make([]byte, 0, 10+len(header)+8*len(v))
	buf = append(buf, npyMagic...)
	buf = append(buf, 1, 0)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(header)))
	buf = append(buf, header...)
	for _, x := range v {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(int64(x)))
	}
	_, err := w.Write(buf)
	return err
}

var (
	npyDescr = regexp.MustCompile(`'descr':\s*'([^']+)'`)
	npyShape = regexp.MustCompile(`'shape':\s*\((\d+),?\)`)
	npyOrder = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
)

// ReadNPY loads a one-dimensional integer, boolean or float vector written by
// WriteNPY or numpy.save. Floats are truncated to int.
func ReadNPY(path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeNPY(data)
}

func DecodeNPY(data []byte) ([]int, error) {
	if len(data) < 10 || !bytes.Equal(data[:6], npyMagic) {
		return nil, fmt.Errorf("not an npy file")
	}
	major := data[6]
	var hlen, off int
	switch major {
	case 1:
		hlen, off = int(binary.LittleEndian.Uint16(data[8:10])), 10
	case 2, 3:
		if len(data) < 12 {
			return nil, fmt.Errorf("truncated npy header")
		}
		hlen, off = int(binary.LittleEndian.Uint32(data[8:12])), 12
	default:
		return nil, fmt.Errorf("unsupported npy version %d", major)
	}
	if len(data) < off+hlen {
		return nil, fmt.Errorf("truncated npy header")
	}
	header := string(data[off : off+hlen])
	body := data[off+hlen:]

	if m := npyOrder.FindStringSubmatch(header); m != nil && m[1] == "True" {
		// irrelevant for one dimension, but reject what we do not write
		return nil, fmt.Errorf("fortran-ordered arrays are not supported")
	}
	dm := npyDescr.FindStringSubmatch(header)
	sm := npyShape.FindStringSubmatch(header)
	if dm == nil || sm == nil {
		return nil, fmt.Errorf("unsupported npy header %q", header)
	}
	n, err := strconv.Atoi(sm[1])
	if err != nil {
		return nil, err
	}

	var size int
	var read func(b []byte) int
	switch dm[1] {
	case "<i8":
		size, read = 8, func(b []byte) int { return int(int64(binary.LittleEndian.Uint64(b))) }
	case "<i4":
		size, read = 4, func(b []byte) int { return int(int32(binary.LittleEndian.Uint32(b))) }
	case "|i1":
		size, read = 1, func(b []byte) int { return int(int8(b[0])) }
	case "|b1", "|u1":
		size, read = 1, func(b []byte) int { return int(b[0]) }
	case "<f8":
		size, read = 8, func(b []byte) int { return int(math.Float64frombits(binary.LittleEndian.Uint64(b))) }
	default:
		return nil, fmt.Errorf("unsupported dtype %s", dm[1])
	}
	if len(body) < n*size {
		return nil, fmt.Errorf("npy body holds %d bytes, want %d", len(body), n*size)
	}
	out := make([]int, n)
	for i := range out {
		out[i] = read(body[i*size:])
	}
	return out, nil
}
