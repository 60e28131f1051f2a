package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
)

// ClipMask is a per-pixel depth ceiling persisted to disk. The motion
// detector clamps every incoming MeterFrame elementwise with min(meters, clip)
// when one is loaded.
type ClipMask struct {
	W, H int
	Pix  []float64
}

// At returns the ceiling depth at (x, y).
func (c *ClipMask) At(x, y int) float64 { return c.Pix[y*c.W+x] }

// Clamp returns a new MeterFrame with every sample capped at the mask's ceiling.
func (c *ClipMask) Clamp(m *MeterFrame) *MeterFrame {
	out := m.Clone()
	for i, v := range out.Pix {
		if ceil := c.Pix[i]; v > ceil {
			out.Pix[i] = ceil
		}
	}
	return out
}

const npyMagic = "\x93NUMPY"

// LoadClipMask reads the NumPy .npy v1 layout written by SaveClipMask: a
// fixed magic+version header, a textual dict describing dtype/shape, padded
// to a 16-byte boundary, followed by the row-major float64 payload. A
// missing file is reported as the os error (os.IsNotExist holds); cmd/kinlarm
// logs any load error and runs without a clip mask.
func LoadClipMask(path string) (*ClipMask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 10 || string(data[:6]) != npyMagic {
		return nil, fmt.Errorf("frame: %s is not a valid .npy file", path)
	}
	major := data[6]
	var headerLen int
	var headerStart int
	if major == 1 {
		headerLen = int(binary.LittleEndian.Uint16(data[8:10]))
		headerStart = 10
	} else {
		headerLen = int(binary.LittleEndian.Uint32(data[8:12]))
		headerStart = 12
	}
	header := string(data[headerStart : headerStart+headerLen])
	w, h, err := parseNpyShape(header)
	if err != nil {
		return nil, fmt.Errorf("frame: parse %s header: %w", path, err)
	}

	payload := data[headerStart+headerLen:]
	n := w * h
	if len(payload) < n*8 {
		return nil, fmt.Errorf("frame: %s payload too short for %dx%d float64 grid", path, w, h)
	}
	pix := make([]float64, n)
	for i := range pix {
		bits := binary.LittleEndian.Uint64(payload[i*8 : i*8+8])
		pix[i] = math.Float64frombits(bits)
	}
	return &ClipMask{W: w, H: h, Pix: pix}, nil
}

// SaveClipMask writes the grid to path in the same .npy v1 layout LoadClipMask reads.
func SaveClipMask(path string, m *ClipMask) error {
	var buf bytes.Buffer
	buf.WriteString(npyMagic)
	buf.WriteByte(1) // major
	buf.WriteByte(0) // minor

	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d, %d), }",
		m.H, m.W)
	// Pad so that magic(6)+version(2)+len(2)+header is a multiple of 16, ending in '\n'.
	total := 10 + len(header) + 1
	pad := (16 - total%16) % 16
	for i := 0; i < pad; i++ {
		header += " "
	}
	header += "\n"

	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(header)))
	buf.Write(lenBuf[:])
	buf.WriteString(header)

	for _, v := range m.Pix {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
		buf.Write(b[:])
	}

	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func parseNpyShape(header string) (w, h int, err error) {
	idx := bytes.Index([]byte(header), []byte("'shape':"))
	if idx < 0 {
		return 0, 0, fmt.Errorf("no shape field in header")
	}
	rest := header[idx+len("'shape':"):]
	open := bytes.IndexByte([]byte(rest), '(')
	shut := bytes.IndexByte([]byte(rest), ')')
	if open < 0 || shut < 0 || shut < open {
		return 0, 0, fmt.Errorf("malformed shape tuple")
	}
	parts := bytes.Split([]byte(rest[open+1:shut]), []byte(","))
	var dims []int
	for _, p := range parts {
		s := string(bytes.TrimSpace(p))
		if s == "" {
			continue
		}
		v, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, 0, fmt.Errorf("bad shape dimension %q: %w", s, convErr)
		}
		dims = append(dims, v)
	}
	if len(dims) != 2 {
		return 0, 0, fmt.Errorf("expected a 2-D shape, got %v", dims)
	}
	return dims[1], dims[0], nil
}
