package xmp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chaos-io/removebg-square/util"
)

var (
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
	xmpKeyword   = []byte("XML:com.adobe.xmp")

	ErrNotPNG = errors.New("not a png file")
)

type chunk struct {
	typ        string
	data       []byte
	start, end int
}

func chunks(data []byte) ([]chunk, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, ErrNotPNG
	}

	var out []chunk
	i := len(pngSignature)
	for i+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[i : i+4]))
		typ := string(data[i+4 : i+8])
		end := i + 8 + length + 4
		if end > len(data) {
			return nil, fmt.Errorf("truncated %s chunk at offset %d", typ, i)
		}
		out = append(out, chunk{typ: typ, data: data[i+8 : i+8+length], start: i, end: end})
		i = end
		if typ == "IEND" {
			return out, nil
		}
	}
	return nil, errors.New("png has no IEND chunk")
}

func buildChunk(typ string, payload []byte) []byte {
	out := make([]byte, 0, len(payload)+12)
	out = binary.BigEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, typ...)
	out = append(out, payload...)
	crc := crc32.NewIEEE()
	_, _ = crc.Write([]byte(typ))
	_, _ = crc.Write(payload)
	return binary.BigEndian.AppendUint32(out, crc.Sum32())
}

// iTXt: keyword NUL compression-flag compression-method language NUL translated-keyword NUL text
func xmpChunk(packet []byte) []byte {
	payload := make([]byte, 0, len(xmpKeyword)+5+len(packet))
	payload = append(payload, xmpKeyword...)
	payload = append(payload, 0, 0, 0, 0, 0)
	payload = append(payload, packet...)
	return buildChunk("iTXt", payload)
}

func xmpPayload(c chunk) ([]byte, bool) {
	if c.typ != "iTXt" {
		return nil, false
	}
	p := c.data
	nul := bytes.IndexByte(p, 0)
	if nul <= 0 || !bytes.Equal(p[:nul], xmpKeyword) {
		return nil, false
	}
	j := nul + 3
	if j > len(p) {
		return nil, false
	}
	for range 2 {
		n := bytes.IndexByte(p[j:], 0)
		if n < 0 {
			return nil, false
		}
		j += n + 1
	}
	return p[j:], true
}

// ReadPNG returns the embedded XMP packet, or nil when the PNG has none.
func ReadPNG(data []byte) ([]byte, error) {
	cs, err := chunks(data)
	if err != nil {
		return nil, err
	}
	for _, c := range cs {
		if p, ok := xmpPayload(c); ok {
			return p, nil
		}
	}
	return nil, nil
}

// EmbedPNG tags the PNG at path in place, replacing an existing XMP iTXt
// chunk or inserting one before IEND.
func EmbedPNG(path, tool string, date time.Time) error {
	if !strings.EqualFold(filepath.Ext(path), ".png") {
		return ErrNotPNG
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out, err := embed(data, tool, date)
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(path, out)
}

func embed(data []byte, tool string, date time.Time) ([]byte, error) {
	cs, err := chunks(data)
	if err != nil {
		return nil, err
	}

	var existing []byte
	replace := -1
	for i, c := range cs {
		if p, ok := xmpPayload(c); ok {
			existing, replace = p, i
			break
		}
	}

	packet, changed, err := retag(existing, tool, date)
	if err != nil {
		return nil, err
	}
	if !changed {
		return data, nil
	}
	newChunk := xmpChunk(packet)

	var at, skip int
	if replace >= 0 {
		at, skip = cs[replace].start, cs[replace].end
	} else {
		iend := cs[len(cs)-1]
		at, skip = iend.start, iend.start
	}

	out := make([]byte, 0, len(data)+len(newChunk))
	out = append(out, data[:at]...)
	out = append(out, newChunk...)
	out = append(out, data[skip:]...)
	return out, nil
}

// SidecarPath is image path + ".xmp".
func SidecarPath(path string) string {
	return path + ".xmp"
}

// WriteSidecar merges the tag into <path>.xmp, creating it when missing.
func WriteSidecar(path, tool string, date time.Time) error {
	sidecar := SidecarPath(path)

	existing, err := os.ReadFile(sidecar)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	packet, changed, err := retag(existing, tool, date)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return util.WriteFileAtomic(sidecar, packet)
}

// Tag embeds into PNGs and writes a sidecar when asked or when the file is not a PNG.
func Tag(path, tool string, date time.Time, sidecar bool) error {
	isPNG := strings.EqualFold(filepath.Ext(path), ".png")

	var errs []error
	if isPNG {
		if err := EmbedPNG(path, tool, date); err != nil {
			errs = append(errs, fmt.Errorf("embed xmp: %w", err))
		}
	}
	if sidecar || !isPNG {
		if err := WriteSidecar(path, tool, date); err != nil {
			errs = append(errs, fmt.Errorf("write xmp sidecar: %w", err))
		}
	}
	return errors.Join(errs...)
}
