package gpkg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var ErrInvalidMagic = errors.New("gpkg: invalid geometry blob magic")

// envelope sizes in bytes, indexed by the envelope contents indicator.
var envelopeSizes = [...]int{0, 32, 48, 48, 64}

// BinaryHeader is the header prefixing every GeoPackage geometry blob.
type BinaryHeader struct {
	magic    [2]byte
	version  uint8
	flags    uint8
	srsID    int32
	envelope []float64
}

// NewBinaryHeader decodes the header at the start of data.
func NewBinaryHeader(data []byte) (*BinaryHeader, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("gpkg: geometry blob too short (%v bytes)", len(data))
	}
	h := &BinaryHeader{
		magic:   [2]byte{data[0], data[1]},
		version: data[2],
		flags:   data[3],
	}
	if h.magic != [2]byte{'G', 'P'} {
		return nil, ErrInvalidMagic
	}

	ind := h.EnvelopeIndicator()
	if ind >= len(envelopeSizes) {
		return nil, fmt.Errorf("gpkg: invalid envelope indicator %v", ind)
	}
	if len(data) < h.Size() {
		return nil, fmt.Errorf("gpkg: geometry blob too short for envelope (%v bytes)", len(data))
	}

	var bo binary.ByteOrder = binary.BigEndian
	if h.flags&0x01 == 1 {
		bo = binary.LittleEndian
	}
	h.srsID = int32(bo.Uint32(data[4:8]))

	n := envelopeSizes[ind] / 8
	h.envelope = make([]float64, n)
	for i := 0; i < n; i++ {
		h.envelope[i] = math.Float64frombits(bo.Uint64(data[8+i*8 : 16+i*8]))
	}
	return h, nil
}

// EnvelopeIndicator is the envelope contents indicator of the flags byte.
func (h *BinaryHeader) EnvelopeIndicator() int { return int((h.flags >> 1) & 0x07) }

// IsEmpty reports the empty geometry flag.
func (h *BinaryHeader) IsEmpty() bool { return h.flags&0x10 != 0 }

// SRSId is the spatial reference system id of the geometry.
func (h *BinaryHeader) SRSId() int32 { return h.srsID }

// Envelope returns the decoded envelope values, possibly empty.
func (h *BinaryHeader) Envelope() []float64 { return h.envelope }

// Size is the header length in bytes; the WKB geometry starts right after.
func (h *BinaryHeader) Size() int {
	ind := h.EnvelopeIndicator()
	if ind >= len(envelopeSizes) {
		return 8
	}
	return 8 + envelopeSizes[ind]
}
