package kpack

import (
	"encoding/binary"
	"fmt"
	"image/color"
	"math"
	"strings"
)

// ShapeType is how the rendering layer draws objects of a class.
type ShapeType uint8

const (
	ShapeNone ShapeType = iota
	ShapePoint
	ShapeLine
	ShapePolygon
	ShapeMarker
)

func (t ShapeType) String() string {
	switch t {
	case ShapePoint:
		return "point"
	case ShapeLine:
		return "line"
	case ShapePolygon:
		return "polygon"
	case ShapeMarker:
		return "marker"
	default:
		return "none"
	}
}

// LineStyle is the stroke pattern of line and polygon classes.
type LineStyle uint8

const (
	StyleSolid LineStyle = iota
	StyleDash
	StyleDots
)

func (s LineStyle) String() string {
	switch s {
	case StyleDash:
		return "dash"
	case StyleDots:
		return "dots"
	default:
		return "solid"
	}
}

// ClassRecordLenBytes is the fixed on-disk size of a class record.
const ClassRecordLenBytes = 104

// MaxClassIDLen is the longest class id, in bytes, a record can hold.
const MaxClassIDLen = 64

// ClassRecord is one entry of the class dictionary. MaxMip is the visibility
// threshold that decides between the main set and the tile grid; the style
// fields are carried through for the rendering layer.
type ClassRecord struct {
	ID            string
	Type          ShapeType
	Style         LineStyle
	Layer         uint8
	WidthMM       float32
	MinMip        float64
	MaxMip        float64
	PrecisionCoef int32
	Pen           color.RGBA
	Brush         color.RGBA
	TextColor     color.RGBA
}

// InMain reports whether objects of the class belong in the main set when
// tiles start loading at tileMip.
func (c ClassRecord) InMain(tileMip float64) bool {
	return c.MaxMip == 0 || c.MaxMip > tileMip
}

// coef returns the scale used for polygons of this class that carry none.
func (c ClassRecord) coef() int {
	if c.PrecisionCoef > 0 {
		return int(c.PrecisionCoef)
	}
	return DefaultPrecisionCoef
}

func putRGBA(b []byte, c color.RGBA) {
	b[0], b[1], b[2], b[3] = c.R, c.G, c.B, c.A
}

func getRGBA(b []byte) color.RGBA {
	return color.RGBA{R: b[0], G: b[1], B: b[2], A: b[3]}
}

func serializeClass(c ClassRecord) []byte {
	b := make([]byte, ClassRecordLenBytes)
	copy(b[0:MaxClassIDLen], c.ID)
	b[64] = uint8(c.Type)
	b[65] = uint8(c.Style)
	b[66] = c.Layer
	binary.LittleEndian.PutUint32(b[68:68+4], math.Float32bits(c.WidthMM))
	binary.LittleEndian.PutUint64(b[72:72+8], math.Float64bits(c.MinMip))
	binary.LittleEndian.PutUint64(b[80:80+8], math.Float64bits(c.MaxMip))
	binary.LittleEndian.PutUint32(b[88:88+4], uint32(c.PrecisionCoef))
	putRGBA(b[92:92+4], c.Pen)
	putRGBA(b[96:96+4], c.Brush)
	putRGBA(b[100:100+4], c.TextColor)
	return b
}

func deserializeClass(b []byte) ClassRecord {
	return ClassRecord{
		ID:            strings.TrimRight(string(b[0:MaxClassIDLen]), "\x00"),
		Type:          ShapeType(b[64]),
		Style:         LineStyle(b[65]),
		Layer:         b[66],
		WidthMM:       math.Float32frombits(binary.LittleEndian.Uint32(b[68 : 68+4])),
		MinMip:        math.Float64frombits(binary.LittleEndian.Uint64(b[72 : 72+8])),
		MaxMip:        math.Float64frombits(binary.LittleEndian.Uint64(b[80 : 80+8])),
		PrecisionCoef: int32(binary.LittleEndian.Uint32(b[88 : 88+4])),
		Pen:           getRGBA(b[92 : 92+4]),
		Brush:         getRGBA(b[96 : 96+4]),
		TextColor:     getRGBA(b[100 : 100+4]),
	}
}

// ClassDictionary is an ordered, immutable list of class records with unique
// ids. Objects refer to their class by index. A nil dictionary is empty.
type ClassDictionary struct {
	records []ClassRecord
	byID    map[string]int
}

// NewClassDictionary copies records into a dictionary, rejecting duplicate,
// empty and over-long ids.
func NewClassDictionary(records []ClassRecord) (*ClassDictionary, error) {
	d := &ClassDictionary{
		records: make([]ClassRecord, len(records)),
		byID:    make(map[string]int, len(records)),
	}
	for i, r := range records {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: class %d has no id", ErrMisuse, i)
		}
		if len(r.ID) > MaxClassIDLen || strings.ContainsRune(r.ID, 0) {
			return nil, fmt.Errorf("%w: class id %q does not fit a %d byte record", ErrMisuse, r.ID, MaxClassIDLen)
		}
		if _, ok := d.byID[r.ID]; ok {
			return nil, fmt.Errorf("%w: class %q has already been defined", ErrMisuse, r.ID)
		}
		d.byID[r.ID] = i
		d.records[i] = r
	}
	return d, nil
}

// Len returns the number of classes.
func (d *ClassDictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// At returns the class at index i.
func (d *ClassDictionary) At(i int) (ClassRecord, bool) {
	if i < 0 || i >= d.Len() {
		return ClassRecord{}, false
	}
	return d.records[i], true
}

// IndexByID returns the index of the class with the given id.
func (d *ClassDictionary) IndexByID(id string) (int, bool) {
	if d == nil {
		return -1, false
	}
	i, ok := d.byID[id]
	if !ok {
		return -1, false
	}
	return i, true
}

// Records returns a copy of the records in dictionary order.
func (d *ClassDictionary) Records() []ClassRecord {
	if d == nil {
		return nil
	}
	out := make([]ClassRecord, len(d.records))
	copy(out, d.records)
	return out
}
