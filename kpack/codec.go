package kpack

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

var errTruncated = errors.New("unexpected end of data")

// maxPrecisionCoef bounds the points-per-degree scale of a stored polygon.
const maxPrecisionCoef = 1 << 40

func validCoef(coef int) bool {
	return coef > 0 && int64(coef) <= maxPrecisionCoef
}

// MapObject is a named, classified geometry with free-form attributes.
// Polygons listed in InnerPolygonIdx are holes of the preceding outer rings.
type MapObject struct {
	Name            string
	ClassIdx        int
	Frame           Frame
	Polygons        []Polygon
	InnerPolygonIdx []int
	Attributes      map[string][]byte
}

// UpdateFrame sets Frame to the union of the polygon frames.
func (o *MapObject) UpdateFrame() {
	o.Frame = polygonsFrame(o.Polygons)
}

func polygonsFrame(polygons []Polygon) Frame {
	var f Frame
	for _, p := range polygons {
		if !p.IsEmpty() {
			f = f.United(p.Frame())
		}
	}
	return f
}

// AppendPolygon appends the encoding of p at coef points per degree to dst:
// point count, coef, then zigzag deltas of the fixed-point lat/lon pairs.
// Only coef in 1..2^40 decodes.
func AppendPolygon(dst []byte, p Polygon, coef int) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(p.Points)))
	dst = binary.AppendUvarint(dst, uint64(coef))
	var lastLat, lastLon int64
	for _, c := range p.Points {
		lat, lon := c.ToFixed(coef)
		dst = binary.AppendVarint(dst, lat-lastLat)
		dst = binary.AppendVarint(dst, lon-lastLon)
		lastLat, lastLon = lat, lon
	}
	return dst
}

// DecodePolygon decodes one polygon from the start of data and returns it
// with the number of bytes consumed.
func DecodePolygon(data []byte) (Polygon, int, error) {
	d := decoder{data: data}
	p := d.polygon()
	if d.err != nil {
		return Polygon{}, 0, fmt.Errorf("%w: polygon: %v", ErrCorruption, d.err)
	}
	return p, d.pos, nil
}

// AppendObject appends the encoding of obj to dst. Polygons without their
// own precision are stored at the precision of the object's class; an
// explicit precision outside 1..2^40 is misuse.
func AppendObject(dst []byte, obj *MapObject, classes *ClassDictionary) ([]byte, error) {
	cl, ok := classes.At(obj.ClassIdx)
	if !ok {
		return dst, fmt.Errorf("%w: object %q references class %d of %d", ErrMisuse, obj.Name, obj.ClassIdx, classes.Len())
	}
	for _, idx := range obj.InnerPolygonIdx {
		if idx < 0 || idx >= len(obj.Polygons) {
			return dst, fmt.Errorf("%w: object %q inner polygon %d of %d", ErrMisuse, obj.Name, idx, len(obj.Polygons))
		}
	}
	for i, p := range obj.Polygons {
		if p.PrecisionCoef != 0 && !validCoef(p.PrecisionCoef) {
			return dst, fmt.Errorf("%w: object %q polygon %d precision %d", ErrMisuse, obj.Name, i, p.PrecisionCoef)
		}
	}

	dst = appendString(dst, obj.Name)
	dst = binary.AppendUvarint(dst, uint64(obj.ClassIdx))
	dst = binary.AppendUvarint(dst, uint64(len(obj.Polygons)))
	for _, p := range obj.Polygons {
		coef := p.PrecisionCoef
		if coef == 0 {
			coef = cl.coef()
		}
		dst = AppendPolygon(dst, p, coef)
	}
	dst = binary.AppendUvarint(dst, uint64(len(obj.InnerPolygonIdx)))
	for _, idx := range obj.InnerPolygonIdx {
		dst = binary.AppendUvarint(dst, uint64(idx))
	}

	keys := make([]string, 0, len(obj.Attributes))
	for k := range obj.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	dst = binary.AppendUvarint(dst, uint64(len(keys)))
	for _, k := range keys {
		dst = appendString(dst, k)
		dst = appendBytes(dst, obj.Attributes[k])
	}
	return dst, nil
}

// DecodeObject decodes one object from the start of data and returns it with
// the number of bytes consumed. A class index outside classes is corruption.
func DecodeObject(data []byte, classes *ClassDictionary) (MapObject, int, error) {
	d := decoder{data: data}
	obj := d.object(classes)
	if d.err != nil {
		return MapObject{}, 0, fmt.Errorf("%w: object: %v", ErrCorruption, d.err)
	}
	return obj, d.pos, nil
}

func encodeObjects(objs []MapObject, classes *ClassDictionary) ([]byte, error) {
	var b []byte
	var err error
	for i := range objs {
		b, err = AppendObject(b, &objs[i], classes)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

// decodeObjects decodes exactly count objects filling all of data.
func decodeObjects(data []byte, count int, classes *ClassDictionary) ([]MapObject, error) {
	d := decoder{data: data}
	if count > len(data) {
		return nil, fmt.Errorf("%w: %d objects cannot fit %d bytes", ErrCorruption, count, len(data))
	}
	objs := make([]MapObject, count)
	for i := range objs {
		objs[i] = d.object(classes)
		if d.err != nil {
			return nil, fmt.Errorf("%w: object %d: %v", ErrCorruption, i, d.err)
		}
	}
	if d.pos != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes after %d objects", ErrCorruption, len(data)-d.pos, count)
	}
	return objs, nil
}

func appendBytes(dst []byte, b []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(b)))
	return append(dst, b...)
}

func appendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

// decoder reads from data, keeping the first error; reads after an error
// return zero values.
type decoder struct {
	data []byte
	pos  int
	err  error
}

func (d *decoder) remaining() int {
	return len(d.data) - d.pos
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.data[d.pos:])
	if n <= 0 {
		d.err = errTruncated
		return 0
	}
	d.pos += n
	return v
}

func (d *decoder) varint() int64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Varint(d.data[d.pos:])
	if n <= 0 {
		d.err = errTruncated
		return 0
	}
	d.pos += n
	return v
}

// count reads a length prefix for elements of at least minSize bytes each.
func (d *decoder) count(minSize int) int {
	n := d.uvarint()
	if d.err == nil && n > uint64(d.remaining()/minSize) {
		d.err = fmt.Errorf("count %d exceeds remaining %d bytes", n, d.remaining())
		return 0
	}
	return int(n)
}

func (d *decoder) bytes() []byte {
	n := d.count(1)
	if d.err != nil {
		return nil
	}
	b := make([]byte, n)
	copy(b, d.data[d.pos:d.pos+n])
	d.pos += n
	return b
}

func (d *decoder) string() string {
	return string(d.bytes())
}

func (d *decoder) polygon() Polygon {
	n := d.count(2)
	coef := d.uvarint()
	if d.err != nil {
		return Polygon{}
	}
	if coef == 0 || coef > maxPrecisionCoef {
		d.err = fmt.Errorf("invalid precision coefficient %d", coef)
		return Polygon{}
	}
	p := Polygon{Points: make([]GeoCoor, n), PrecisionCoef: int(coef)}
	var lat, lon int64
	for i := range p.Points {
		lat += d.varint()
		lon += d.varint()
		p.Points[i] = GeoCoorFromFixed(lat, lon, int(coef))
	}
	return p
}

func (d *decoder) object(classes *ClassDictionary) MapObject {
	var obj MapObject
	obj.Name = d.string()
	classIdx := d.uvarint()
	if d.err != nil {
		return obj
	}
	if classIdx >= uint64(classes.Len()) {
		d.err = fmt.Errorf("class index %d out of %d classes", classIdx, classes.Len())
		return obj
	}
	obj.ClassIdx = int(classIdx)

	if n := d.count(2); n > 0 {
		obj.Polygons = make([]Polygon, n)
		for i := range obj.Polygons {
			obj.Polygons[i] = d.polygon()
		}
	}
	if n := d.count(1); n > 0 {
		obj.InnerPolygonIdx = make([]int, n)
		for i := range obj.InnerPolygonIdx {
			idx := d.uvarint()
			if d.err == nil && idx >= uint64(len(obj.Polygons)) {
				d.err = fmt.Errorf("inner polygon index %d out of %d polygons", idx, len(obj.Polygons))
			}
			obj.InnerPolygonIdx[i] = int(idx)
		}
	}
	if n := d.count(2); n > 0 {
		obj.Attributes = make(map[string][]byte, n)
		for i := 0; i < n; i++ {
			k := d.string()
			obj.Attributes[k] = d.bytes()
		}
	}
	if d.err != nil {
		return MapObject{}
	}
	obj.UpdateFrame()
	return obj
}
