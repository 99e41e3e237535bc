package kpack

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	// DefaultPrecisionCoef is the fixed-point scale, in points per degree, for
	// polygons whose own precision and class precision are both unset.
	DefaultPrecisionCoef = 1000000
	// DefaultBorderPrecisionCoef is the scale used for border polygons.
	DefaultBorderPrecisionCoef = 10000

	// mercator is undefined at the poles
	maxMercatorLat = 85.0511287798066
)

// GeoCoor is a WGS84 coordinate in degrees.
type GeoCoor struct {
	Lat float64
	Lon float64
}

// GeoCoorFromDegs returns the coordinate at lat, lon degrees.
func GeoCoorFromDegs(lat, lon float64) GeoCoor {
	return GeoCoor{Lat: lat, Lon: lon}
}

// GeoCoorFromPoint converts an orb point (lon, lat order) to a coordinate.
func GeoCoorFromPoint(p orb.Point) GeoCoor {
	return GeoCoor{Lat: p.Lat(), Lon: p.Lon()}
}

// GeoCoorFromFixed reverses ToFixed.
func GeoCoorFromFixed(lat, lon int64, coef int) GeoCoor {
	return GeoCoor{Lat: float64(lat) / float64(coef), Lon: float64(lon) / float64(coef)}
}

// GeoCoorFromMeters reverses ToMeters.
func GeoCoorFromMeters(m orb.Point) GeoCoor {
	return GeoCoorFromPoint(project.Mercator.ToWGS84(orb.Point{m[0], -m[1]}))
}

// Point returns the coordinate as an orb point.
func (c GeoCoor) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// ToFixed scales the coordinate to integers at coef points per degree.
func (c GeoCoor) ToFixed(coef int) (lat, lon int64) {
	return int64(math.Round(c.Lat * float64(coef))), int64(math.Round(c.Lon * float64(coef)))
}

// ToMeters projects the coordinate to web mercator meters with y growing
// southward, so the north-west corner of any frame has the smallest x and y.
func (c GeoCoor) ToMeters() orb.Point {
	lat := math.Max(-maxMercatorLat, math.Min(maxMercatorLat, c.Lat))
	m := project.WGS84.ToMercator(orb.Point{c.Lon, lat})
	return orb.Point{m[0], -m[1]}
}

func (c GeoCoor) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// Frame is an axis aligned rectangle. The zero Frame is null.
type Frame struct {
	TopLeft     GeoCoor
	BottomRight GeoCoor
}

// NewFrame returns the frame spanning two opposite corners given in any order.
func NewFrame(a, b GeoCoor) Frame {
	return Frame{
		TopLeft:     GeoCoor{Lat: math.Max(a.Lat, b.Lat), Lon: math.Min(a.Lon, b.Lon)},
		BottomRight: GeoCoor{Lat: math.Min(a.Lat, b.Lat), Lon: math.Max(a.Lon, b.Lon)},
	}
}

// FrameFromBound converts an orb bound to a frame.
func FrameFromBound(b orb.Bound) Frame {
	return Frame{
		TopLeft:     GeoCoor{Lat: b.Max.Lat(), Lon: b.Min.Lon()},
		BottomRight: GeoCoor{Lat: b.Min.Lat(), Lon: b.Max.Lon()},
	}
}

// IsNull reports whether the frame is unset.
func (f Frame) IsNull() bool {
	return f == Frame{}
}

// Bound returns the frame as an orb bound.
func (f Frame) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{f.TopLeft.Lon, f.BottomRight.Lat},
		Max: orb.Point{f.BottomRight.Lon, f.TopLeft.Lat},
	}
}

// United returns the smallest frame containing both frames. A null frame is
// the identity.
func (f Frame) United(o Frame) Frame {
	if f.IsNull() {
		return o
	}
	if o.IsNull() {
		return f
	}
	return FrameFromBound(f.Bound().Union(o.Bound()))
}

// SizeMeters returns the projected width and height of the frame.
func (f Frame) SizeMeters() (width, height float64) {
	tl := f.TopLeft.ToMeters()
	br := f.BottomRight.ToMeters()
	return br[0] - tl[0], br[1] - tl[1]
}

func (f Frame) String() string {
	return f.TopLeft.String() + " " + f.BottomRight.String()
}

// Polygon is an ordered point sequence, closed or open. PrecisionCoef is the
// fixed-point scale it is stored with; zero defers to the class of its object.
type Polygon struct {
	Points        []GeoCoor
	PrecisionCoef int
}

// IsEmpty reports whether the polygon has no points.
func (p Polygon) IsEmpty() bool {
	return len(p.Points) == 0
}

// LineString returns the points as an orb line string.
func (p Polygon) LineString() orb.LineString {
	ls := make(orb.LineString, len(p.Points))
	for i, c := range p.Points {
		ls[i] = c.Point()
	}
	return ls
}

// Ring returns the points as an orb ring, closing it if needed.
func (p Polygon) Ring() orb.Ring {
	r := orb.Ring(p.LineString())
	if len(r) > 0 && !r.Closed() {
		r = append(r, r[0])
	}
	return r
}

// Frame returns the bounding frame of the points, null for an empty polygon.
func (p Polygon) Frame() Frame {
	if p.IsEmpty() {
		return Frame{}
	}
	return FrameFromBound(p.LineString().Bound())
}

// ToMeters returns the points projected with GeoCoor.ToMeters.
func (p Polygon) ToMeters() orb.LineString {
	ls := make(orb.LineString, len(p.Points))
	for i, c := range p.Points {
		ls[i] = c.ToMeters()
	}
	return ls
}
