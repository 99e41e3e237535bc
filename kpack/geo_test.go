package kpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFrameNormalizesCorners(t *testing.T) {
	f := NewFrame(GeoCoorFromDegs(0, 10), GeoCoorFromDegs(10, 0))
	assert.Equal(t, GeoCoor{Lat: 10, Lon: 0}, f.TopLeft)
	assert.Equal(t, GeoCoor{Lat: 0, Lon: 10}, f.BottomRight)
	assert.False(t, f.IsNull())
	assert.True(t, Frame{}.IsNull())
}

func TestToFixed(t *testing.T) {
	lat, lon := GeoCoorFromDegs(1.2345678, -2.5).ToFixed(1000000)
	assert.Equal(t, int64(1234568), lat)
	assert.Equal(t, int64(-2500000), lon)

	c := GeoCoorFromFixed(lat, lon, 1000000)
	assert.InDelta(t, 1.2345678, c.Lat, 1e-6)
	assert.Equal(t, -2.5, c.Lon)
}

func TestToMeters(t *testing.T) {
	origin := GeoCoorFromDegs(0, 0).ToMeters()
	assert.InDelta(t, 0, origin[0], 1e-6)
	assert.InDelta(t, 0, origin[1], 1e-6)

	north := GeoCoorFromDegs(10, 0).ToMeters()
	assert.Less(t, north[1], 0.0)
	east := GeoCoorFromDegs(0, 10).ToMeters()
	assert.Greater(t, east[0], 0.0)

	c := GeoCoorFromMeters(GeoCoorFromDegs(45.5, -73.6).ToMeters())
	assert.InDelta(t, 45.5, c.Lat, 1e-9)
	assert.InDelta(t, -73.6, c.Lon, 1e-9)
}

func TestToMetersClampsPoles(t *testing.T) {
	pole := GeoCoorFromDegs(90, 0).ToMeters()
	limit := GeoCoorFromDegs(maxMercatorLat, 0).ToMeters()
	assert.Equal(t, limit, pole)
}

func TestFrameUnited(t *testing.T) {
	a := NewFrame(GeoCoorFromDegs(0, 0), GeoCoorFromDegs(1, 1))
	b := NewFrame(GeoCoorFromDegs(5, -3), GeoCoorFromDegs(4, -2))
	assert.Equal(t, a, Frame{}.United(a))
	assert.Equal(t, a, a.United(Frame{}))

	u := a.United(b)
	assert.Equal(t, GeoCoor{Lat: 5, Lon: -3}, u.TopLeft)
	assert.Equal(t, GeoCoor{Lat: 0, Lon: 1}, u.BottomRight)
}

func TestFrameSizeMeters(t *testing.T) {
	w, h := NewFrame(GeoCoorFromDegs(0, 0), GeoCoorFromDegs(10, 10)).SizeMeters()
	assert.Greater(t, w, 1e6)
	assert.Greater(t, h, 1e6)
}

func TestPolygon(t *testing.T) {
	p := Polygon{Points: []GeoCoor{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 0}, {Lat: 1, Lon: 2}}}
	assert.False(t, p.IsEmpty())
	assert.True(t, Polygon{}.IsEmpty())
	assert.True(t, Polygon{}.Frame().IsNull())

	r := p.Ring()
	assert.Len(t, r, 4)
	assert.True(t, r.Closed())

	f := p.Frame()
	assert.Equal(t, GeoCoor{Lat: 1, Lon: 0}, f.TopLeft)
	assert.Equal(t, GeoCoor{Lat: 0, Lon: 2}, f.BottomRight)
	assert.Len(t, p.ToMeters(), 3)
}
