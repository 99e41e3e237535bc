package kpack

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioTileMip = 10

func scenarioFrame() Frame {
	return NewFrame(GeoCoorFromDegs(0, 0), GeoCoorFromDegs(10, 10))
}

func scenarioClassDictionary(t *testing.T) *ClassDictionary {
	return testClasses(t,
		ClassRecord{ID: "always", Type: ShapePoint},
		ClassRecord{ID: "near", Type: ShapePolygon, MaxMip: 5},
	)
}

// scenarioObjects returns 3 objects of the always visible class followed by
// 1000 small triangles spread over the scenario frame.
func scenarioObjects() []MapObject {
	var objs []MapObject
	for i := 0; i < 3; i++ {
		objs = append(objs, MapObject{
			Name:     fmt.Sprintf("city %d", i),
			ClassIdx: 0,
			Polygons: []Polygon{{Points: []GeoCoor{{Lat: 2 + 3*float64(i), Lon: 2 + 3*float64(i)}}}},
		})
	}
	for i := 0; i < 1000; i++ {
		lat := 9.95 - float64(i%40)*0.245
		lon := 0.05 + float64(i/40)*0.39
		objs = append(objs, MapObject{
			Name:     fmt.Sprintf("house %d", i),
			ClassIdx: 1,
			Polygons: []Polygon{{Points: []GeoCoor{
				{Lat: lat, Lon: lon},
				{Lat: lat, Lon: lon + 0.01},
				{Lat: lat - 0.01, Lon: lon + 0.01},
			}}},
			Attributes: map[string][]byte{"n": []byte(fmt.Sprint(i))},
		})
	}
	for i := range objs {
		objs[i].UpdateFrame()
	}
	return objs
}

func TestTileSide(t *testing.T) {
	assert.Equal(t, 0, TileSide(0, 200))
	assert.Equal(t, 0, TileSide(10, 0))
	assert.Equal(t, 1, TileSide(1, 200))
	assert.Equal(t, 1, TileSide(200, 200))
	assert.Equal(t, 2, TileSide(201, 200))
	assert.Equal(t, 3, TileSide(1003, 200))
	assert.Equal(t, 10, TileSide(10000, 100))
}

func TestCellIndex(t *testing.T) {
	f := scenarioFrame()
	assert.Equal(t, -1, f.CellIndex(GeoCoorFromDegs(5, 5), 0))
	assert.Equal(t, 0, f.CellIndex(f.TopLeft, 3))
	assert.Equal(t, 8, f.CellIndex(f.BottomRight, 3))
	assert.Equal(t, 4, f.CellIndex(GeoCoorFromDegs(5, 5), 3))
	assert.Equal(t, 2, f.CellIndex(GeoCoorFromDegs(9, 9), 3))
	assert.Equal(t, 6, f.CellIndex(GeoCoorFromDegs(1, 1), 3))

	// clamped to the nearest edge cell
	assert.Equal(t, 0, f.CellIndex(GeoCoorFromDegs(20, -5), 3))
	assert.Equal(t, 8, f.CellIndex(GeoCoorFromDegs(-5, 20), 3))
	assert.Equal(t, 2, f.CellIndex(GeoCoorFromDegs(50, 50), 3))

	assert.Equal(t, 0, Frame{}.CellIndex(GeoCoorFromDegs(5, 5), 3))
}

func TestPartition(t *testing.T) {
	classes := scenarioClassDictionary(t)
	objs := scenarioObjects()
	frame := scenarioFrame()

	main, tiles, err := Partition(objs, classes, frame, scenarioTileMip, 200)
	require.Nil(t, err)
	assert.Len(t, main, 3)
	assert.Len(t, tiles, 9)

	total := len(main)
	for i, tile := range tiles {
		total += len(tile)
		for _, obj := range tile {
			assert.Equal(t, 1, obj.ClassIdx)
			assert.Equal(t, i, frame.CellIndex(obj.Frame.TopLeft, 3))
		}
	}
	assert.Equal(t, len(objs), total)
	assert.NotEmpty(t, tiles[4])

	main2, tiles2, err := Partition(objs, classes, frame, scenarioTileMip, 200)
	assert.Nil(t, err)
	assert.Equal(t, main, main2)
	assert.Equal(t, tiles, tiles2)
}

func TestPartitionByMaxMip(t *testing.T) {
	classes := testClasses(t,
		ClassRecord{ID: "far", MaxMip: 50},
		ClassRecord{ID: "edge", MaxMip: 10},
	)
	objs := []MapObject{
		{Name: "a", ClassIdx: 0, Polygons: []Polygon{{Points: []GeoCoor{{Lat: 1, Lon: 1}}}}},
		{Name: "b", ClassIdx: 1, Polygons: []Polygon{{Points: []GeoCoor{{Lat: 1, Lon: 1}}}}},
	}
	main, tiles, err := Partition(objs, classes, scenarioFrame(), 10, 1)
	assert.Nil(t, err)
	require.Len(t, main, 1)
	assert.Equal(t, "a", main[0].Name)
	assert.Len(t, tiles, 4)
	assert.Equal(t, "b", tiles[2][0].Name)
}

func TestPartitionUsesPolygonFrame(t *testing.T) {
	classes := testClasses(t, ClassRecord{ID: "near", MaxMip: 1})
	objs := []MapObject{{Name: "a", Polygons: []Polygon{{Points: []GeoCoor{{Lat: 9, Lon: 9}}}}}}
	_, tiles, err := Partition(objs, classes, scenarioFrame(), 10, 1)
	assert.Nil(t, err)
	assert.Len(t, tiles, 1)
	assert.Len(t, tiles[0], 1)
}

func TestPartitionMisuse(t *testing.T) {
	classes := testClasses(t, ClassRecord{ID: "a"})
	_, _, err := Partition(nil, classes, scenarioFrame(), 10, 0)
	assert.ErrorIs(t, err, ErrMisuse)

	_, _, err = Partition([]MapObject{{ClassIdx: 3}}, classes, scenarioFrame(), 10, 10)
	assert.ErrorIs(t, err, ErrMisuse)

	main, tiles, err := Partition(nil, classes, scenarioFrame(), 10, 10)
	assert.Nil(t, err)
	assert.Empty(t, main)
	assert.Empty(t, tiles)
}
