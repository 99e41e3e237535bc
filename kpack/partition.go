package kpack

import "math"

// TileSide returns the side of the square tile grid for objectCount objects
// at no more than maxObjectsPerTile per tile on average. No objects, no grid.
func TileSide(objectCount, maxObjectsPerTile int) int {
	if objectCount <= 0 || maxObjectsPerTile <= 0 {
		return 0
	}
	return int(math.Ceil(math.Sqrt(float64(objectCount) / float64(maxObjectsPerTile))))
}

// CellIndex returns the index, in row-major order, of the cell of a
// side×side grid over f that contains c. Coordinates outside the frame are
// clamped to the nearest edge cell. It returns -1 for an empty grid.
func (f Frame) CellIndex(c GeoCoor, side int) int {
	if side <= 0 {
		return -1
	}
	origin := f.TopLeft.ToMeters()
	width, height := f.SizeMeters()
	m := c.ToMeters()
	cx := cellCoord(m[0]-origin[0], width, side)
	cy := cellCoord(m[1]-origin[1], height, side)
	return cy*side + cx
}

func cellCoord(shift, size float64, side int) int {
	if size <= 0 {
		return 0
	}
	v := shift / size * float64(side)
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v >= float64(side) {
		return side - 1
	}
	return int(v)
}

// Partition splits objects into the main set and a square grid of tiles
// covering frame. Objects whose class is always visible, or visible beyond
// tileMip, go to the main set; every other object goes to the single tile
// containing the top-left corner of its frame. Every object lands in exactly
// one place, and the result depends only on the inputs.
func Partition(objects []MapObject, classes *ClassDictionary, frame Frame, tileMip float64, maxObjectsPerTile int) ([]MapObject, [][]MapObject, error) {
	if maxObjectsPerTile <= 0 {
		return nil, nil, misuse("max objects per tile must be positive, got %d", maxObjectsPerTile)
	}
	side := TileSide(len(objects), maxObjectsPerTile)
	tiles := make([][]MapObject, side*side)
	var main []MapObject

	for _, obj := range objects {
		cl, ok := classes.At(obj.ClassIdx)
		if !ok {
			return nil, nil, misuse("object %q references class %d of %d", obj.Name, obj.ClassIdx, classes.Len())
		}
		if cl.InMain(tileMip) {
			main = append(main, obj)
			continue
		}
		objFrame := obj.Frame
		if objFrame.IsNull() {
			objFrame = polygonsFrame(obj.Polygons)
		}
		idx := frame.CellIndex(objFrame.TopLeft, side)
		tiles[idx] = append(tiles[idx], obj)
	}
	return main, tiles, nil
}
