package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/kmapdev/go-kpack/kpack"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeTestPack(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "test.kpack")
	classes, err := kpack.NewClassDictionary([]kpack.ClassRecord{
		{ID: "city", Type: kpack.ShapePoint},
		{ID: "park", Type: kpack.ShapePolygon, MaxMip: 1},
	})
	require.Nil(t, err)
	p := kpack.New(path)
	p.SetClasses(classes)
	p.SetMips(0, 10)
	objs := []kpack.MapObject{
		{Name: "town", ClassIdx: 0, Polygons: []kpack.Polygon{{Points: []kpack.GeoCoor{{Lat: 5, Lon: 5}}}}},
		{Name: "north", ClassIdx: 1, Polygons: []kpack.Polygon{{Points: []kpack.GeoCoor{{Lat: 9, Lon: 1}, {Lat: 9, Lon: 2}, {Lat: 8, Lon: 2}}}}},
		{Name: "south", ClassIdx: 1, Polygons: []kpack.Polygon{{Points: []kpack.GeoCoor{{Lat: 2, Lon: 8}, {Lat: 2, Lon: 9}, {Lat: 1, Lon: 9}}}}},
	}
	require.Nil(t, p.SetObjects(objs, 1))
	require.Nil(t, p.Save())
	return path
}

func TestTileCommand(t *testing.T) {
	kpack.SetQuietMode(true)
	path := writeTestPack(t)
	parser := kong.Must(&cli)

	ctx, err := parser.Parse([]string{"tile", path})
	require.Nil(t, err)
	assert.Equal(t, -1, cli.Tile.Index)
	var out bytes.Buffer
	require.Nil(t, run(ctx.Command(), zaptest.NewLogger(t), &out))
	fc, err := geojson.UnmarshalFeatureCollection(out.Bytes())
	require.Nil(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "town", fc.Features[0].Properties[kpack.NameProperty])

	ctx, err = parser.Parse([]string{"tile", path, "0"})
	require.Nil(t, err)
	assert.Equal(t, 0, cli.Tile.Index)
	out.Reset()
	require.Nil(t, run(ctx.Command(), zaptest.NewLogger(t), &out))
	_, err = geojson.UnmarshalFeatureCollection(out.Bytes())
	assert.Nil(t, err)

	ctx, err = parser.Parse([]string{"tile", path, "99"})
	require.Nil(t, err)
	assert.ErrorIs(t, run(ctx.Command(), zaptest.NewLogger(t), &out), kpack.ErrMisuse)
}

func TestRunCommands(t *testing.T) {
	kpack.SetQuietMode(true)
	path := writeTestPack(t)
	parser := kong.Must(&cli)

	ctx, err := parser.Parse([]string{"show", path})
	require.Nil(t, err)
	var out bytes.Buffer
	require.Nil(t, run(ctx.Command(), zaptest.NewLogger(t), &out))
	assert.Contains(t, out.String(), "main objects: 1")

	ctx, err = parser.Parse([]string{"verify", path})
	require.Nil(t, err)
	assert.Nil(t, run(ctx.Command(), zaptest.NewLogger(t), &out))

	ctx, err = parser.Parse([]string{"version"})
	require.Nil(t, err)
	out.Reset()
	require.Nil(t, run(ctx.Command(), zaptest.NewLogger(t), &out))
	assert.Contains(t, out.String(), "kpack dev")

	assert.NotNil(t, run("nope", zaptest.NewLogger(t), &out))
}
