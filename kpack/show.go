package kpack

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// Show writes a summary of the pack file at path to out: the header, the
// class dictionary, the main set and the occupied tiles.
func Show(logger *zap.Logger, out io.Writer, path string) error {
	size, digest, err := fileDigest(path)
	if err != nil {
		return wrapError("show", path, -1, err)
	}
	p := New(path, WithLogger(logger))
	if err := p.LoadMain(); err != nil {
		return err
	}
	entries, err := p.Index()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "total size: %s\n", humanize.Bytes(uint64(size)))
	fmt.Fprintf(out, "digest: %016x\n", digest)
	fmt.Fprintf(out, "compression: %s\n", p.Compression())
	fmt.Fprintf(out, "frame: %s\n", p.Frame())
	fmt.Fprintf(out, "borders: %d\n", len(p.Borders()))
	fmt.Fprintf(out, "main mip: %g\n", p.MainMip())
	fmt.Fprintf(out, "tile mip: %g\n", p.TileMip())
	fmt.Fprintf(out, "classes: %d\n", p.Classes().Len())
	for i, cl := range p.Classes().Records() {
		fmt.Fprintf(out, "  %d %s type=%s max_mip=%g precision=%d\n", i, cl.ID, cl.Type, cl.MaxMip, cl.PrecisionCoef)
	}
	fmt.Fprintf(out, "main objects: %d\n", p.Main().Len())

	side := int(math.Sqrt(float64(len(entries))))
	fmt.Fprintf(out, "tiles: %d (%dx%d)\n", len(entries), side, side)
	var occupied, objects int
	for i, e := range entries {
		if e.ObjectCount == 0 {
			continue
		}
		occupied++
		objects += int(e.ObjectCount)
		fmt.Fprintf(out, "  %d objects=%d size=%s\n", i, e.ObjectCount, humanize.Bytes(uint64(e.Length)))
	}
	fmt.Fprintf(out, "occupied tiles: %d\n", occupied)
	fmt.Fprintf(out, "tile objects: %s\n", humanize.Comma(int64(objects)))
	return nil
}

// ShowTile writes tile idx of the pack file at path to out as a GeoJSON
// feature collection. A negative idx selects the main set.
func ShowTile(logger *zap.Logger, out io.Writer, path string, idx int) error {
	p := New(path, WithLogger(logger))
	if err := p.LoadMain(); err != nil {
		return err
	}
	objs := p.Main().Objects()
	if idx >= 0 {
		var err error
		if objs, err = p.LoadTile(idx); err != nil {
			return err
		}
	}
	enc := json.NewEncoder(out)
	return enc.Encode(FeatureCollection(objs, p.Classes()))
}

func fileDigest(path string) (int64, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	h := xxhash.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, 0, err
	}
	return n, h.Sum64(), nil
}
