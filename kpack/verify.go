package kpack

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/RoaringBitmap/roaring/roaring64"
	"go.uber.org/zap"
)

// Verify checks the pack file at path: the main set must decode, the tile
// index must hold one strictly increasing offset per tile inside the tile
// section, and every tile must decode. It reports every problem it finds.
// Objects outside the tile their position selects are logged, not reported,
// since edited tiles may hold them.
func Verify(logger *zap.Logger, path string) error {
	start := time.Now()
	p := New(path, WithLogger(logger))
	if err := p.LoadMain(); err != nil {
		return err
	}
	entries, err := p.Index()
	if err != nil {
		return err
	}
	if len(entries) != p.TileCount() {
		return wrapError("verify", path, -1, formatError("tile index holds %d tiles, header %d", len(entries), p.TileCount()))
	}

	var errs []error
	fail := func(tile int, err error) {
		errs = append(errs, wrapError("verify", path, tile, err))
	}

	p.mu.RLock()
	tilesStart := p.tilesStart
	p.mu.RUnlock()

	// bytes owned by the header, the main set and each tile's object count
	claimed := roaring64.New()
	claimed.AddRange(0, uint64(tilesStart))
	var last int64 = -1
	for i, e := range entries {
		off := uint64(e.Offset)
		switch {
		case claimed.Contains(off) && e.Offset < tilesStart:
			fail(i, formatError("offset %d inside the header and main set ending at %d", e.Offset, tilesStart))
		case claimed.Contains(off):
			fail(i, formatError("offset %d shared with another tile", e.Offset))
		case e.Offset <= last:
			fail(i, formatError("offset %d does not follow %d", e.Offset, last))
		}
		claimed.AddRange(off, off+tileCountLen)
		last = e.Offset
		if e.ObjectCount == 0 && e.Length != tileCountLen {
			fail(i, formatError("empty tile spans %d bytes", e.Length))
		}
	}

	tileMip := p.TileMip()
	classes := p.Classes()
	for i, obj := range p.Main().Objects() {
		if cl, _ := classes.At(obj.ClassIdx); !cl.InMain(tileMip) {
			logger.Warn("main object of a tiled class", zap.Int("object", i), zap.String("class", cl.ID))
		}
	}

	side := int(math.Sqrt(float64(len(entries))))
	frame := p.Frame()
	bar := p.progressWriter().NewCountProgress(int64(len(entries)), "verifying tiles")
	for i, e := range entries {
		objs, err := p.LoadTile(i)
		bar.Add(1)
		if err != nil {
			fail(i, err)
			continue
		}
		if len(objs) != int(e.ObjectCount) {
			fail(i, fmt.Errorf("%w: decoded %d objects, index says %d", ErrCorruption, len(objs), e.ObjectCount))
		}
		for j := range objs {
			if cell := frame.CellIndex(objs[j].Frame.TopLeft, side); cell != i {
				logger.Warn("object outside its cell", zap.Int("tile", i), zap.Int("object", j), zap.Int("cell", cell))
			}
		}
	}
	bar.Close()

	logger.Debug("verify complete",
		zap.String("path", path),
		zap.Int("tiles", len(entries)),
		zap.Uint64("claimed_bytes", claimed.GetCardinality()),
		zap.Int("problems", len(errs)),
		zap.Duration("elapsed", time.Since(start)))
	return errors.Join(errs...)
}
