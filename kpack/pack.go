package kpack

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	indexEntryLen = 8
	maxTagLen     = 32
	tileCountLen  = 4
)

// Option configures a PackFile.
type Option func(*PackFile)

// WithLogger sets the logger for load and save events.
func WithLogger(logger *zap.Logger) Option {
	return func(p *PackFile) {
		p.logger = logger
	}
}

// WithCompression sets the block compression used by the next save.
// Loading a file switches to the compression the file was written with.
func WithCompression(c Compression) Option {
	return func(p *PackFile) {
		p.compression = c
	}
}

// WithBorderPrecision sets the scale for border polygons without their own.
func WithBorderPrecision(coef int) Option {
	return func(p *PackFile) {
		p.borderCoef = coef
	}
}

// WithProgress sets the progress writer, overriding SetProgressWriter.
func WithProgress(pw ProgressWriter) Option {
	return func(p *PackFile) {
		p.progress = pw
	}
}

// PackFile is a map stored as one main set of always loaded objects plus a
// grid of tiles, each compressed on its own and loaded on first use.
//
// The header is cheap to read; the class dictionary and main set are read by
// LoadMain; each tile is read by LoadTile. Every load opens the file on its
// own, so a save to the same path must not run concurrently with loads.
type PackFile struct {
	path        string
	logger      *zap.Logger
	compression Compression
	borderCoef  int
	progress    ProgressWriter

	mu       sync.RWMutex
	frame    Frame
	borders  []Polygon
	bordersM []orb.LineString
	mainMip  float64
	tileMip  float64
	classes  *ClassDictionary
	main     *Tile
	tiles    []*Tile

	// tilesStart is the file offset of the first tile, known once the main
	// set is loaded from disk.
	tilesStart int64
}

// New returns a pack file bound to path without touching the file.
func New(path string, opts ...Option) *PackFile {
	p := &PackFile{
		path:        path,
		logger:      zap.NewNop(),
		compression: Zlib,
		borderCoef:  DefaultBorderPrecisionCoef,
		main:        newTile(TileNull, nil),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open returns a pack file for path with its header loaded.
func Open(path string, opts ...Option) (*PackFile, error) {
	p := New(path, opts...)
	if err := p.LoadHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// Path returns the file the pack loads from and saves to by default.
func (p *PackFile) Path() string {
	return p.path
}

// Compression returns the block compression of the next save.
func (p *PackFile) Compression() Compression {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.compression
}

// Frame returns the extent of the dataset.
func (p *PackFile) Frame() Frame {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frame
}

// SetFrame sets the extent used to partition objects.
func (p *PackFile) SetFrame(f Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame = f
}

// MainMip returns the threshold below which the main set is hidden.
func (p *PackFile) MainMip() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mainMip
}

// TileMip returns the threshold at which tiles start loading.
func (p *PackFile) TileMip() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tileMip
}

// SetMips sets both visibility thresholds.
func (p *PackFile) SetMips(mainMip, tileMip float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mainMip = mainMip
	p.tileMip = tileMip
}

// Classes returns the class dictionary, nil until loaded or set.
func (p *PackFile) Classes() *ClassDictionary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.classes
}

// SetClasses sets the dictionary objects are encoded against.
func (p *PackFile) SetClasses(d *ClassDictionary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.classes = d
}

// Borders returns the region outlines.
func (p *PackFile) Borders() []Polygon {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Polygon(nil), p.borders...)
}

// BordersMeters returns the non-empty region outlines projected to meters.
func (p *PackFile) BordersMeters() []orb.LineString {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]orb.LineString(nil), p.bordersM...)
}

// AddBorder appends a region outline.
func (p *PackFile) AddBorder(b Polygon) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setBorders(append(p.borders, b))
}

func (p *PackFile) setBorders(borders []Polygon) {
	p.borders = borders
	p.bordersM = p.bordersM[:0]
	for _, b := range borders {
		if !b.IsEmpty() {
			p.bordersM = append(p.bordersM, b.ToMeters())
		}
	}
}

// Main returns the main set.
func (p *PackFile) Main() *Tile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.main
}

// TileCount returns the number of tiles in the grid, known once the main set
// is loaded or objects are set.
func (p *PackFile) TileCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tiles)
}

// Tile returns grid tile idx in whatever state it is.
func (p *PackFile) Tile(idx int) (*Tile, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if idx < 0 || idx >= len(p.tiles) {
		return nil, wrapError("tile", p.path, idx, misuse("index out of %d tiles", len(p.tiles)))
	}
	return p.tiles[idx], nil
}

// SetObjects replaces the main set and the grid with objs partitioned by
// Partition. The class dictionary must be set first. A null frame is
// replaced by the union of the object frames.
func (p *PackFile) SetObjects(objs []MapObject, maxObjectsPerTile int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.classes == nil {
		return wrapError("set objects", p.path, -1, misuse("class dictionary is not set"))
	}
	if p.loadingLocked() {
		return wrapError("set objects", p.path, -1, ErrBusy)
	}
	if p.frame.IsNull() {
		for i := range objs {
			f := objs[i].Frame
			if f.IsNull() {
				f = polygonsFrame(objs[i].Polygons)
			}
			p.frame = p.frame.United(f)
		}
	}
	main, grid, err := Partition(objs, p.classes, p.frame, p.tileMip, maxObjectsPerTile)
	if err != nil {
		return wrapError("set objects", p.path, -1, err)
	}
	p.main.set(TileLoaded, main)
	p.tiles = make([]*Tile, len(grid))
	for i, cell := range grid {
		if len(cell) == 0 {
			p.tiles[i] = newTile(TileEmpty, nil)
		} else {
			p.tiles[i] = newTile(TileLoaded, cell)
		}
	}
	p.logger.Debug("partitioned objects",
		zap.Int("objects", len(objs)),
		zap.Int("main", len(main)),
		zap.Int("tiles", len(grid)))
	return nil
}

// Clear releases the main set, the tiles and the class dictionary, keeping
// the header. It fails with ErrBusy while any load is in flight.
func (p *PackFile) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadingLocked() {
		return wrapError("clear", p.path, -1, ErrBusy)
	}
	p.main.set(TileNull, nil)
	p.tiles = nil
	p.classes = nil
	return nil
}

func (p *PackFile) loadingLocked() bool {
	if p.main.Status() == TileLoading {
		return true
	}
	for _, t := range p.tiles {
		if t.Status() == TileLoading {
			return true
		}
	}
	return false
}

func (p *PackFile) progressWriter() ProgressWriter {
	if p.progress != nil {
		return p.progress
	}
	return currentProgressWriter()
}

type header struct {
	compression Compression
	frame       Frame
	borders     []Polygon
	mainMip     float64
	tileMip     float64
}

func (p *PackFile) setHeaderLocked(h header) {
	p.compression = h.compression
	p.frame = h.frame
	p.setBorders(h.borders)
	p.mainMip = h.mainMip
	p.tileMip = h.tileMip
}

func (p *PackFile) open() (*os.File, int64, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, fi.Size(), nil
}

// LoadHeader reads the format tag, frame, borders and thresholds.
func (p *PackFile) LoadHeader() error {
	f, size, err := p.open()
	if err != nil {
		return wrapError("load header", p.path, -1, err)
	}
	defer f.Close()
	h, err := readHeader(bufio.NewReader(f), size)
	if err != nil {
		p.logger.Warn("failed to read header", zap.String("path", p.path), zap.Error(err))
		return wrapError("load header", p.path, -1, err)
	}
	p.mu.Lock()
	p.setHeaderLocked(h)
	p.mu.Unlock()
	p.logger.Debug("read header",
		zap.String("path", p.path),
		zap.Stringer("compression", h.compression),
		zap.Stringer("frame", h.frame),
		zap.Int("borders", len(h.borders)))
	return nil
}

func readHeader(r io.Reader, size int64) (header, error) {
	var h header
	var tagLen uint16
	if err := binary.Read(r, binary.LittleEndian, &tagLen); err != nil {
		return h, readErr("format tag", err)
	}
	if tagLen > maxTagLen {
		return h, formatError("format tag of %d bytes", tagLen)
	}
	tag := make([]byte, tagLen)
	if _, err := io.ReadFull(r, tag); err != nil {
		return h, readErr("format tag", err)
	}
	c, ok := compressionFromTag(string(tag))
	if !ok {
		return h, formatError("unrecognized format tag %q", tag)
	}
	h.compression = c

	var frame [4]float64
	if err := binary.Read(r, binary.LittleEndian, &frame); err != nil {
		return h, readErr("frame", err)
	}
	h.frame = Frame{
		TopLeft:     GeoCoor{Lat: frame[0], Lon: frame[1]},
		BottomRight: GeoCoor{Lat: frame[2], Lon: frame[3]},
	}

	var hasBorders uint8
	if err := binary.Read(r, binary.LittleEndian, &hasBorders); err != nil {
		return h, readErr("borders flag", err)
	}
	if hasBorders != 0 {
		var count uint32
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return h, readErr("border count", err)
		}
		raw, err := readBlock(r, c, size)
		if err != nil {
			return h, err
		}
		if h.borders, err = decodeBorders(raw, int(count)); err != nil {
			return h, err
		}
	}

	var mips [2]float64
	if err := binary.Read(r, binary.LittleEndian, &mips); err != nil {
		return h, readErr("mips", err)
	}
	h.mainMip, h.tileMip = mips[0], mips[1]
	return h, nil
}

func decodeBorders(raw []byte, count int) ([]Polygon, error) {
	if count > len(raw) {
		return nil, formatError("%d borders cannot fit %d bytes", count, len(raw))
	}
	borders := make([]Polygon, count)
	pos := 0
	for i := range borders {
		b, n, err := DecodePolygon(raw[pos:])
		if err != nil {
			return nil, err
		}
		borders[i] = b
		pos += n
	}
	if pos != len(raw) {
		return nil, formatError("%d trailing bytes after borders", len(raw)-pos)
	}
	return borders, nil
}

type mainData struct {
	header    header
	classes   *ClassDictionary
	objects    []MapObject
	tileCount  int
	tilesStart int64
}

// LoadMain reads the header, the class dictionary and the main set, and
// sizes the grid. It is a no-op once loaded or while a load is in flight.
func (p *PackFile) LoadMain() error {
	p.mu.RLock()
	main := p.main
	p.mu.RUnlock()
	if !main.beginLoad() {
		return nil
	}
	start := time.Now()
	d, err := p.readMain()
	loads.WithLabelValues("main", errorKind(err)).Inc()
	if err != nil {
		main.abortLoad()
		p.logger.Warn("failed to load main set", zap.String("path", p.path), zap.Error(err))
		return wrapError("load main", p.path, -1, err)
	}
	loadDuration.WithLabelValues("main").Observe(time.Since(start).Seconds())

	p.mu.Lock()
	p.setHeaderLocked(d.header)
	p.classes = d.classes
	p.tilesStart = d.tilesStart
	p.tiles = make([]*Tile, d.tileCount)
	for i := range p.tiles {
		p.tiles[i] = newTile(TileNull, nil)
	}
	p.mu.Unlock()
	main.finishLoad(d.objects)

	p.logger.Debug("loaded main set",
		zap.String("path", p.path),
		zap.Int("classes", d.classes.Len()),
		zap.Int("objects", len(d.objects)),
		zap.Int("tiles", d.tileCount),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (p *PackFile) readMain() (mainData, error) {
	var d mainData
	f, size, err := p.open()
	if err != nil {
		return d, err
	}
	defer f.Close()
	r := &countingReader{r: bufio.NewReader(f)}

	if d.header, err = readHeader(r, size); err != nil {
		return d, err
	}
	c := d.header.compression
	if d.classes, err = readClasses(r, size); err != nil {
		return d, err
	}
	if _, err := readBlock(r, c, size); err != nil {
		return d, err
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return d, readErr("main object count", err)
	}
	raw, err := readBlock(r, c, size)
	if err != nil {
		return d, err
	}
	if d.objects, err = decodeObjects(raw, int(count), d.classes); err != nil {
		return d, err
	}

	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return d, readErr("tile count", err)
	}
	if int64(count)*indexEntryLen > size {
		return d, formatError("%d tiles cannot fit a file of %d bytes", count, size)
	}
	d.tileCount = int(count)
	d.tilesStart = r.n
	return d, nil
}

// countingReader tracks how many bytes were consumed from r.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += int64(n)
	return n, err
}

func readClasses(r io.Reader, size int64) (*ClassDictionary, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, readErr("class count", err)
	}
	if int64(count)*ClassRecordLenBytes > size {
		return nil, formatError("%d classes cannot fit a file of %d bytes", count, size)
	}
	records := make([]ClassRecord, count)
	buf := make([]byte, ClassRecordLenBytes)
	for i := range records {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, readErr("class record", err)
		}
		records[i] = deserializeClass(buf)
	}
	d, err := NewClassDictionary(records)
	if err != nil {
		return nil, formatError("class dictionary: %v", err)
	}
	return d, nil
}

// LoadTile loads grid tile idx and returns its objects. The main set must be
// loaded first. A loaded tile is returned as is without touching the file;
// a tile being loaded by another goroutine yields nil. On failure the tile
// stays unloaded and the call may be retried.
func (p *PackFile) LoadTile(idx int) ([]MapObject, error) {
	p.mu.RLock()
	main := p.main
	count := len(p.tiles)
	classes := p.classes
	c := p.compression
	var t *Tile
	if idx >= 0 && idx < count {
		t = p.tiles[idx]
	}
	p.mu.RUnlock()

	if main.Status() != TileLoaded {
		return nil, wrapError("load", p.path, idx, misuse("main set is not loaded"))
	}
	if t == nil {
		return nil, wrapError("load", p.path, idx, misuse("index out of %d tiles", count))
	}
	if !t.beginLoad() {
		return t.Objects(), nil
	}

	start := time.Now()
	objs, err := p.readTile(idx, count, classes, c)
	loads.WithLabelValues("tile", errorKind(err)).Inc()
	if err != nil {
		t.abortLoad()
		p.logger.Warn("failed to load tile", zap.String("path", p.path), zap.Int("tile", idx), zap.Error(err))
		return nil, wrapError("load", p.path, idx, err)
	}
	loadDuration.WithLabelValues("tile").Observe(time.Since(start).Seconds())
	t.finishLoad(objs)
	p.logger.Debug("loaded tile",
		zap.String("path", p.path),
		zap.Int("tile", idx),
		zap.Int("objects", len(objs)),
		zap.Duration("elapsed", time.Since(start)))
	return objs, nil
}

// readIndexStart reads the trailing index position and returns it with the
// number of entries the index holds.
func readIndexStart(f io.ReaderAt, size int64) (int64, int, error) {
	if size < indexEntryLen {
		return 0, 0, formatError("file of %d bytes has no tile index", size)
	}
	var b [indexEntryLen]byte
	if _, err := f.ReadAt(b[:], size-indexEntryLen); err != nil {
		return 0, 0, readErr("tile index position", err)
	}
	start := int64(binary.LittleEndian.Uint64(b[:]))
	if start < 0 || start > size-indexEntryLen {
		return 0, 0, formatError("tile index at %d is outside a file of %d bytes", start, size)
	}
	span := size - indexEntryLen - start
	if span%indexEntryLen != 0 {
		return 0, 0, formatError("tile index of %d bytes is not a whole number of entries", span)
	}
	return start, int(span / indexEntryLen), nil
}

func readTileOffset(f io.ReaderAt, indexStart int64, idx int) (int64, error) {
	var b [indexEntryLen]byte
	if _, err := f.ReadAt(b[:], indexStart+int64(idx)*indexEntryLen); err != nil {
		return 0, readErr("tile index entry", err)
	}
	off := int64(binary.LittleEndian.Uint64(b[:]))
	if off < 0 || off+tileCountLen > indexStart {
		return 0, formatError("tile offset %d is outside the tile section ending at %d", off, indexStart)
	}
	return off, nil
}

func (p *PackFile) readTile(idx, count int, classes *ClassDictionary, c Compression) ([]MapObject, error) {
	f, size, err := p.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	indexStart, n, err := readIndexStart(f, size)
	if err != nil {
		return nil, err
	}
	if n != count {
		return nil, formatError("tile index holds %d tiles, expected %d", n, count)
	}
	off, err := readTileOffset(f, indexStart, idx)
	if err != nil {
		return nil, err
	}

	r := bufio.NewReader(io.NewSectionReader(f, off, indexStart-off))
	var objCount uint32
	if err := binary.Read(r, binary.LittleEndian, &objCount); err != nil {
		return nil, readErr("tile object count", err)
	}
	if objCount == 0 {
		return nil, nil
	}
	raw, err := readBlock(r, c, indexStart-off-tileCountLen-blockHeaderLen)
	if err != nil {
		return nil, err
	}
	return decodeObjects(raw, int(objCount), classes)
}

// LoadTiles loads the given tiles with up to concurrency loads at a time.
// It stops issuing loads after the first failure and returns that failure.
func (p *PackFile) LoadTiles(ctx context.Context, indices []int, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	bar := p.progressWriter().NewCountProgress(int64(len(indices)), "loading tiles")
	defer bar.Close()

	var barMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, idx := range indices {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			_, err := p.LoadTile(idx)
			barMu.Lock()
			bar.Add(1)
			barMu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// LoadAll loads the main set and then every tile.
func (p *PackFile) LoadAll(ctx context.Context) error {
	if err := p.LoadMain(); err != nil {
		return err
	}
	indices := make([]int, p.TileCount())
	for i := range indices {
		indices[i] = i
	}
	return p.LoadTiles(ctx, indices, runtime.GOMAXPROCS(0))
}

// TileEntry describes one tile as recorded in a file's trailing index.
type TileEntry struct {
	Offset      int64
	Length      int64
	ObjectCount uint32
}

// Index reads the trailing tile index and each tile's object count straight
// from the file, without decoding any block.
func (p *PackFile) Index() ([]TileEntry, error) {
	f, size, err := p.open()
	if err != nil {
		return nil, wrapError("index", p.path, -1, err)
	}
	defer f.Close()
	entries, err := readIndex(f, size)
	if err != nil {
		return nil, wrapError("index", p.path, -1, err)
	}
	return entries, nil
}

func readIndex(f io.ReaderAt, size int64) ([]TileEntry, error) {
	indexStart, n, err := readIndexStart(f, size)
	if err != nil {
		return nil, err
	}
	entries := make([]TileEntry, n)
	for i := range entries {
		if entries[i].Offset, err = readTileOffset(f, indexStart, i); err != nil {
			return nil, err
		}
	}
	var b [tileCountLen]byte
	for i := range entries {
		end := indexStart
		if i+1 < n {
			end = entries[i+1].Offset
		}
		entries[i].Length = end - entries[i].Offset
		if _, err := f.ReadAt(b[:], entries[i].Offset); err != nil {
			return nil, readErr("tile object count", err)
		}
		entries[i].ObjectCount = binary.LittleEndian.Uint32(b[:])
	}
	return entries, nil
}

// Save writes the pack to its own path.
func (p *PackFile) Save() error {
	return p.SaveAs("")
}

// SaveAs writes the pack to path, or to its own path when path is empty.
// Tiles still on disk are loaded first so nothing is dropped. The file is
// written next to path and renamed into place once complete.
func (p *PackFile) SaveAs(path string) error {
	if path == "" {
		path = p.path
	}
	start := time.Now()
	n, err := p.save(path)
	saves.WithLabelValues(errorKind(err)).Inc()
	if err != nil {
		p.logger.Warn("failed to save", zap.String("path", path), zap.Error(err))
		return wrapError("save", path, -1, err)
	}
	p.logger.Debug("saved",
		zap.String("path", path),
		zap.Int("tiles", p.TileCount()),
		zap.Int64("bytes", n),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (p *PackFile) save(path string) (int64, error) {
	p.mu.RLock()
	mainStatus := p.main.Status()
	tiles := append([]*Tile(nil), p.tiles...)
	p.mu.RUnlock()
	if mainStatus != TileLoaded {
		return 0, misuse("main set is %s, nothing to save", mainStatus)
	}
	for i, t := range tiles {
		switch t.Status() {
		case TileNull:
			if _, err := p.LoadTile(i); err != nil {
				return 0, err
			}
		case TileLoading:
			return 0, ErrBusy
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.classes == nil {
		return 0, misuse("class dictionary is not set")
	}
	if err := p.savableLocked(); err != nil {
		return 0, err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	w := &countingWriter{w: bufio.NewWriter(f)}
	err = p.writeLocked(w)
	if err == nil {
		err = w.w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return w.n, nil
}

// savableLocked fails with ErrBusy unless the main set and every tile hold
// their final contents. Loaded tiles only change under the write lock.
func (p *PackFile) savableLocked() error {
	if st := p.main.Status(); st != TileLoaded {
		return fmt.Errorf("%w: main set is %s", ErrBusy, st)
	}
	for i, t := range p.tiles {
		if st := t.Status(); st == TileNull || st == TileLoading {
			return fmt.Errorf("%w: tile %d is %s", ErrBusy, i, st)
		}
	}
	return nil
}

func (p *PackFile) writeLocked(w *countingWriter) error {
	c := p.compression
	tag, ok := formatTags[c]
	if !ok {
		return misuse("unknown compression %d", c)
	}
	w.put(uint16(len(tag)))
	w.Write([]byte(tag))
	w.put([4]float64{p.frame.TopLeft.Lat, p.frame.TopLeft.Lon, p.frame.BottomRight.Lat, p.frame.BottomRight.Lon})

	if len(p.borders) > 0 {
		w.put(uint8(1))
		w.put(uint32(len(p.borders)))
		var raw []byte
		for i, b := range p.borders {
			coef := b.PrecisionCoef
			if coef == 0 {
				coef = p.borderCoef
			}
			if !validCoef(coef) {
				return misuse("border %d precision %d", i, coef)
			}
			raw = AppendPolygon(raw, b, coef)
		}
		if err := writeBlock(w, c, raw); err != nil {
			return err
		}
	} else {
		w.put(uint8(0))
	}
	w.put([2]float64{p.mainMip, p.tileMip})

	w.put(uint32(p.classes.Len()))
	for _, cl := range p.classes.records {
		w.Write(serializeClass(cl))
	}
	// reserved slot, always an empty block
	if err := writeBlock(w, c, nil); err != nil {
		return err
	}

	mainObjs, _ := p.main.contents()
	raw, err := encodeObjects(mainObjs, p.classes)
	if err != nil {
		return err
	}
	w.put(uint32(len(mainObjs)))
	if err := writeBlock(w, c, raw); err != nil {
		return err
	}

	w.put(uint32(len(p.tiles)))
	offsets := make([]int64, len(p.tiles))
	bar := p.progressWriter().NewCountProgress(int64(len(p.tiles)), "writing tiles")
	defer bar.Close()
	for i, t := range p.tiles {
		offsets[i] = w.n
		objs, _ := t.contents()
		w.put(uint32(len(objs)))
		if len(objs) > 0 {
			raw, err := encodeObjects(objs, p.classes)
			if err != nil {
				return fmt.Errorf("tile %d: %w", i, err)
			}
			if err := writeBlock(w, c, raw); err != nil {
				return err
			}
		}
		bar.Add(1)
	}

	indexStart := w.n
	for _, off := range offsets {
		w.put(uint64(off))
	}
	w.put(uint64(indexStart))
	return w.err
}

// countingWriter tracks the file position and keeps the first write error.
type countingWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(b []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(b)
	c.n += int64(n)
	c.err = err
	return n, err
}

func (c *countingWriter) put(v interface{}) {
	if c.err == nil {
		binary.Write(c, binary.LittleEndian, v)
	}
}
