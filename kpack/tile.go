package kpack

import "sync"

// TileStatus is the lifecycle state of a tile's contents.
type TileStatus uint8

const (
	// TileEmpty tiles have never been populated.
	TileEmpty TileStatus = iota
	// TileNull tiles exist on disk but are not loaded.
	TileNull
	// TileLoading tiles have a load in flight; further loads are no-ops.
	TileLoading
	// TileLoaded tiles are in memory and may be read and mutated.
	TileLoaded
)

func (s TileStatus) String() string {
	switch s {
	case TileEmpty:
		return "empty"
	case TileNull:
		return "null"
	case TileLoading:
		return "loading"
	case TileLoaded:
		return "loaded"
	}
	return "unknown"
}

// Tile is a set of objects with a load status. The status is guarded by the
// tile's own lock, so different tiles can be loaded from different goroutines.
type Tile struct {
	mu      sync.Mutex
	status  TileStatus
	objects []MapObject
}

func newTile(status TileStatus, objects []MapObject) *Tile {
	return &Tile{status: status, objects: objects}
}

// Status returns the current status.
func (t *Tile) Status() TileStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Objects returns the loaded objects. The slice is shared with the tile;
// edits made through it are kept and written by the next save.
func (t *Tile) Objects() []MapObject {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TileLoaded {
		return nil
	}
	return t.objects
}

// Len returns the number of loaded objects.
func (t *Tile) Len() int {
	return len(t.Objects())
}

// Append adds objects to a loaded or never populated tile. Tiles still on
// disk must be loaded first.
func (t *Tile) Append(objs ...MapObject) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TileLoaded && t.status != TileEmpty {
		return misuse("cannot append to a %s tile", t.status)
	}
	t.objects = append(t.objects, objs...)
	t.status = TileLoaded
	return nil
}

// beginLoad moves a tile that is on disk to TileLoading. It returns false
// when there is nothing to load or a load is already in flight.
func (t *Tile) beginLoad() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TileNull {
		return false
	}
	t.status = TileLoading
	return true
}

func (t *Tile) finishLoad(objs []MapObject) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.objects = objs
	t.status = TileLoaded
}

func (t *Tile) abortLoad() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = TileNull
}

// set replaces the contents and status.
func (t *Tile) set(status TileStatus, objects []MapObject) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
	t.objects = objects
}

// contents returns the objects to write on save; empty tiles have none.
func (t *Tile) contents() ([]MapObject, TileStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.objects, t.status
}
