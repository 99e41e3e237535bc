package kpack

import (
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// ProgressWriter creates progress trackers for long running pack operations
// such as saving every tile or loading a whole file.
type ProgressWriter interface {
	// NewCountProgress tracks an operation over total items.
	NewCountProgress(total int64, description string) Progress
	// NewBytesProgress tracks an operation over total bytes.
	NewBytesProgress(total int64, description string) Progress
}

// Progress is one active tracker.
type Progress interface {
	io.Writer
	Add(num int)
	Close() error
}

var (
	progressMu     sync.RWMutex
	progressWriter ProgressWriter = barProgressWriter{}
)

// SetProgressWriter replaces the package wide progress writer used by pack
// files that were not given one with WithProgress. nil disables reporting.
func SetProgressWriter(pw ProgressWriter) {
	progressMu.Lock()
	defer progressMu.Unlock()
	if pw == nil {
		pw = quietProgressWriter{}
	}
	progressWriter = pw
}

// SetQuietMode switches the package wide writer between progress bars and silence.
func SetQuietMode(quiet bool) {
	if quiet {
		SetProgressWriter(nil)
	} else {
		SetProgressWriter(barProgressWriter{})
	}
}

func currentProgressWriter() ProgressWriter {
	progressMu.RLock()
	defer progressMu.RUnlock()
	return progressWriter
}

// NewBytesProgress tracks a byte operation with the package wide writer.
func NewBytesProgress(total int64, description string) Progress {
	return currentProgressWriter().NewBytesProgress(total, description)
}

type barProgressWriter struct{}

func (barProgressWriter) NewCountProgress(total int64, description string) Progress {
	return &barProgress{bar: progressbar.Default(total, description)}
}

func (barProgressWriter) NewBytesProgress(total int64, description string) Progress {
	return &barProgress{bar: progressbar.DefaultBytes(total, description)}
}

type barProgress struct {
	bar *progressbar.ProgressBar
}

func (p *barProgress) Write(data []byte) (int, error) {
	return p.bar.Write(data)
}

func (p *barProgress) Add(num int) {
	p.bar.Add(num)
}

func (p *barProgress) Close() error {
	return p.bar.Close()
}

type quietProgressWriter struct{}

func (quietProgressWriter) NewCountProgress(int64, string) Progress {
	return quietProgress{}
}

func (quietProgressWriter) NewBytesProgress(int64, string) Progress {
	return quietProgress{}
}

type quietProgress struct{}

func (quietProgress) Write(data []byte) (int, error) {
	return len(data), nil
}

func (quietProgress) Add(int) {}

func (quietProgress) Close() error {
	return nil
}
