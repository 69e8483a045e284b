package watcher

import (
	"sync"
	"time"
)

// Op is the kind of change observed for a document
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// Change is a settled change to one document, relative to the watched root
type Change struct {
	Path string
	Op   Op
	At   time.Time
}

// Debouncer holds changes back until a path has been quiet for the delay.
// Changes to the same path in that window merge into one.
type Debouncer struct {
	delay   time.Duration
	pending map[string]*pendingChange
	mu      sync.Mutex
	out     chan Change
	stopCh  chan struct{}
	stopped bool
}

type pendingChange struct {
	change Change
	timer  *time.Timer
}

// NewDebouncer creates a Debouncer with the given quiet period
func NewDebouncer(delayMs int) *Debouncer {
	return &Debouncer{
		delay:   time.Duration(delayMs) * time.Millisecond,
		pending: make(map[string]*pendingChange),
		out:     make(chan Change, 64),
		stopCh:  make(chan struct{}),
	}
}

// Changes returns the channel of settled changes
func (d *Debouncer) Changes() <-chan Change {
	return d.out
}

// Add records a change for path and restarts its quiet period
func (d *Debouncer) Add(path string, op Op) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	now := time.Now()
	p, ok := d.pending[path]
	if !ok {
		d.pending[path] = &pendingChange{
			change: Change{Path: path, Op: op, At: now},
			timer:  time.AfterFunc(d.delay, func() { d.emit(path) }),
		}
		return
	}

	p.timer.Stop()
	p.change.Op = merge(p.change.Op, op)
	p.change.At = now
	p.timer = time.AfterFunc(d.delay, func() { d.emit(path) })
}

// merge folds a new op into a pending one. A removal followed by a create
// is an edit by an editor that replaces the file on save.
func merge(prev, next Op) Op {
	switch {
	case next == OpRemove:
		return OpRemove
	case prev == OpRemove:
		return OpWrite
	case prev == OpCreate:
		return OpCreate
	default:
		return next
	}
}

func (d *Debouncer) emit(path string) {
	d.mu.Lock()
	p, ok := d.pending[path]
	if ok {
		delete(d.pending, path)
	}
	d.mu.Unlock()

	if !ok {
		return
	}
	select {
	case d.out <- p.change:
	case <-d.stopCh:
	}
}

// Flush emits every pending change now
func (d *Debouncer) Flush() {
	d.mu.Lock()
	paths := make([]string, 0, len(d.pending))
	for path, p := range d.pending {
		p.timer.Stop()
		paths = append(paths, path)
	}
	d.mu.Unlock()

	for _, path := range paths {
		d.emit(path)
	}
}

// Stop drops pending changes and closes the channel
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, p := range d.pending {
		p.timer.Stop()
	}
	d.pending = make(map[string]*pendingChange)
	close(d.stopCh)
	d.mu.Unlock()
}

// Pending returns the number of changes waiting for their quiet period
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
