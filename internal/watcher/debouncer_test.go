package watcher

import (
	"testing"
	"time"
)

func TestDebouncer_SingleChange(t *testing.T) {
	d := NewDebouncer(50)
	defer d.Stop()

	d.Add("go/intro.md", OpCreate)

	select {
	case c := <-d.Changes():
		if c.Path != "go/intro.md" {
			t.Errorf("expected path 'go/intro.md', got %q", c.Path)
		}
		if c.Op != OpCreate {
			t.Errorf("expected OpCreate, got %v", c.Op)
		}
	case <-time.After(500 * time.Millisecond):
		t.Error("timed out waiting for change")
	}
}

func TestDebouncer_CoalescesWrites(t *testing.T) {
	d := NewDebouncer(100)
	defer d.Stop()

	d.Add("about.md", OpWrite)
	d.Add("about.md", OpWrite)
	d.Add("about.md", OpWrite)

	count := 0
	timeout := time.After(400 * time.Millisecond)

loop:
	for {
		select {
		case <-d.Changes():
			count++
		case <-timeout:
			break loop
		}
	}

	if count != 1 {
		t.Errorf("expected 1 coalesced change, got %d", count)
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		prev     Op
		next     Op
		expected Op
	}{
		{"create then write", OpCreate, OpWrite, OpCreate},
		{"write then write", OpWrite, OpWrite, OpWrite},
		{"create then remove", OpCreate, OpRemove, OpRemove},
		{"write then remove", OpWrite, OpRemove, OpRemove},
		{"remove then create", OpRemove, OpCreate, OpWrite},
		{"remove then write", OpRemove, OpWrite, OpWrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := merge(tt.prev, tt.next); got != tt.expected {
				t.Errorf("merge(%v, %v) = %v, want %v", tt.prev, tt.next, got, tt.expected)
			}
		})
	}
}

func TestDebouncer_SaveByReplace(t *testing.T) {
	d := NewDebouncer(100)
	defer d.Stop()

	d.Add("post.md", OpRemove)
	d.Add("post.md", OpCreate)

	select {
	case c := <-d.Changes():
		if c.Op != OpWrite {
			t.Errorf("expected OpWrite, got %v", c.Op)
		}
	case <-time.After(500 * time.Millisecond):
		t.Error("timed out waiting for change")
	}
}

func TestDebouncer_MultiplePaths(t *testing.T) {
	d := NewDebouncer(50)
	defer d.Stop()

	d.Add("a.md", OpCreate)
	d.Add("b/c.md", OpWrite)

	received := make(map[string]bool)
	timeout := time.After(500 * time.Millisecond)

loop:
	for {
		select {
		case c := <-d.Changes():
			received[c.Path] = true
			if len(received) == 2 {
				break loop
			}
		case <-timeout:
			break loop
		}
	}

	if !received["a.md"] || !received["b/c.md"] {
		t.Errorf("expected both paths, got %v", received)
	}
}

func TestDebouncer_Flush(t *testing.T) {
	d := NewDebouncer(5000)
	defer d.Stop()

	d.Add("a.md", OpCreate)
	if d.Pending() != 1 {
		t.Errorf("expected 1 pending, got %d", d.Pending())
	}

	d.Flush()

	select {
	case c := <-d.Changes():
		if c.Path != "a.md" {
			t.Errorf("expected path 'a.md', got %q", c.Path)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("flush should emit immediately")
	}

	if d.Pending() != 0 {
		t.Errorf("expected 0 pending after flush, got %d", d.Pending())
	}
}

func TestDebouncer_StopDropsPending(t *testing.T) {
	d := NewDebouncer(50)
	d.Add("a.md", OpWrite)
	d.Stop()
	d.Stop()

	d.Add("b.md", OpWrite)
	if d.Pending() != 0 {
		t.Errorf("expected no pending changes after stop, got %d", d.Pending())
	}

	select {
	case c := <-d.Changes():
		t.Errorf("unexpected change %+v", c)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestOp_String(t *testing.T) {
	tests := []struct {
		op       Op
		expected string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{Op(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if tt.op.String() != tt.expected {
			t.Errorf("Op(%d).String() = %q, want %q", tt.op, tt.op.String(), tt.expected)
		}
	}
}
