package session

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBeginEnd(t *testing.T) {
	c := New()
	h := NewHandle()
	if c.IsPreviewing(h) {
		t.Fatal("new handle should not be previewing")
	}

	c.Begin(h, map[string]any{"color": "red"}, "aaa")
	if !c.IsPreviewing(h) {
		t.Fatal("expected preview after Begin")
	}

	// a second preview keeps the first original
	c.Begin(h, map[string]any{"color": "blue"}, "bbb")
	p, err := c.End(h)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]any{"color": "red"}, p.Original); diff != "" {
		t.Errorf("original mismatch (-want +got):\n%s", diff)
	}
	if p.RecordID != "bbb" {
		t.Errorf("RecordID = %q, want bbb", p.RecordID)
	}
	if c.IsPreviewing(h) {
		t.Error("preview should be gone after End")
	}
	if _, err := c.End(h); err == nil {
		t.Error("expected error ending a missing preview")
	}
}

func TestPendingOrderAndClear(t *testing.T) {
	c := New()
	handles := []Handle{"h3", "h1", "h2"}
	for _, h := range handles {
		c.Begin(h, nil, string(h))
	}
	var got []Handle
	for _, p := range c.Pending() {
		got = append(got, p.Handle)
	}
	if diff := cmp.Diff(handles, got); diff != "" {
		t.Errorf("pending order (-want +got):\n%s", diff)
	}

	cleared := c.Clear()
	if len(cleared) != 3 {
		t.Errorf("Clear returned %d previews, want 3", len(cleared))
	}
	if len(c.Pending()) != 0 {
		t.Error("cache not empty after Clear")
	}
}

func TestNewHandleUnique(t *testing.T) {
	if NewHandle() == NewHandle() {
		t.Error("handles should differ")
	}
}
