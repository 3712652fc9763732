package logging

import "testing"

func TestRingBufferSnapshotBeforeWraparound(t *testing.T) {
	rb := NewRingBuffer(3)
	rb.Append(Entry{Message: "a"})
	rb.Append(Entry{Message: "b"})

	got := rb.Snapshot()
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Message != "a" || got[1].Message != "b" {
		t.Fatalf("expected oldest-first order, got %+v", got)
	}
}

func TestRingBufferSnapshotAfterWraparound(t *testing.T) {
	rb := NewRingBuffer(3)
	rb.Append(Entry{Message: "a"})
	rb.Append(Entry{Message: "b"})
	rb.Append(Entry{Message: "c"})
	rb.Append(Entry{Message: "d"})

	got := rb.Snapshot()
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	want := []string{"b", "c", "d"}
	for i, w := range want {
		if got[i].Message != w {
			t.Fatalf("expected oldest-first %v, got %+v", want, got)
		}
	}
}

func TestRingBufferDefaultsCapacity(t *testing.T) {
	rb := NewRingBuffer(0)
	if rb.capacity != 500 {
		t.Fatalf("expected default capacity 500, got %d", rb.capacity)
	}
}

func TestRingBufferResizeDiscardsPriorEntries(t *testing.T) {
	rb := NewRingBuffer(2)
	rb.Append(Entry{Message: "a"})
	rb.Resize(5)
	if got := rb.Snapshot(); len(got) != 0 {
		t.Fatalf("expected empty snapshot after resize, got %+v", got)
	}
	rb.Append(Entry{Message: "b"})
	got := rb.Snapshot()
	if len(got) != 1 || got[0].Message != "b" {
		t.Fatalf("expected single entry 'b', got %+v", got)
	}
}
