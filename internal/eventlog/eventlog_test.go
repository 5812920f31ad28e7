package eventlog

import "testing"

func TestAppendAssignsIncreasingSeq(t *testing.T) {
	l := New(4)
	for i := 1; i <= 3; i++ {
		seq := l.Append(uint64(i), "t", nil)
		if seq != uint64(i) {
			t.Fatalf("expected seq %d, got %d", i, seq)
		}
	}
	oldest, latest := l.Bounds()
	if oldest != 1 || latest != 3 {
		t.Fatalf("expected bounds [1,3], got [%d,%d]", oldest, latest)
	}
}

func TestAppendEvictsOldestOnceFull(t *testing.T) {
	l := New(3)
	for i := 1; i <= 5; i++ {
		l.Append(uint64(i), "t", i)
	}
	oldest, latest := l.Bounds()
	if oldest != 3 || latest != 5 {
		t.Fatalf("expected bounds [3,5], got [%d,%d]", oldest, latest)
	}
	if l.Dropped() != 2 {
		t.Fatalf("expected 2 dropped, got %d", l.Dropped())
	}
}

func TestSinceReturnsTailAfterSeq(t *testing.T) {
	l := New(5)
	for i := 1; i <= 5; i++ {
		l.Append(uint64(i), "t", i)
	}
	entries, ok := l.Since(2)
	if !ok {
		t.Fatalf("expected ok")
	}
	if len(entries) != 3 || entries[0].Seq != 3 || entries[2].Seq != 5 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestSinceSignalsEvictionWhenTailIsGone(t *testing.T) {
	l := New(3)
	for i := 1; i <= 6; i++ {
		l.Append(uint64(i), "t", i)
	}
	// oldest retained is 4; afterSeq=1 predates oldest-1=3.
	_, ok := l.Since(1)
	if ok {
		t.Fatalf("expected eviction signal")
	}
}

func TestSinceOnEmptyBufferReturnsEmptyRange(t *testing.T) {
	l := New(3)
	entries, ok := l.Since(0)
	if !ok || len(entries) != 0 {
		t.Fatalf("expected ok with empty range, got ok=%v entries=%v", ok, entries)
	}
}

func TestRangeValidatesBounds(t *testing.T) {
	l := New(4)
	for i := 1; i <= 4; i++ {
		l.Append(uint64(i), "t", i)
	}
	entries, ok := l.Range(2, 3)
	if !ok || len(entries) != 2 || entries[0].Seq != 2 || entries[1].Seq != 3 {
		t.Fatalf("unexpected range result: ok=%v entries=%+v", ok, entries)
	}
	if _, ok := l.Range(0, 1); ok {
		t.Fatalf("expected range below oldest to fail")
	}
	if _, ok := l.Range(3, 10); ok {
		t.Fatalf("expected range above latest to fail")
	}
}
