package frequency

import "testing"

func TestCountScopesAndWindow(t *testing.T) {
	c := New(10)
	c.Record(1000, "alice", "sess-1", "exec")
	c.Record(2000, "alice", "sess-1", "read")
	c.Record(3000, "bob", "sess-2", "exec")
	c.Record(60000, "alice", "sess-1", "exec") // outside a 10s window from now=5000, inside from now=65000

	if got := c.Count(5000, 10, ScopeAgent, "alice", ""); got != 2 {
		t.Fatalf("agent scope count = %d, want 2", got)
	}
	if got := c.Count(5000, 10, ScopeSession, "", "sess-2"); got != 1 {
		t.Fatalf("session scope count = %d, want 1", got)
	}
	if got := c.Count(5000, 10, ScopeGlobal, "", ""); got != 3 {
		t.Fatalf("global scope count = %d, want 3", got)
	}
	if got := c.Count(65000, 10, ScopeAgent, "alice", ""); got != 1 {
		t.Fatalf("windowed agent count = %d, want 1", got)
	}
}

func TestCounterOverwritesOldestWhenFull(t *testing.T) {
	c := New(2)
	c.Record(1000, "a", "s", "t1")
	c.Record(2000, "a", "s", "t2")
	c.Record(3000, "a", "s", "t3") // overwrites slot for t1

	if got := c.Count(3000, 100, ScopeGlobal, "", ""); got != 2 {
		t.Fatalf("expected ring capped at capacity, got %d", got)
	}
}

func TestClearResetsRing(t *testing.T) {
	c := New(4)
	c.Record(1000, "a", "s", "t")
	c.Clear()
	if got := c.Count(1000, 100, ScopeGlobal, "", ""); got != 0 {
		t.Fatalf("expected 0 after Clear, got %d", got)
	}
}
