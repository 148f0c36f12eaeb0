package utils

import "testing"

func TestTermID(t *testing.T) {
	if TermID("") != "" {
		t.Error("Expected empty id for empty term")
	}

	id := TermID("Copa do Mundo")
	if len(id) != 32 {
		t.Fatalf("Expected 32 hex characters, got %q", id)
	}
	if TermID("copa do mundo") != id {
		t.Error("Expected case-insensitive ids")
	}
	if TermID("copa america") == id {
		t.Error("Expected different terms to get different ids")
	}
	if got := TermIDShort("Copa do Mundo"); got != id[:8] {
		t.Errorf("Expected short id %q, got %q", id[:8], got)
	}
}
