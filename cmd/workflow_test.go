package cmd

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewWorkflowIDIsUUIDv7(t *testing.T) {
	id, err := newWorkflowID()
	if err != nil {
		t.Fatalf("newWorkflowID: %v", err)
	}
	u, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("workflow id is not a UUID: %q", id)
	}
	if u.Version() != 7 {
		t.Fatalf("expected version 7, got %d (%q)", u.Version(), id)
	}
}

func TestNewWorkflowIDUniqueness(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		id, err := newWorkflowID()
		if err != nil {
			t.Fatal(err)
		}
		if seen[id] {
			t.Fatalf("duplicate workflow id generated: %q", id)
		}
		seen[id] = true
	}
}

func TestNewWorkflowIDSortability(t *testing.T) {
	a, _ := newWorkflowID()
	time.Sleep(2 * time.Millisecond)
	b, _ := newWorkflowID()
	if a >= b {
		t.Fatalf("expected increasing lexical order across time: a=%q b=%q", a, b)
	}
}
