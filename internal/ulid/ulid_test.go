package ulid

import (
	"sort"
	"strings"
	"testing"
	"time"
)

func TestNew_Length(t *testing.T) {
	id := New()
	if len(id) != 26 {
		t.Errorf("expected 26 characters, got %d (%q)", len(id), id)
	}
}

func TestNew_Alphabet(t *testing.T) {
	id := New()
	for i := 0; i < len(id); i++ {
		if !strings.ContainsRune(crockford, rune(id[i])) {
			t.Errorf("expected only Crockford Base32 characters, got %q at %d", id[i], i)
		}
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("expected unique ids, got duplicate %q", id)
		}
		seen[id] = true
	}
}

func TestNew_SortsByTime(t *testing.T) {
	first := New()
	time.Sleep(2 * time.Millisecond)
	second := New()

	ids := []string{second, first}
	sort.Strings(ids)
	if ids[0] != first {
		t.Errorf("expected %q to sort before %q", first, second)
	}
}
