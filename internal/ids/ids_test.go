package ids

import (
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNewProducesValidULID(t *testing.T) {
	id := New()
	if len(id) != 26 {
		t.Fatalf("len = %d", len(id))
	}
	if _, err := ulid.Parse(id); err != nil {
		t.Fatalf("not a ULID: %v", err)
	}
}

func TestNewAtOrdersByTimestamp(t *testing.T) {
	earlier := NewAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	later := NewAt(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	if !(earlier < later) {
		t.Fatalf("ids not time ordered: %s vs %s", earlier, later)
	}
}

func TestNewIsUniqueUnderConcurrency(t *testing.T) {
	const n = 200
	var (
		mu  sync.Mutex
		ids = make(map[string]struct{}, n)
		wg  sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := New()
			mu.Lock()
			ids[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(ids) != n {
		t.Fatalf("collisions: got %d unique ids", len(ids))
	}
}
