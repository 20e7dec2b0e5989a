package expr

import (
	"sync"
	"testing"
)

func TestCacheCompileOnce(t *testing.T) {
	c := NewCache()
	src := "{{ s1_start + 1 }}"

	first, err := c.Compile(src)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	second, err := c.Compile(src)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if first != second {
		t.Error("Compile() returned a different template for the same source")
	}

	stats := c.Stats()
	if stats.Misses != 1 || stats.Hits != 1 || stats.Size != 1 {
		t.Errorf("Stats() = %+v, want 1 miss, 1 hit, size 1", stats)
	}
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	c := NewCache()
	if _, err := c.Compile("{{ a + }}"); err == nil {
		t.Fatal("expected syntax error")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestCacheConcurrent(t *testing.T) {
	c := NewCache()
	sources := []string{"{{ a }}", "{{ a + 1 }}", "{{ b ~ a }}", "plain"}

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if _, err := c.Compile(sources[i%len(sources)]); err != nil {
					t.Errorf("Compile() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	stats := c.Stats()
	if stats.Size != len(sources) {
		t.Errorf("Size = %d, want %d", stats.Size, len(sources))
	}
	if stats.Misses != uint64(len(sources)) {
		t.Errorf("Misses = %d, want %d", stats.Misses, len(sources))
	}
	if stats.Hits+stats.Misses != 16*200 {
		t.Errorf("Hits+Misses = %d, want %d", stats.Hits+stats.Misses, 16*200)
	}
}
