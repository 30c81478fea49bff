package cache

import (
	"context"
	"strings"
	"sync"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  Which MODEL has most damages? ", "which model has most damages?"},
		{"which\tmodel \n has   most damages?", "which model has most damages?"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestMemory_HitAfterNormalization(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	c.Set(ctx, "Which model has most damages?", "Ford F150.")

	resp, ok := c.Get(ctx, "  which   MODEL has most damages?  ")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if resp != "Ford F150." {
		t.Errorf("resp = %q", resp)
	}
}

func TestMemory_Miss(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	c.Set(ctx, "which model has most damages?", "x")

	if _, ok := c.Get(ctx, "which model has most damages"); ok {
		t.Error("punctuation difference should miss")
	}
}

func TestMemory_Overwrite(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	c.Set(ctx, "q", "first")
	c.Set(ctx, "Q", "second")

	if resp, _ := c.Get(ctx, "q"); resp != "second" {
		t.Errorf("resp = %q, want second", resp)
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
}

func TestMemory_Concurrent(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(ctx, "q", "a")
				c.Get(ctx, "q")
			}
		}()
	}
	wg.Wait()
}

func TestKey_StableAcrossNormalization(t *testing.T) {
	if Key("Hello  World") != Key("hello world") {
		t.Error("keys differ for equivalent queries")
	}
	if !strings.HasPrefix(Key("x"), keyPrefix) {
		t.Errorf("key %q missing prefix", Key("x"))
	}
}
