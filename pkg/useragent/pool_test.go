package useragent

import (
	"sync"
	"testing"
)

func TestNewPool_Defaults(t *testing.T) {
	p := NewPool(nil)
	if len(p.GetAll()) != len(DefaultPool) {
		t.Fatalf("expected default pool of %d agents, got %d", len(DefaultPool), len(p.GetAll()))
	}
}

func TestNewStatic(t *testing.T) {
	p := NewStatic("TestAgent/1.0")
	for i := 0; i < 5; i++ {
		if got := p.GetSequential(); got != "TestAgent/1.0" {
			t.Fatalf("expected static agent, got %q", got)
		}
	}
}

func TestGetSequential_RoundRobin(t *testing.T) {
	uas := []string{"a", "b", "c"}
	p := NewPool(uas)

	for i := 0; i < 9; i++ {
		got := p.GetSequential()
		want := uas[i%3]
		if got != want {
			t.Errorf("call %d: expected %q, got %q", i, want, got)
		}
	}
}

func TestGetRandom_InPool(t *testing.T) {
	uas := []string{"x", "y"}
	p := NewPool(uas)

	for i := 0; i < 20; i++ {
		got := p.GetRandom()
		if got != "x" && got != "y" {
			t.Fatalf("random agent %q not in pool", got)
		}
	}
}

func TestPool_ConcurrentAccess(t *testing.T) {
	p := NewPool([]string{"a", "b", "c"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.GetSequential() == "" {
				t.Error("got empty agent from non-empty pool")
			}
		}()
	}
	wg.Wait()
}

func TestNewPool_CopiesInput(t *testing.T) {
	uas := []string{"original"}
	p := NewPool(uas)
	uas[0] = "mutated"

	if got := p.GetSequential(); got != "original" {
		t.Errorf("pool should not observe caller mutation, got %q", got)
	}
}
