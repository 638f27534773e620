package service

import (
	"sync"
	"testing"
)

func TestUserLocks_EntriesDroppedWhenIdle(t *testing.T) {
	var locks userLocks

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("u1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("expected 50 increments, got %d", counter)
	}
	if n := locks.len(); n != 0 {
		t.Errorf("expected no entries left, got %d", n)
	}
}

func TestUserLocks_HeldEntrySurvives(t *testing.T) {
	var locks userLocks

	unlockA := locks.lock("a")
	unlockB := locks.lock("b")
	if n := locks.len(); n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}
	unlockA()
	if n := locks.len(); n != 1 {
		t.Errorf("expected 1 entry, got %d", n)
	}
	unlockB()
	if n := locks.len(); n != 0 {
		t.Errorf("expected no entries, got %d", n)
	}
}
