package round

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestSchedulerRunsAndSkipsEmptyRounds(t *testing.T) {
	store := &mockRoundStore{}
	led := newMockLedger()
	engine := NewEngine(store, led, Config{
		WaitingDuration: 10 * time.Millisecond,
		TickInterval:    2 * time.Millisecond,
		GrowthRate:      50, // crash within a few milliseconds
		MinStake:        1,
	})
	engine.SetEntropy(zeroReader{})
	var mu sync.Mutex
	counter := 0
	engine.SetIDFunc(func() string {
		mu.Lock()
		defer mu.Unlock()
		counter++
		return fmt.Sprintf("id-%d", counter)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	scheduler := NewScheduler(engine)
	err := scheduler.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("scheduler exit: %v", err)
	}

	// Every round was empty, so all of them were skipped straight to Ended
	// and archived without ledger traffic.
	store.mu.Lock()
	archived := len(store.archived)
	store.mu.Unlock()
	if archived == 0 {
		t.Fatal("scheduler never completed a round")
	}
	led.mu.Lock()
	credits := len(led.credits)
	led.mu.Unlock()
	if credits != 0 {
		t.Fatalf("empty rounds produced ledger credits: %d", credits)
	}
}

func TestSchedulerSettlesPlacedBet(t *testing.T) {
	store := &mockRoundStore{}
	led := newMockLedger()
	engine := NewEngine(store, led, Config{
		WaitingDuration: 30 * time.Millisecond,
		TickInterval:    2 * time.Millisecond,
		GrowthRate:      50,
		MinStake:        1,
	})
	engine.SetEntropy(zeroReader{})
	var mu sync.Mutex
	counter := 0
	engine.SetIDFunc(func() string {
		mu.Lock()
		defer mu.Unlock()
		counter++
		return fmt.Sprintf("id-%d", counter)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	scheduler := NewScheduler(engine)
	go func() { done <- scheduler.Run(ctx) }()

	// Keep joining waiting rounds with a low auto target until one of them
	// crashes above it and the auto cashout settles. Placement attempts
	// outside Waiting or into a round already joined simply fail and are
	// retried on the next cycle.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if led.creditCount("alice") > 0 {
			break
		}
		_, _ = engine.PlaceBet("alice", 100, 1.5)
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if got := led.creditCount("alice"); got == 0 {
		t.Fatal("auto cashout never settled")
	}
}
