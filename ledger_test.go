package payments

import (
	"sync"
	"testing"
	"time"
)

func TestLedgerPutGetRekey(t *testing.T) {
	ledger := NewRequestLedger()
	pc := PaymentContext{Token: "tok", CreditsToSettle: 3}

	ledger.Put("msg-1", pc)

	got, ok := ledger.Get("msg-1")
	if !ok || got.CreditsToSettle != 3 {
		t.Fatalf("expected entry under correlation id, got %v %v", got, ok)
	}

	if !ledger.Rekey("msg-1", "task-1") {
		t.Fatal("rekey of existing entry failed")
	}

	// Reachable under both the work id and the old correlation id.
	if _, ok := ledger.Get("task-1"); !ok {
		t.Error("entry not reachable under work id after rekey")
	}
	if _, ok := ledger.Get("msg-1"); !ok {
		t.Error("entry not reachable under correlation id after rekey")
	}

	if ledger.Rekey("missing", "task-2") {
		t.Error("rekey of unknown correlation id should fail")
	}
}

func TestLedgerRekeyIdempotent(t *testing.T) {
	ledger := NewRequestLedger()
	ledger.Put("msg-1", PaymentContext{})

	if !ledger.Rekey("msg-1", "task-1") {
		t.Fatal("first rekey failed")
	}
	if !ledger.Rekey("msg-1", "task-1") {
		t.Error("repeated rekey to the same work id should succeed")
	}
}

func TestLedgerTryMarkSettledOnce(t *testing.T) {
	ledger := NewRequestLedger()
	ledger.Put("msg-1", PaymentContext{})
	ledger.Rekey("msg-1", "task-1")

	if !ledger.TryMarkSettled("task-1") {
		t.Fatal("first TryMarkSettled should win")
	}
	if ledger.TryMarkSettled("task-1") {
		t.Error("second TryMarkSettled should lose")
	}
	if ledger.TryMarkSettled("msg-1") {
		t.Error("TryMarkSettled via the correlation alias should also lose")
	}
	if ledger.TryMarkSettled("unknown") {
		t.Error("TryMarkSettled on unknown id should lose")
	}
}

func TestLedgerTryMarkSettledConcurrent(t *testing.T) {
	ledger := NewRequestLedger()
	ledger.Put("msg-1", PaymentContext{})
	ledger.Rekey("msg-1", "task-1")

	const goroutines = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ledger.TryMarkSettled("task-1") {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("expected exactly 1 winner, got %d", winners)
	}
}

func TestLedgerRemove(t *testing.T) {
	ledger := NewRequestLedger()
	ledger.Put("msg-1", PaymentContext{})
	ledger.Rekey("msg-1", "task-1")

	ledger.Remove("task-1")

	if _, ok := ledger.Get("task-1"); ok {
		t.Error("entry should be gone after Remove")
	}
	if _, ok := ledger.Get("msg-1"); ok {
		t.Error("alias should be gone after Remove")
	}
	if ledger.Len() != 0 {
		t.Errorf("expected empty ledger, got %d entries", ledger.Len())
	}
}

func TestLedgerEvictsAbandonedEntries(t *testing.T) {
	ledger := NewRequestLedger(WithAbandonTTL(10 * time.Millisecond))

	// Never rekeyed: the executor never started.
	ledger.Put("abandoned", PaymentContext{})

	// Rekeyed entries survive the sweep.
	ledger.Put("active", PaymentContext{})
	ledger.Rekey("active", "task-1")

	time.Sleep(20 * time.Millisecond)

	// Sweeps run lazily on writes.
	ledger.Put("fresh", PaymentContext{})

	if _, ok := ledger.Get("abandoned"); ok {
		t.Error("abandoned entry should be evicted")
	}
	if _, ok := ledger.Get("task-1"); !ok {
		t.Error("rekeyed entry must survive eviction")
	}
	if _, ok := ledger.Get("fresh"); !ok {
		t.Error("fresh entry must survive eviction")
	}
}
