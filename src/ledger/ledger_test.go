package ledger

import (
	"reflect"
	"testing"

	"github.com/tandemlabs/tandem/src/common"
)

func initLedger(t *testing.T) *Ledger {
	return NewLedger(DefaultGenesis(), common.NewTestEntry(t, common.TestLogLevel))
}

func TestApplyTransfer(t *testing.T) {
	l := initLedger(t)

	if err := l.Enqueue(Transaction{From: "Alice", To: "Bob", Amount: 30}); err != nil {
		t.Fatal(err)
	}

	batch := l.TakeBatch(5)
	included := l.Apply(batch)

	if len(included) != 1 {
		t.Fatalf("included should have 1 transaction, not %d", len(included))
	}

	expected := map[string]int{"Alice": 70, "Bob": 30, Treasury: 0}
	if !reflect.DeepEqual(l.Balances(), expected) {
		t.Fatalf("balances should be %v, not %v", expected, l.Balances())
	}
}

func TestApplyUnderfunded(t *testing.T) {
	l := initLedger(t)

	l.Enqueue(Transaction{From: "Bob", To: "Alice", Amount: 10})

	included := l.Apply(l.TakeBatch(5))

	if len(included) != 0 {
		t.Fatalf("included should be empty, not %v", included)
	}

	if l.Balances()["Alice"] != 100 || l.Balances()["Bob"] != 0 {
		t.Fatalf("balances should be untouched, got %v", l.Balances())
	}
}

func TestApplyUnknownAccounts(t *testing.T) {
	l := initLedger(t)

	batch := []Transaction{
		{From: "Mallory", To: "Bob", Amount: 1},
		{From: "Alice", To: "Mallory", Amount: 1},
	}

	if included := l.Apply(batch); len(included) != 0 {
		t.Fatalf("included should be empty, not %v", included)
	}
}

func TestApplyOrderWithinBatch(t *testing.T) {
	l := initLedger(t)

	// Bob can only pay Alice after Alice has paid Bob.
	batch := []Transaction{
		{From: "Alice", To: "Bob", Amount: 30},
		{From: "Bob", To: "Alice", Amount: 10},
	}

	included := l.Apply(batch)

	if len(included) != 2 {
		t.Fatalf("included should have 2 transactions, not %d", len(included))
	}

	expected := map[string]int{"Alice": 80, "Bob": 20, Treasury: 0}
	if !reflect.DeepEqual(l.Balances(), expected) {
		t.Fatalf("balances should be %v, not %v", expected, l.Balances())
	}
}

func TestEnqueueNonPositive(t *testing.T) {
	l := initLedger(t)

	if err := l.Enqueue(Transaction{From: "Alice", To: "Bob", Amount: 0}); err != ErrNonPositiveAmount {
		t.Fatalf("expected ErrNonPositiveAmount, got %v", err)
	}

	if err := l.Enqueue(Transaction{From: "Alice", To: "Bob", Amount: -5}); err != ErrNonPositiveAmount {
		t.Fatalf("expected ErrNonPositiveAmount, got %v", err)
	}

	if l.MempoolSize() != 0 {
		t.Fatalf("mempool should be empty, has %d", l.MempoolSize())
	}
}

func TestTakeBatch(t *testing.T) {
	l := initLedger(t)

	for i := 0; i < 7; i++ {
		l.Enqueue(Transaction{From: "Alice", To: "Bob", Amount: i + 1})
	}

	batch := l.TakeBatch(5)

	if len(batch) != 5 {
		t.Fatalf("batch should have 5 transactions, not %d", len(batch))
	}

	// FIFO order
	for i, tx := range batch {
		if tx.Amount != i+1 {
			t.Fatalf("batch[%d] amount should be %d, not %d", i, i+1, tx.Amount)
		}
	}

	if l.MempoolSize() != 2 {
		t.Fatalf("mempool should have 2 transactions left, not %d", l.MempoolSize())
	}

	// Taken transactions never reappear, even if Apply rejects them.
	l.Apply([]Transaction{{From: "Bob", To: "Alice", Amount: 1000}})

	if l.MempoolSize() != 2 {
		t.Fatalf("mempool should still have 2 transactions, not %d", l.MempoolSize())
	}
}

func TestTakeBatchShortPool(t *testing.T) {
	l := initLedger(t)

	l.Enqueue(Transaction{From: "Alice", To: "Bob", Amount: 1})

	if batch := l.TakeBatch(5); len(batch) != 1 {
		t.Fatalf("batch should have 1 transaction, not %d", len(batch))
	}

	if batch := l.TakeBatch(5); len(batch) != 0 {
		t.Fatalf("batch should be empty, not %v", batch)
	}
}

func TestReset(t *testing.T) {
	l := initLedger(t)

	l.Enqueue(Transaction{From: "Alice", To: "Bob", Amount: 30})
	l.Apply(l.TakeBatch(5))
	l.Enqueue(Transaction{From: "Alice", To: "Bob", Amount: 1})

	l.Reset()

	if !reflect.DeepEqual(l.Balances(), DefaultGenesis()) {
		t.Fatalf("balances should be back to genesis, got %v", l.Balances())
	}

	if l.MempoolSize() != 0 {
		t.Fatalf("mempool should be empty, has %d", l.MempoolSize())
	}
}
