package ledger

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrNonPositiveAmount is returned by Enqueue when a transaction carries a
// zero or negative amount. Such transactions never enter the mempool.
var ErrNonPositiveAmount = errors.New("transaction amount must be positive")

// Ledger holds the account balances and the transaction mempool. Balances
// are only ever mutated by Apply, which is called from the single round
// loop, but the mempool is fed from the control surface, so every method
// takes the lock.
type Ledger struct {
	sync.Mutex

	genesis  map[string]int
	balances map[string]int
	mempool  []Transaction

	logger *logrus.Entry
}

// NewLedger creates a Ledger with the given genesis allocation. The genesis
// map is copied and kept aside so that Reset can restore it.
func NewLedger(genesis map[string]int, logger *logrus.Entry) *Ledger {
	l := &Ledger{
		genesis: copyBalances(genesis),
		logger:  logger,
	}

	l.balances = copyBalances(genesis)

	return l
}

// Enqueue appends a transaction to the mempool in arrival order. The only
// check performed here is the amount; balance checks happen at application
// time.
func (l *Ledger) Enqueue(tx Transaction) error {
	if tx.Amount <= 0 {
		return ErrNonPositiveAmount
	}

	l.Lock()
	defer l.Unlock()

	l.mempool = append(l.mempool, tx)

	l.logger.WithFields(logrus.Fields{
		"tx":      tx.String(),
		"mempool": len(l.mempool),
	}).Debug("Queued transaction")

	return nil
}

// TakeBatch removes and returns the mempool prefix of at most n
// transactions. Removed transactions are never re-inserted, even if they are
// later rejected by the balance check.
func (l *Ledger) TakeBatch(n int) []Transaction {
	l.Lock()
	defer l.Unlock()

	if n > len(l.mempool) {
		n = len(l.mempool)
	}

	batch := make([]Transaction, n)
	copy(batch, l.mempool[:n])
	l.mempool = l.mempool[n:]

	return batch
}

// Apply runs the batch against the balances in arrival order and returns the
// sub-sequence of transactions that were actually applied. A transaction is
// dropped when its amount is not positive, when the debit account is unknown
// or underfunded, or when the credit account is unknown. There is no
// rollback; each transaction is atomic relative to the others.
func (l *Ledger) Apply(batch []Transaction) []Transaction {
	l.Lock()
	defer l.Unlock()

	included := []Transaction{}

	for _, tx := range batch {
		if tx.Amount <= 0 {
			l.logger.WithField("tx", tx.String()).Debug("Dropping non-positive transaction")
			continue
		}

		from, ok := l.balances[tx.From]
		if !ok || from < tx.Amount {
			l.logger.WithField("tx", tx.String()).Debug("Dropping underfunded transaction")
			continue
		}

		if _, ok := l.balances[tx.To]; !ok {
			l.logger.WithField("tx", tx.String()).Debug("Dropping transaction to unknown account")
			continue
		}

		l.balances[tx.From] -= tx.Amount
		l.balances[tx.To] += tx.Amount

		included = append(included, tx)
	}

	return included
}

// Balances returns a snapshot of the account balances.
func (l *Ledger) Balances() map[string]int {
	l.Lock()
	defer l.Unlock()

	return copyBalances(l.balances)
}

// Mempool returns a snapshot of the pending transactions in arrival order.
func (l *Ledger) Mempool() []Transaction {
	l.Lock()
	defer l.Unlock()

	pool := make([]Transaction, len(l.mempool))
	copy(pool, l.mempool)

	return pool
}

// MempoolSize returns the number of pending transactions.
func (l *Ledger) MempoolSize() int {
	l.Lock()
	defer l.Unlock()

	return len(l.mempool)
}

// Reset restores the genesis balances and empties the mempool.
func (l *Ledger) Reset() {
	l.Lock()
	defer l.Unlock()

	l.balances = copyBalances(l.genesis)
	l.mempool = nil

	l.logger.Debug("Ledger reset to genesis")
}

func copyBalances(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
