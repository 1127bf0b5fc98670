package ledger

import "fmt"

// Treasury is the account used as the debit side of mint operations. It is
// not special-cased anywhere in the ledger; it is a normal account with a
// configured starting balance.
const Treasury = "Treasury"

// Transaction moves Amount from one named account to another. A transaction
// is valid iff Amount is strictly positive and the From account holds at
// least Amount at application time.
type Transaction struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int    `json:"amt"`
}

func (tx Transaction) String() string {
	return fmt.Sprintf("%s -> %s : %d", tx.From, tx.To, tx.Amount)
}
