package engine

import (
	"github.com/tandemlabs/tandem/src/ledger"
)

// Event type tags, as they appear in the "type" field of published events.
const (
	EventChal    = "chal"
	EventWitness = "witness"
	EventCommit  = "commit"
	EventSkip    = "skip"
	EventState   = "state"
)

// ChalEvent is published when a challenge is broadcast to the nodes.
type ChalEvent struct {
	Type   string `json:"type"`
	Round  int    `json:"round"`
	Seed   int    `json:"seed"`
	Leader int    `json:"leader"`
	DurMs  int    `json:"durMs"`
}

// WitnessEvent is published for every report observed for the active round,
// whether or not it clears the threshold, and for the synthetic report of a
// forced commit.
type WitnessEvent struct {
	Type  string  `json:"type"`
	Round int     `json:"round"`
	Node  int     `json:"node"`
	Corr  float64 `json:"corr"`
}

// CommitEvent is published when a round commits.
type CommitEvent struct {
	Type       string               `json:"type"`
	Round      int                  `json:"round"`
	Leader     int                  `json:"leader"`
	IncludedTx []ledger.Transaction `json:"includedTx"`
	Balances   map[string]int       `json:"balances"`
}

// SkipEvent is published when the witness window closes without a
// qualifying report.
type SkipEvent struct {
	Type   string `json:"type"`
	Round  int    `json:"round"`
	Leader int    `json:"leader"`
}

// Snapshot is the queryable engine state.
type Snapshot struct {
	Round       int                  `json:"round"`
	Leader      int                  `json:"leader"`
	BlockHeight int                  `json:"blockHeight"`
	Balances    map[string]int       `json:"balances"`
	Mempool     []ledger.Transaction `json:"mempool"`
	Ports       []string             `json:"ports"`
	Threshold   float64              `json:"threshold"`
}

// StateEvent is a Snapshot tagged for the bus. It is published after every
// round, after control actions, and as the first message on a new events
// subscription.
type StateEvent struct {
	Type string `json:"type"`
	Snapshot
}
