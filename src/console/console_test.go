package console

import (
	"strings"
	"testing"

	"github.com/tandemlabs/tandem/src/bus"
	"github.com/tandemlabs/tandem/src/common"
	"github.com/tandemlabs/tandem/src/engine"
	"github.com/tandemlabs/tandem/src/ledger"
	"github.com/tandemlabs/tandem/src/link"
)

func testEngine(t *testing.T) *engine.Engine {
	return engine.NewEngine(
		engine.TestConfig(t),
		ledger.NewLedger(ledger.DefaultGenesis(), common.NewTestEntry(t, common.TestLogLevel)),
		ledger.NewInmemStore(),
		[]link.Link{link.NewInmemLink(), link.NewInmemLink()},
		bus.NewBus(common.NewTestEntry(t, common.TestLogLevel)),
	)
}

func TestSendAndMint(t *testing.T) {
	e := testEngine(t)

	input := strings.NewReader("send Alice Bob 3\nmint Bob 10\nexit\n")

	NewConsole(e, input).Run()

	pool := e.Snapshot().Mempool

	if len(pool) != 2 {
		t.Fatalf("mempool should have 2 transactions, not %d", len(pool))
	}

	if pool[0].From != "Alice" || pool[0].To != "Bob" || pool[0].Amount != 3 {
		t.Fatalf("unexpected first transaction %+v", pool[0])
	}

	if pool[1].From != ledger.Treasury || pool[1].To != "Bob" || pool[1].Amount != 10 {
		t.Fatalf("mint should debit the treasury, got %+v", pool[1])
	}
}

func TestControls(t *testing.T) {
	e := testEngine(t)

	input := strings.NewReader("start\nexit\n")

	NewConsole(e, input).Run()

	if !e.IsRunning() {
		t.Fatal("engine should be running after the start command")
	}
}

func TestBadInput(t *testing.T) {
	e := testEngine(t)

	input := strings.NewReader("send Alice Bob\nsend Alice Bob banana\nmumble\nexit\n")

	NewConsole(e, input).Run()

	if pool := e.Snapshot().Mempool; len(pool) != 0 {
		t.Fatalf("bad input should queue nothing, mempool has %d", len(pool))
	}
}
