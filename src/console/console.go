// Package console implements the interactive stdin console of the
// coordinator. It queues transactions and drives the engine controls without
// going through the HTTP service.
package console

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/tandemlabs/tandem/src/engine"
	"github.com/tandemlabs/tandem/src/ledger"
)

// Console reads commands line by line from in and applies them to the
// engine.
type Console struct {
	engine *engine.Engine
	in     io.Reader
}

// NewConsole ...
func NewConsole(e *engine.Engine, in io.Reader) *Console {
	return &Console{
		engine: e,
		in:     in,
	}
}

// Run processes commands until EOF or an exit command. This is a blocking
// call.
func (c *Console) Run() {
	pterm.Info.Println("Type transactions like: send Alice Bob 3")
	pterm.Info.Println("Or: mint Bob 10 (mints from Treasury)")

	scanner := bufio.NewScanner(c.in)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !c.exec(line) {
			return
		}
	}
}

// exec applies a single command. It returns false when the console should
// stop.
func (c *Console) exec(line string) bool {
	parts := strings.Fields(line)

	switch strings.ToLower(parts[0]) {
	case "send":
		if len(parts) != 4 {
			pterm.Warning.Println("Usage: send <from> <to> <amt>")
			return true
		}
		c.queue(parts[1], parts[2], parts[3])
	case "mint":
		if len(parts) != 3 {
			pterm.Warning.Println("Usage: mint <to> <amt>")
			return true
		}
		c.queue(ledger.Treasury, parts[1], parts[2])
	case "bal":
		c.printBalances()
	case "state":
		c.printState()
	case "start":
		c.engine.Start()
		pterm.Success.Println("Rounds started")
	case "stop":
		c.engine.Stop()
		pterm.Success.Println("Rounds stopping at next boundary")
	case "reset":
		c.engine.Reset()
		pterm.Success.Println("Reset requested")
	case "exit", "quit":
		return false
	default:
		pterm.Warning.Println("Unknown. Try: send Alice Bob 3 | mint Bob 5 | bal | state | start | stop | reset | exit")
	}

	return true
}

func (c *Console) queue(from, to, amtStr string) {
	amt, err := strconv.Atoi(amtStr)
	if err != nil {
		pterm.Warning.Printfln("Bad amount %q", amtStr)
		return
	}

	tx := ledger.Transaction{From: from, To: to, Amount: amt}

	if err := c.engine.SubmitTx(tx); err != nil {
		pterm.Warning.Printfln("Rejected: %v", err)
		return
	}

	pterm.Success.Printfln("Queued tx: %s", tx.String())
}

func (c *Console) printBalances() {
	balances := c.engine.Snapshot().Balances

	accounts := make([]string, 0, len(balances))
	for account := range balances {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)

	items := make([]string, len(accounts))
	for i, account := range accounts {
		items[i] = fmt.Sprintf("%s=%d", account, balances[account])
	}

	pterm.Info.Printfln("Balances: %s", strings.Join(items, ", "))
}

func (c *Console) printState() {
	snapshot := c.engine.Snapshot()

	pterm.Info.Printfln("round=%d leader=%d height=%d mempool=%d running=%t",
		snapshot.Round,
		snapshot.Leader,
		snapshot.BlockHeight,
		len(snapshot.Mempool),
		c.engine.IsRunning())
}
