// Package tandem wires the coordinator components together from a config
// object.
package tandem

import (
	"fmt"
	"os"

	"github.com/tandemlabs/tandem/src/bus"
	"github.com/tandemlabs/tandem/src/config"
	"github.com/tandemlabs/tandem/src/console"
	"github.com/tandemlabs/tandem/src/engine"
	"github.com/tandemlabs/tandem/src/ledger"
	"github.com/tandemlabs/tandem/src/link"
	"github.com/tandemlabs/tandem/src/service"
)

// Tandem is the top-level object holding the coordinator components.
type Tandem struct {
	Config  *config.Config
	Ledger  *ledger.Ledger
	Store   ledger.Store
	Links   []link.Link
	Bus     *bus.Bus
	Engine  *engine.Engine
	Service *service.Service
	Console *console.Console
}

// NewTandem ...
func NewTandem(conf *config.Config) *Tandem {
	return &Tandem{
		Config: conf,
	}
}

func (t *Tandem) initLedger() error {
	genesisStore := ledger.NewJSONGenesis(t.Config.DataDir)

	genesis, err := genesisStore.Genesis()

	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("reading genesis.json: %s", err)
		}

		genesis = ledger.DefaultGenesis()

		t.Config.Logger().Debug("No genesis.json, using default allocation")
	}

	t.Ledger = ledger.NewLedger(genesis, t.Config.Logger().WithField("prefix", "ledger"))

	return nil
}

func (t *Tandem) initStore() error {
	if !t.Config.Store {
		t.Store = ledger.NewInmemStore()

		t.Config.Logger().Debug("created new in-mem store")
	} else {
		var err error

		t.Config.Logger().WithField("path", t.Config.DatabaseDir).Debug("Attempting to load or create database")

		t.Store, err = ledger.NewBadgerStore(t.Config.DatabaseDir)

		if err != nil {
			return err
		}

		if t.Store.LastBlockIndex() > 0 {
			t.Config.Logger().Debug("loaded badger store from existing database")
		} else {
			t.Config.Logger().Debug("created new badger store from fresh database")
		}
	}

	return nil
}

// initLinks opens a serial link per configured port. A port that cannot be
// opened leaves a nil slot, so the engine treats that node as absent rather
// than refusing to start.
func (t *Tandem) initLinks() error {
	if len(t.Config.Ports) != 2 {
		return fmt.Errorf("expected 2 ports, got %d", len(t.Config.Ports))
	}

	t.Links = make([]link.Link, len(t.Config.Ports))

	for i, port := range t.Config.Ports {
		lk, err := link.NewSerialLink(port, t.Config.Baud, t.Config.Logger().WithField("prefix", "link"))

		if err != nil {
			t.Config.Logger().WithError(err).Warnf("Could not open %s, node %d absent", port, i)

			continue
		}

		t.Links[i] = lk
	}

	return nil
}

func (t *Tandem) initBus() error {
	t.Bus = bus.NewBus(t.Config.Logger().WithField("prefix", "bus"))

	return nil
}

func (t *Tandem) initEngine() error {
	t.Engine = engine.NewEngine(
		t.Config.EngineConfig(),
		t.Ledger,
		t.Store,
		t.Links,
		t.Bus,
	)

	return nil
}

func (t *Tandem) initService() error {
	if !t.Config.NoService {
		t.Service = service.NewService(
			t.Config.ServiceAddr,
			t.Engine,
			t.Bus,
			t.Config.Logger().WithField("prefix", "service"),
		)
	}

	return nil
}

func (t *Tandem) initConsole() error {
	if t.Config.Console {
		t.Console = console.NewConsole(t.Engine, os.Stdin)
	}

	return nil
}

// Init builds the components in dependency order.
func (t *Tandem) Init() error {
	if err := t.initLedger(); err != nil {
		return err
	}

	if err := t.initStore(); err != nil {
		return err
	}

	if err := t.initLinks(); err != nil {
		return err
	}

	if err := t.initBus(); err != nil {
		return err
	}

	if err := t.initEngine(); err != nil {
		return err
	}

	if err := t.initService(); err != nil {
		return err
	}

	if err := t.initConsole(); err != nil {
		return err
	}

	return nil
}

// Run starts the service and the console, then blocks in the engine's run
// loop.
func (t *Tandem) Run() {
	if t.Service != nil {
		go t.Service.Serve()
	}

	if t.Console != nil {
		go t.Console.Run()
	}

	t.Engine.Start()
	t.Engine.Run()
}
