// Package engine implements the round lifecycle of the coordinator.
//
// The engine drives one round per cycle while running: it broadcasts a
// challenge to both node links, waits a bounded window for a witness report
// whose correlation clears the threshold, and either commits a block of
// pending transactions or skips the round. A bounded number of consecutive
// skips triggers a forced commit, so the system cannot stall forever.
// Every transition is published to the event bus.
package engine

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tandemlabs/tandem/src/bus"
	"github.com/tandemlabs/tandem/src/ledger"
	"github.com/tandemlabs/tandem/src/link"
)

// forcedCorr is the correlation value attached to the synthetic witness
// event of a forced commit.
const forcedCorr = 0.75

// Engine is the round state machine. It is driven by a single Run loop;
// control methods (Start, Stop, Reset, SubmitTx) may be called from any
// goroutine.
type Engine struct {
	state

	conf   *Config
	logger *logrus.Entry

	// coreLock guards the round counters below. It is held at mutation
	// points only, never across the witness window, so the control surface
	// is not starved by an in-flight round.
	coreLock         sync.Mutex
	round            int
	leader           int
	blockHeight      int
	consecutiveSkips int
	skipThreshold    int
	resetPending     bool

	ledger *ledger.Ledger
	store  ledger.Store
	links  []link.Link
	bus    *bus.Bus

	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

// NewEngine is a factory method that returns an Engine instance. The block
// height resumes from the store, so a persistent store carries it across
// restarts.
func NewEngine(conf *Config, lgr *ledger.Ledger, store ledger.Store, links []link.Link, b *bus.Bus) *Engine {
	e := &Engine{
		conf:        conf,
		logger:      conf.Logger,
		ledger:      lgr,
		store:       store,
		links:       links,
		bus:         b,
		blockHeight: store.LastBlockIndex(),
		shutdownCh:  make(chan struct{}),
	}

	e.skipThreshold = e.rollSkipThreshold()

	return e
}

// Run invokes the main loop of the engine. It returns when the engine is
// shut down.
func (e *Engine) Run() {
	e.wg.Add(1)
	defer e.wg.Done()

	for {
		state := e.getState()

		switch state {
		case Running:
			e.runRound()
			e.pause(e.conf.RoundPause)
		case Idle:
			e.applyPendingReset()
			e.pause(e.conf.IdlePause)
		case Shutdown:
			return
		}
	}
}

// RunAsync calls Run in a separate goroutine.
func (e *Engine) RunAsync() {
	go e.Run()
}

// Start resumes round production. It has no effect unless the engine is
// idle.
func (e *Engine) Start() {
	if e.getState() == Idle {
		e.logger.Info("Starting rounds")
		e.setState(Running)
	}
}

// Stop halts round production at the next round boundary. An in-flight
// round always runs to its commit or skip conclusion.
func (e *Engine) Stop() {
	if e.getState() == Running {
		e.logger.Info("Stopping rounds")
		e.setState(Idle)
	}
}

// Reset reinitializes round, height, balances, mempool and skip counters to
// genesis values. While rounds are being produced the reset is deferred to
// the next round boundary; otherwise it applies immediately.
func (e *Engine) Reset() {
	e.coreLock.Lock()
	if e.getState() == Running {
		e.resetPending = true
		e.coreLock.Unlock()
		e.logger.Debug("Reset deferred to round boundary")
		return
	}
	e.resetLocked()
	e.coreLock.Unlock()

	e.PublishState()
}

// SubmitTx queues a transaction for inclusion in a future block. It rejects
// non-positive amounts.
func (e *Engine) SubmitTx(tx ledger.Transaction) error {
	if err := e.ledger.Enqueue(tx); err != nil {
		return err
	}

	e.PublishState()

	return nil
}

// Shutdown terminates the run loop and closes the links.
func (e *Engine) Shutdown() {
	if e.getState() != Shutdown {
		e.logger.Debug("Shutdown")

		e.setState(Shutdown)

		close(e.shutdownCh)

		e.wg.Wait()

		for _, lk := range e.links {
			if lk == nil {
				continue
			}
			if err := lk.Close(); err != nil {
				e.logger.WithError(err).Debug("Closing link")
			}
		}

		if err := e.store.Close(); err != nil {
			e.logger.WithError(err).Error("Closing store")
		}
	}
}

// IsRunning reports whether rounds are being produced.
func (e *Engine) IsRunning() bool {
	return e.getState() == Running
}

// Snapshot returns the queryable engine state.
func (e *Engine) Snapshot() Snapshot {
	e.coreLock.Lock()
	round := e.round
	leader := e.leader
	height := e.blockHeight
	e.coreLock.Unlock()

	return Snapshot{
		Round:       round,
		Leader:      leader,
		BlockHeight: height,
		Balances:    e.ledger.Balances(),
		Mempool:     e.ledger.Mempool(),
		Ports:       e.conf.Ports,
		Threshold:   e.conf.Threshold,
	}
}

// StateEvent returns the current snapshot tagged for the bus.
func (e *Engine) StateEvent() StateEvent {
	return StateEvent{
		Type:     EventState,
		Snapshot: e.Snapshot(),
	}
}

// PublishState publishes a state event with the current snapshot.
func (e *Engine) PublishState() {
	e.bus.Publish(e.StateEvent())
}

// GetBlock returns a committed block from the store.
func (e *Engine) GetBlock(index int) (*ledger.Block, error) {
	return e.store.GetBlock(index)
}

// pause sleeps for d, returning early on shutdown.
func (e *Engine) pause(d time.Duration) {
	select {
	case <-time.After(d):
	case <-e.shutdownCh:
	}
}

// runRound drives a single round to its commit or skip conclusion. A panic
// inside the round is contained here so that the next cycle proceeds
// normally.
func (e *Engine) runRound() {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("panic", r).Error("Round aborted")
		}
	}()

	e.coreLock.Lock()
	if e.resetPending {
		e.resetLocked()
		e.resetPending = false
	}
	e.round++
	e.leader = e.round % 2
	round := e.round
	leader := e.leader
	e.coreLock.Unlock()

	seed := rand.Intn(1 << 16)
	durMs := int(e.conf.RoundDuration / time.Millisecond)

	e.broadcast(fmt.Sprintf("CHAL round=%d seed=%d leader=%d dur=%d", round, seed, leader, durMs))
	e.bus.Publish(ChalEvent{
		Type:   EventChal,
		Round:  round,
		Seed:   seed,
		Leader: leader,
		DurMs:  durMs,
	})

	if e.awaitWitness(round) {
		e.coreLock.Lock()
		e.consecutiveSkips = 0
		e.coreLock.Unlock()

		e.commit(round, leader)
		e.PublishState()
		return
	}

	e.coreLock.Lock()
	e.consecutiveSkips++
	skips := e.consecutiveSkips
	forced := skips >= e.skipThreshold
	if forced {
		e.consecutiveSkips = 0
		e.skipThreshold = e.rollSkipThreshold()
	}
	e.coreLock.Unlock()

	if forced {
		e.forceCommit(round, leader)
		e.PublishState()
		return
	}

	e.logger.WithFields(logrus.Fields{
		"round": round,
		"skips": skips,
	}).Info("Round skipped, no witness")

	e.bus.Publish(SkipEvent{
		Type:   EventSkip,
		Round:  round,
		Leader: leader,
	})
	e.PublishState()
}

// awaitWitness polls both links round-robin until a report for the given
// round clears the threshold or the window closes. Every matching-round
// report is published before the threshold check. When both links qualify
// in the same poll, the lower link index wins; under simultaneous delivery
// the winner is not deterministic.
func (e *Engine) awaitWitness(round int) bool {
	deadline := time.Now().Add(e.conf.RoundDuration + e.conf.WitnessGrace)

	for time.Now().Before(deadline) {
		for i, lk := range e.links {
			if lk == nil {
				continue
			}

			for {
				line, ok := lk.ReadLine()
				if !ok {
					break
				}

				rep, ok := link.ParseWitness(line)
				if !ok {
					e.logger.WithFields(logrus.Fields{
						"node": i,
						"line": line,
					}).Debug("Ignoring unrecognized line")
					continue
				}

				rep.Node = i

				if rep.Round != round {
					e.logger.WithFields(logrus.Fields{
						"node":       i,
						"report":     rep.Round,
						"this_round": round,
					}).Debug("Discarding stale witness report")
					continue
				}

				e.bus.Publish(WitnessEvent{
					Type:  EventWitness,
					Round: round,
					Node:  i,
					Corr:  rep.Corr,
				})

				if rep.Corr >= e.conf.Threshold {
					e.logger.WithFields(logrus.Fields{
						"round": round,
						"node":  i,
						"corr":  rep.Corr,
					}).Info("Witness observed")
					return true
				}
			}
		}

		select {
		case <-time.After(e.conf.PollInterval):
		case <-e.shutdownCh:
			return false
		}
	}

	return false
}

// commit consumes the mempool prefix, applies it, records the block and
// notifies the nodes and the bus.
func (e *Engine) commit(round int, leader int) {
	batch := e.ledger.TakeBatch(e.conf.TxsPerBlock)
	included := e.ledger.Apply(batch)

	e.coreLock.Lock()
	e.blockHeight++
	height := e.blockHeight
	e.coreLock.Unlock()

	block := &ledger.Block{
		Index:        height,
		Round:        round,
		Leader:       leader,
		Transactions: included,
		Timestamp:    time.Now().Unix(),
	}

	if err := e.store.SetBlock(block); err != nil {
		e.logger.WithError(err).Error("Storing block")
	}

	e.broadcast(fmt.Sprintf("COMMIT round=%d", round))

	e.logger.WithFields(logrus.Fields{
		"round":    round,
		"leader":   leader,
		"height":   height,
		"batch":    len(batch),
		"included": len(included),
	}).Info("Block committed")

	e.bus.Publish(CommitEvent{
		Type:       EventCommit,
		Round:      round,
		Leader:     leader,
		IncludedTx: included,
		Balances:   e.ledger.Balances(),
	})
}

// forceCommit is the liveness fallback: it commits as if a witness had been
// observed, publishing a synthetic witness event first, and then stops the
// engine. Forcing progress and halting in the same breath is deliberate:
// the forced block guarantees liveness, and the stop acts as a one-shot
// circuit breaker until an operator starts the engine again.
func (e *Engine) forceCommit(round int, leader int) {
	e.logger.WithField("round", round).Warn("Skip limit reached, forcing commit")

	e.bus.Publish(WitnessEvent{
		Type:  EventWitness,
		Round: round,
		Node:  leader,
		Corr:  forcedCorr,
	})

	e.commit(round, leader)

	e.setState(Idle)
}

// broadcast writes a line to both links. A failed write is treated as that
// node being absent for the round.
func (e *Engine) broadcast(line string) {
	e.logger.WithField("line", line).Debug("Broadcast")

	for i, lk := range e.links {
		if lk == nil {
			continue
		}
		if err := lk.WriteLine(line); err != nil {
			e.logger.WithError(err).WithField("node", i).Warn("Link write failed")
		}
	}
}

func (e *Engine) applyPendingReset() {
	e.coreLock.Lock()
	pending := e.resetPending
	if pending {
		e.resetLocked()
		e.resetPending = false
	}
	e.coreLock.Unlock()

	if pending {
		e.PublishState()
	}
}

// resetLocked requires coreLock to be held.
func (e *Engine) resetLocked() {
	e.round = 0
	e.leader = 0
	e.blockHeight = 0
	e.consecutiveSkips = 0
	e.skipThreshold = e.rollSkipThreshold()

	e.ledger.Reset()

	if err := e.store.Reset(); err != nil {
		e.logger.WithError(err).Error("Resetting store")
	}

	e.logger.WithField("skip_threshold", e.skipThreshold).Info("Engine reset")
}

// rollSkipThreshold draws a fresh skip threshold uniformly from the
// configured range.
func (e *Engine) rollSkipThreshold() int {
	min := e.conf.SkipRollMin
	max := e.conf.SkipRollMax
	if max < min {
		max = min
	}
	return min + rand.Intn(max-min+1)
}
