// Package service exposes the coordinator's control surface over HTTP and
// streams engine events over a WebSocket.
package service

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/tandemlabs/tandem/src/bus"
	"github.com/tandemlabs/tandem/src/engine"
	"github.com/tandemlabs/tandem/src/ledger"
)

// eventBuffer is the per-connection event backlog. A WebSocket client that
// falls this far behind is dropped by the bus.
const eventBuffer = 64

// Service ...
type Service struct {
	sync.Mutex

	bindAddress string
	engine      *engine.Engine
	bus         *bus.Bus
	upgrader    websocket.Upgrader
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, e *engine.Engine, b *bus.Bus, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		engine:      e,
		bus:         b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the DefaultServerMux of
// the http package, so that another server in the same process can share the
// endpoint.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering API handlers")
	http.HandleFunc("/state", s.makeHandler(s.GetState))
	http.HandleFunc("/tx", s.makeHandler(s.AddTx))
	http.HandleFunc("/control", s.makeHandler(s.Control))
	http.HandleFunc("/block/", s.makeHandler(s.GetBlock))
	http.HandleFunc("/events", s.Events)
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving API")

	// Use the DefaultServerMux
	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetState returns the engine snapshot.
func (s *Service) GetState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.engine.Snapshot())
}

// AddTx queues a transaction.
func (s *Service) AddTx(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var tx ledger.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		s.logger.WithError(err).Error("Parsing transaction")

		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	if err := s.engine.SubmitTx(tx); err != nil {
		http.Error(w, "Amount must be positive", http.StatusBadRequest)

		return
	}

	writeOK(w)
}

// Control handles start/stop/reset actions.
func (s *Service) Control(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	switch req.Action {
	case "start":
		s.engine.Start()
	case "stop":
		s.engine.Stop()
	case "reset":
		s.engine.Reset()
	default:
		http.Error(w, "Invalid action", http.StatusBadRequest)

		return
	}

	writeOK(w)
}

// GetBlock returns a committed block by index.
func (s *Service) GetBlock(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Path[len("/block/"):]

	blockIndex, err := strconv.Atoi(param)

	if err != nil {
		s.logger.WithError(err).Errorf("Parsing block_index parameter %s", param)

		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	block, err := s.engine.GetBlock(blockIndex)

	if err != nil {
		s.logger.WithError(err).Errorf("Retrieving block %d", blockIndex)

		http.Error(w, err.Error(), http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(block)
}

// Events upgrades the connection to a WebSocket, sends the current state
// event, and then streams bus events until the client goes away or falls
// behind. It is deliberately not wrapped by makeHandler: the connection
// outlives the request and must not hold the service lock.
func (s *Service) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Error("Upgrading events connection")
		return
	}

	sub := s.bus.Subscribe(eventBuffer)

	hello, err := json.Marshal(s.engine.StateEvent())
	if err == nil {
		err = conn.WriteMessage(websocket.TextMessage, hello)
	}
	if err != nil {
		s.logger.WithError(err).Debug("Writing initial state")
		s.bus.Unsubscribe(sub)
		conn.Close()
		return
	}

	s.logger.Debug("Events subscriber connected")

	// Read pump: consume control frames and detect the client going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.bus.Unsubscribe(sub)
				return
			}
		}
	}()

	// Write pump: the events channel is closed by the bus when the
	// subscriber is dropped or unsubscribed.
	go func() {
		defer conn.Close()

		for msg := range sub.Events() {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.bus.Unsubscribe(sub)
				return
			}
		}
	}()
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}
