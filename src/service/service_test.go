package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tandemlabs/tandem/src/bus"
	"github.com/tandemlabs/tandem/src/common"
	"github.com/tandemlabs/tandem/src/engine"
	"github.com/tandemlabs/tandem/src/ledger"
	"github.com/tandemlabs/tandem/src/link"
)

// testService builds a Service around a fresh engine without touching the
// DefaultServeMux, so tests can call the handlers directly.
func testService(t *testing.T) *Service {
	l := ledger.NewLedger(ledger.DefaultGenesis(), common.NewTestEntry(t, common.TestLogLevel))
	b := bus.NewBus(common.NewTestEntry(t, common.TestLogLevel))

	e := engine.NewEngine(
		engine.TestConfig(t),
		l,
		ledger.NewInmemStore(),
		[]link.Link{link.NewInmemLink(), link.NewInmemLink()},
		b,
	)

	return &Service{
		bindAddress: "127.0.0.1:0",
		engine:      e,
		bus:         b,
		logger:      common.NewTestEntry(t, common.TestLogLevel),
	}
}

func TestGetState(t *testing.T) {
	s := testService(t)

	w := httptest.NewRecorder()
	s.GetState(w, httptest.NewRequest(http.MethodGet, "/state", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var snapshot engine.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snapshot); err != nil {
		t.Fatal(err)
	}

	if snapshot.Balances["Alice"] != 100 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if snapshot.Threshold != engine.TestConfig(t).Threshold {
		t.Fatalf("unexpected threshold %f", snapshot.Threshold)
	}
}

func TestAddTx(t *testing.T) {
	s := testService(t)

	body := strings.NewReader(`{"from":"Alice","to":"Bob","amt":30}`)

	w := httptest.NewRecorder()
	s.AddTx(w, httptest.NewRequest(http.MethodPost, "/tx", body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if pool := s.engine.Snapshot().Mempool; len(pool) != 1 {
		t.Fatalf("mempool should have 1 transaction, not %d", len(pool))
	}
}

func TestAddTxNonPositive(t *testing.T) {
	s := testService(t)

	body := strings.NewReader(`{"from":"Alice","to":"Bob","amt":0}`)

	w := httptest.NewRecorder()
	s.AddTx(w, httptest.NewRequest(http.MethodPost, "/tx", body))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAddTxRequiresPost(t *testing.T) {
	s := testService(t)

	w := httptest.NewRecorder()
	s.AddTx(w, httptest.NewRequest(http.MethodGet, "/tx", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestControl(t *testing.T) {
	s := testService(t)

	w := httptest.NewRecorder()
	s.Control(w, httptest.NewRequest(http.MethodPost, "/control", strings.NewReader(`{"action":"start"}`)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !s.engine.IsRunning() {
		t.Fatal("engine should be running after start action")
	}

	w = httptest.NewRecorder()
	s.Control(w, httptest.NewRequest(http.MethodPost, "/control", strings.NewReader(`{"action":"stop"}`)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if s.engine.IsRunning() {
		t.Fatal("engine should be idle after stop action")
	}

	w = httptest.NewRecorder()
	s.Control(w, httptest.NewRequest(http.MethodPost, "/control", strings.NewReader(`{"action":"selfdestruct"}`)))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", w.Code)
	}
}

func TestGetBlockNotFound(t *testing.T) {
	s := testService(t)

	w := httptest.NewRecorder()
	s.GetBlock(w, httptest.NewRequest(http.MethodGet, "/block/7", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	s.GetBlock(w, httptest.NewRequest(http.MethodGet, "/block/seven", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-numeric index, got %d", w.Code)
	}
}
