package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const jsonGenesisPath = "genesis.json"

// DefaultGenesis returns the built-in genesis allocation, used when no
// genesis.json is present in the data directory.
func DefaultGenesis() map[string]int {
	return map[string]int{
		"Alice":  100,
		"Bob":    0,
		Treasury: 0,
	}
}

// JSONGenesis reads the genesis allocation from a JSON file mapping account
// names to starting balances.
type JSONGenesis struct {
	l    sync.Mutex
	path string
}

// NewJSONGenesis creates a JSONGenesis with reference to the base directory
// where genesis.json resides.
func NewJSONGenesis(base string) *JSONGenesis {
	return &JSONGenesis{
		path: filepath.Join(base, jsonGenesisPath),
	}
}

// Genesis parses the underlying JSON file and returns the allocation.
func (j *JSONGenesis) Genesis() (map[string]int, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := os.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	var alloc map[string]int
	dec := json.NewDecoder(bytes.NewReader(buf))
	if err := dec.Decode(&alloc); err != nil {
		return nil, err
	}

	for account, balance := range alloc {
		if balance < 0 {
			return nil, fmt.Errorf("genesis balance for %s is negative", account)
		}
	}

	return alloc, nil
}

// Write persists an allocation to the JSON file.
func (j *JSONGenesis) Write(alloc map[string]int) error {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := json.MarshalIndent(alloc, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(j.path, buf, 0644)
}
