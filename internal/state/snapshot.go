package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot captures the open positions at a point in time.
type Snapshot struct {
	Timestamp int64           `json:"timestamp"`
	Positions []PositionEntry `json:"positions"`
}

// PositionEntry is a single open position entry.
type PositionEntry struct {
	Instrument string          `json:"instrument"`
	PositionID string          `json:"positionId"`
	Direction  string          `json:"direction"`
	Quantity   decimal.Decimal `json:"quantity"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
}

// Snapshot builds a snapshot ordered by instrument.
func (m *PositionManager) Snapshot() Snapshot {
	open := m.AllOpen()
	entries := make([]PositionEntry, 0, len(open))
	for _, p := range open {
		entries = append(entries, PositionEntry{
			Instrument: p.Instrument,
			PositionID: p.ID,
			Direction:  p.Direction.String(),
			Quantity:   p.Quantity,
			EntryPrice: p.EntryPrice,
		})
	}
	return Snapshot{
		Timestamp: time.Now().UTC().UnixNano(),
		Positions: entries,
	}
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// CompareSnapshots checks if two snapshots hold the same open positions.
func CompareSnapshots(expected, actual Snapshot) error {
	if len(expected.Positions) != len(actual.Positions) {
		return fmt.Errorf("snapshot length mismatch: expected=%d actual=%d", len(expected.Positions), len(actual.Positions))
	}
	expectedMap := make(map[string]PositionEntry, len(expected.Positions))
	for _, entry := range expected.Positions {
		expectedMap[entry.Instrument] = entry
	}
	for _, entry := range actual.Positions {
		want, ok := expectedMap[entry.Instrument]
		if !ok {
			return fmt.Errorf("snapshot missing instrument: %s", entry.Instrument)
		}
		if want.PositionID != entry.PositionID {
			return fmt.Errorf("snapshot position mismatch: instrument=%s expected=%s actual=%s", entry.Instrument, want.PositionID, entry.PositionID)
		}
		if want.Direction != entry.Direction {
			return fmt.Errorf("snapshot direction mismatch: instrument=%s expected=%s actual=%s", entry.Instrument, want.Direction, entry.Direction)
		}
		if !want.Quantity.Equal(entry.Quantity) {
			return fmt.Errorf("snapshot qty mismatch: instrument=%s expected=%s actual=%s", entry.Instrument, want.Quantity, entry.Quantity)
		}
		if !want.EntryPrice.Equal(entry.EntryPrice) {
			return fmt.Errorf("snapshot entry price mismatch: instrument=%s expected=%s actual=%s", entry.Instrument, want.EntryPrice, entry.EntryPrice)
		}
	}
	return nil
}
