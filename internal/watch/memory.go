package watch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

const maxRecords = 20

// CycleRecord captures what happened in a single watch cycle.
type CycleRecord struct {
	Frame     uint64 `json:"frame"`
	Level     string `json:"level"`
	Action    string `json:"action"`
	Orders    int    `json:"orders"`
	Rationale string `json:"rationale,omitempty"`
}

// CycleMemory keeps a ring of recent cycle records.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`
	path    string
}

// LoadMemory reads the memory file. A missing or empty path gives an empty
// memory bound to that path.
func LoadMemory(path string) *CycleMemory {
	mem := &CycleMemory{path: path}
	if path == "" {
		return mem
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("watch memory unreadable, starting fresh", "error", err)
		}
		return mem
	}
	if err := json.Unmarshal(data, mem); err != nil {
		slog.Warn("watch memory corrupted, starting fresh", "error", err)
		return &CycleMemory{path: path}
	}
	return mem
}

// Save writes the memory back to its file. No-op without a path.
func (m *CycleMemory) Save() error {
	if m.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal watch memory: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("write watch memory: %w", err)
	}
	return nil
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// CalmStreak counts consecutive calm cycles at the end of the record.
func (m *CycleMemory) CalmStreak() int {
	n := 0
	for i := len(m.Records) - 1; i >= 0 && m.Records[i].Level == LevelCalm; i-- {
		n++
	}
	return n
}

// ShelteredRecently reports whether the household was sent to shelter and
// has not been regrouped since.
func (m *CycleMemory) ShelteredRecently() bool {
	for i := len(m.Records) - 1; i >= 0; i-- {
		switch m.Records[i].Action {
		case ActionShelter:
			return true
		case ActionRegroup:
			return false
		}
	}
	return false
}
