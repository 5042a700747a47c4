// Package history keeps the ordered log of labeled EEG samples and
// classifies live samples against it with a cascading fault-tolerance
// search.
package history

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/neurodeck/mindlink/internal/eeg"
)

// Record is an EEG sample with the intent label that was active when
// it was captured. Records are never mutated after being appended.
type Record struct {
	eeg.Sample
	EventName eeg.Event `json:"event_name"`
}

// Log is the in-memory ordered record log. Insertion order is
// significant: newest records are appended last.
type Log struct {
	mu      sync.RWMutex
	records []Record
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Add appends a record to the log.
func (l *Log) Add(r Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
}

// Clear removes all records.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
}

// Count returns the number of records.
func (l *Log) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Records returns a copy of the log in insertion order.
func (l *Log) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Load replaces the log with the records from a JSON file. Files
// written by older tools use CamelCase keys; both spellings are
// accepted. A missing file is not an error: the log is left empty.
func (l *Log) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Printf("history: no file at %s, starting empty", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("history: read %s: %w", path, err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("history: parse %s: %w", path, err)
	}

	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		records = append(records, recordFromMap(item))
	}

	l.mu.Lock()
	l.records = records
	l.mu.Unlock()

	log.Printf("history: loaded %d records from %s", len(records), path)
	return nil
}

// Save writes the log as a JSON array with snake_case keys.
func (l *Log) Save(path string) error {
	records := l.Records()
	if len(records) == 0 {
		log.Println("history: nothing to save")
		return nil
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("history: write %s: %w", path, err)
	}

	log.Printf("history: saved %d records to %s", len(records), path)
	return nil
}

// recordFromMap reads one persisted record, accepting both snake_case
// and legacy CamelCase keys. Malformed values degrade to zero rather
// than failing the whole file.
func recordFromMap(m map[string]any) Record {
	r := Record{
		Sample: eeg.Sample{
			Attention:  intField(m, "attention", "Attention"),
			Meditation: intField(m, "meditation", "Meditation"),
			Signal:     intField(m, "signal", "Signal"),
			Delta:      intField(m, "delta", "Delta"),
			Theta:      intField(m, "theta", "Theta"),
			LowAlpha:   intField(m, "low_alpha", "LowAlpha"),
			HighAlpha:  intField(m, "high_alpha", "HighAlpha"),
			LowBeta:    intField(m, "low_beta", "LowBeta"),
			HighBeta:   intField(m, "high_beta", "HighBeta"),
			LowGamma:   intField(m, "low_gamma", "LowGamma"),
			HighGamma:  intField(m, "high_gamma", "HighGamma"),
		},
	}

	name, ok := m["event_name"]
	if !ok {
		name = m["EventName"]
	}
	if s, ok := name.(string); ok {
		r.EventName = eeg.Event(s)
	}
	return r
}

func intField(m map[string]any, key, legacyKey string) int {
	v, ok := m[key]
	if !ok {
		v, ok = m[legacyKey]
	}
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		var parsed int
		if _, err := fmt.Sscanf(n, "%d", &parsed); err == nil {
			return parsed
		}
	}
	log.Printf("history: unusable value %v for %q, using 0", v, key)
	return 0
}
