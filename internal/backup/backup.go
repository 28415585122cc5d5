// Package backup decodes the two import-side payloads spec.md §4.5.8
// consumes: a prior session export and a flat URL list. Writing a backup
// file is out of scope (spec.md §1); only the decode side exists here.
package backup

import (
	"encoding/json"
	"fmt"

	"github.com/spacekeeper/spacekeeperd/internal/model"
	"github.com/spacekeeper/spacekeeperd/internal/reconcile"
)

// snapshotWire is the on-disk shape a prior export would have produced.
type snapshotWire struct {
	Name   string      `json:"name"`
	Tabs   []model.Tab `json:"tabs"`
	Bounds *model.Bounds `json:"bounds,omitempty"`
}

// DecodeSnapshot parses a single exported space into the shape
// reconcile.Engine.RestoreFromBackup expects.
func DecodeSnapshot(raw []byte) (reconcile.BackupSpace, error) {
	var w snapshotWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return reconcile.BackupSpace{}, fmt.Errorf("backup: decode snapshot: %w", err)
	}
	if len(w.Tabs) == 0 {
		return reconcile.BackupSpace{}, fmt.Errorf("backup: decode snapshot: no tabs")
	}
	return reconcile.BackupSpace{Name: w.Name, Tabs: w.Tabs, Bounds: w.Bounds}, nil
}

// DecodeURLList parses the flat "one URL per line, JSON array, or
// newline-delimited text" shapes the extension's import flow may send into
// a plain list of URL strings for reconcile.Engine.ImportNewSession.
func DecodeURLList(raw []byte) ([]string, error) {
	var urls []string
	if err := json.Unmarshal(raw, &urls); err == nil {
		return urls, nil
	}
	return splitLines(raw), nil
}

func splitLines(raw []byte) []string {
	var out []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == '\n' {
			line := trimSpace(raw[start:i])
			if len(line) > 0 {
				out = append(out, string(line))
			}
			start = i + 1
		}
	}
	return out
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && (b[start] == ' ' || b[start] == '\t' || b[start] == '\r') {
		start++
	}
	for end > start && (b[end-1] == ' ' || b[end-1] == '\t' || b[end-1] == '\r') {
		end--
	}
	return b[start:end]
}
