// Package report prints the status lines of a patch run and records its
// outcome.
//
// Output:
//   - status lines on stdout, colored when stdout is a terminal
//   - an optional line diff of the flow file (dry runs)
//   - an optional JSON summary file
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Version is the summary schema version.
const Version = "1.0.0"

// Headline is the first status line of a successful run.
const Headline = "Flow JSON fixed successfully!"

// Summary is the outcome of one run.
type Summary struct {
	Version       string    `json:"version"`
	Time          time.Time `json:"time"`
	File          string    `json:"file"`
	Output        string    `json:"output,omitempty"` // Empty on dry runs
	DryRun        bool      `json:"dryRun"`
	Changed       bool      `json:"changed"`
	RemovedNested bool      `json:"removedNested"`
	Operations    []string  `json:"operations"`
	Changes       []string  `json:"changes"`
	Solution      *Solution `json:"solution,omitempty"`
}

// Solution records a rebuilt solution archive.
type Solution struct {
	Source   string `json:"source"`
	Output   string `json:"output"`
	Entry    string `json:"entry"`
	Entries  int    `json:"entries"`
	Replaced bool   `json:"replaced"`
}

// NewSummary starts a summary for file.
func NewSummary(file string) *Summary {
	return &Summary{
		Version:    Version,
		Time:       time.Now(),
		File:       file,
		Operations: []string{},
		Changes:    []string{},
	}
}

// Lines returns the status lines for the summary.
func (s *Summary) Lines() []string {
	lines := make([]string, 0, len(s.Changes)+1)
	lines = append(lines, Headline)
	for _, c := range s.Changes {
		lines = append(lines, "- "+c)
	}
	return lines
}

// WriteJSON writes the summary to path.
func (s *Summary) WriteJSON(path string) error {
	if err := atomicWriteJSON(path, s); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// atomicWriteJSON writes v through a temp file in the target directory.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".summary-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
