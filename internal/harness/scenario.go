package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"edlog/internal/event"
)

// Scenario defines a replay conformance scenario. A scenario feeds a fixed
// event log through the replay engine and snapshots the resulting trace and
// seek checkpoints for golden comparison.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Language is the session language. Informational only.
	Language string `yaml:"language"`

	// InitialCode is the editor content at session start.
	InitialCode string `yaml:"initial_code"`

	// Events is the session's event log in arrival order.
	Events []EventStep `yaml:"events"`

	// Checkpoints lists seek percentages whose reconstructed content is
	// captured after full playback.
	Checkpoints []float64 `yaml:"checkpoints,omitempty"`
}

// EventStep is one EDIT event of a scenario: replace the range with the
// inserted text. Columns and lines are 1-based; a zero range defaults the end
// to the start (pure insert).
type EventStep struct {
	Timestamp int64  `yaml:"timestamp"`
	Line      int    `yaml:"line"`
	Col       int    `yaml:"col"`
	EndLine   int    `yaml:"end_line,omitempty"`
	EndCol    int    `yaml:"end_col,omitempty"`
	Insert    string `yaml:"insert"`
	Replaced  int    `yaml:"replaced,omitempty"`
}

// Session materializes the scenario as a stored session document with arrival
// seqs assigned in order.
func (s *Scenario) Session() *event.Session {
	events := make([]event.Event, len(s.Events))
	for i, step := range s.Events {
		endLine, endCol := step.EndLine, step.EndCol
		if endLine == 0 {
			endLine = step.Line
		}
		if endCol == 0 {
			endCol = step.Col
		}
		events[i] = event.Event{
			Timestamp: step.Timestamp,
			Seq:       int64(i + 1),
			Type:      event.TypeEdit,
			Changes: []event.Change{{
				Range: event.Range{
					StartLine: step.Line,
					StartCol:  step.Col,
					EndLine:   endLine,
					EndCol:    endCol,
				},
				InsertedText:   step.Insert,
				ReplacedLength: step.Replaced,
			}},
		}
	}
	return &event.Session{
		SessionID:   "scenario-" + s.Name,
		Language:    s.Language,
		InitialCode: s.InitialCode,
		Events:      events,
	}
}

// LoadScenario reads and validates one scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if len(s.Events) == 0 {
		return nil, fmt.Errorf("scenario %s: events must not be empty", path)
	}
	for i, step := range s.Events {
		if step.Line < 1 || step.Col < 1 {
			return nil, fmt.Errorf("scenario %s: event %d: line and col are 1-based", path, i)
		}
	}
	return &s, nil
}

// LoadScenarios reads every *.yaml scenario in a directory, sorted by file
// name for stable test ordering.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("glob scenarios: %w", err)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
