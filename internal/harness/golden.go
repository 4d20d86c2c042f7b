package harness

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the serialized form of a scenario execution. Field order
// and indentation are fixed so golden files diff cleanly.
type TraceSnapshot struct {
	ScenarioName string             `json:"scenario_name"`
	FinalContent string             `json:"final_content"`
	Checkpoints  []CheckpointResult `json:"checkpoints,omitempty"`
	Trace        []TraceEvent       `json:"trace"`
}

// RunWithGolden executes a scenario and compares the trace snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		FinalContent: result.FinalContent,
		Checkpoints:  result.Checkpoints,
		Trace:        result.Trace,
	}
	traceJSON, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return nil
}
