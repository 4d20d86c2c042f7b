// Package harness runs replay conformance scenarios: YAML-defined event logs
// played through the real replay engine on a virtual clock, with the full
// trace compared against golden files.
package harness

import (
	"context"
	"fmt"

	"edlog/internal/editor"
	"edlog/internal/event"
	"edlog/internal/replay"
	"edlog/internal/testutil"
)

// TraceEvent is one event reaching its playback position.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// CheckpointResult is the reconstructed content at one seek percentage.
type CheckpointResult struct {
	Percent float64 `json:"percent"`
	Content string  `json:"content"`
}

// Result captures a scenario execution.
type Result struct {
	FinalContent string
	Trace        []TraceEvent
	Checkpoints  []CheckpointResult
}

// sessionSource serves the scenario's canned session to the engine.
type sessionSource struct {
	sess *event.Session
}

func (s *sessionSource) GetSession(context.Context, string) (*event.Session, error) {
	return s.sess, nil
}

// Run plays the scenario to completion on a manual scheduler, then rebuilds
// each checkpoint via Seek. Virtual time advances in bounded slices until the
// engine completes.
func Run(scenario *Scenario) (*Result, error) {
	sess := scenario.Session()
	sched := testutil.NewManualScheduler(testutil.NewManualClock())
	doc := editor.New("")
	engine := replay.New(sched, doc, nil)

	if err := engine.Load(context.Background(), &sessionSource{sess: sess}, sess.SessionID); err != nil {
		return nil, fmt.Errorf("load scenario session: %w", err)
	}

	result := &Result{}
	engine.OnEvent = func(ev event.Event) {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:  ev.Seq,
			Type: string(ev.Type),
			Text: doc.Text(),
		})
	}

	engine.Play()
	for i := 0; engine.State() != replay.StateCompleted; i++ {
		if i > len(sess.Events) {
			return nil, fmt.Errorf("scenario %s: playback did not complete", scenario.Name)
		}
		// Longest possible single step is the largest preserved gap.
		sched.Advance(maxGapMs(sess.Events) + replay.ShortStepMs)
	}
	result.FinalContent = doc.Text()

	engine.OnEvent = nil
	for _, percent := range scenario.Checkpoints {
		engine.Seek(percent)
		result.Checkpoints = append(result.Checkpoints, CheckpointResult{
			Percent: percent,
			Content: doc.Text(),
		})
	}

	return result, nil
}

func maxGapMs(events []event.Event) int64 {
	var max int64
	for i := 1; i < len(events); i++ {
		if gap := events[i].Timestamp - events[i-1].Timestamp; gap > max {
			max = gap
		}
	}
	return max
}
