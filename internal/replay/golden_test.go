package replay

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"edlog/internal/event"
)

// traceStep records one event reaching its playback position and the editor
// content immediately after it.
type traceStep struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// traceSnapshot is the full playback trace for golden comparison.
type traceSnapshot struct {
	SessionID  string      `json:"session_id"`
	FinalState string      `json:"final_state"`
	FinalText  string      `json:"final_text"`
	Steps      []traceStep `json:"steps"`
}

// TestPlayback_GoldenTrace replays the "print" session to completion and
// compares the step-by-step trace against the golden file.
//
// To regenerate golden files, run:
//
//	go test ./internal/replay -update
func TestPlayback_GoldenTrace(t *testing.T) {
	f := newReplayFixture(t, typingSession())

	var steps []traceStep
	f.engine.OnEvent = func(ev event.Event) {
		steps = append(steps, traceStep{
			Seq:  ev.Seq,
			Type: string(ev.Type),
			Text: f.doc.Text(),
		})
	}

	f.engine.Play()
	f.sched.Advance(1000)
	require.Equal(t, StateCompleted, f.engine.State())

	snapshot := traceSnapshot{
		SessionID:  "sess-print",
		FinalState: string(f.engine.State()),
		FinalText:  f.doc.Text(),
		Steps:      steps,
	}
	traceJSON, err := json.MarshalIndent(snapshot, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "typing_print", traceJSON)
}
