package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edlog/internal/event"
)

// collectEmits returns an aggregator plus the slice its snapshots land in.
func collectEmits(cfg Config) (*Aggregator, *[]event.Event) {
	var emitted []event.Event
	agg := New(cfg, func(ev event.Event) { emitted = append(emitted, ev) })
	return agg, &emitted
}

// editOn builds an EDIT event touching a single line.
func editOn(ts int64, line, inserted, deleted int) event.Event {
	return event.Event{
		Timestamp: ts,
		Type:      event.TypeEdit,
		Changes: []event.Change{{
			Range:          event.Range{StartLine: line, StartCol: 1, EndLine: line, EndCol: 1},
			InsertedText:   strings.Repeat("x", inserted),
			ReplacedLength: deleted,
		}},
	}
}

func TestRecordChange_FirstEventActivatesWithoutEmit(t *testing.T) {
	agg, emitted := collectEmits(Config{})

	agg.RecordChange(0, editOn(0, 3, 1, 0))

	assert.Equal(t, 3, agg.ActiveLine())
	assert.Empty(t, *emitted)
}

func TestRecordChange_LineTransitionEmitsExactlyOneSnapshot(t *testing.T) {
	agg, emitted := collectEmits(Config{})

	agg.RecordChange(0, editOn(0, 3, 1, 0))
	agg.RecordChange(100, editOn(100, 3, 1, 0))
	agg.RecordChange(200, editOn(200, 7, 1, 0))

	require.Len(t, *emitted, 1)
	snap := (*emitted)[0]
	assert.Equal(t, event.TypeLineMetrics, snap.Type)
	assert.Equal(t, 3, snap.Line)
	require.NotNil(t, snap.Metrics)
	assert.Equal(t, 7, agg.ActiveLine())
}

func TestIdleAccumulation_SameLineGap(t *testing.T) {
	// Scenario: events on line 3 at t=0 and t=5000 with idle threshold 3000ms.
	agg, emitted := collectEmits(Config{})

	agg.RecordChange(0, editOn(0, 3, 1, 0))
	agg.RecordChange(5000, editOn(5000, 3, 1, 0))

	assert.Equal(t, int64(5000), agg.IdleMs())

	// Leaving line 3 reports the accumulated idle.
	agg.RecordChange(5100, editOn(5100, 9, 1, 0))

	require.Len(t, *emitted, 1)
	m := (*emitted)[0].Metrics
	assert.GreaterOrEqual(t, m.IdleMs, int64(2000))
	assert.True(t, m.IdleFlag)

	// The accumulator belongs to the line that was left; the new line starts
	// from zero.
	assert.Equal(t, int64(0), agg.IdleMs())
}

func TestIdleAccumulation_OnlyWhileActiveLineUnchanged(t *testing.T) {
	agg, _ := collectEmits(Config{})

	agg.RecordChange(0, editOn(0, 3, 1, 0))
	// Long gap but the edit lands on another line: no idle accrues anywhere.
	agg.RecordChange(5000, editOn(5000, 8, 1, 0))

	assert.Equal(t, int64(0), agg.IdleMs())
}

func TestIdleAccumulation_ShortGapIgnored(t *testing.T) {
	agg, _ := collectEmits(Config{})

	agg.RecordChange(0, editOn(0, 3, 1, 0))
	agg.RecordChange(2999, editOn(2999, 3, 1, 0))

	assert.Equal(t, int64(0), agg.IdleMs())
}

func TestChurnRatio_TypeThenDeleteCycle(t *testing.T) {
	// Scenario: insert 10 chars then delete 10 chars on the same line within
	// one window -> churnAdded=10, churnDeleted=10, ratio 20/max(1,0)=20.
	agg, emitted := collectEmits(Config{})

	agg.RecordChange(0, editOn(0, 2, 10, 0))
	agg.RecordChange(100, editOn(100, 2, 0, 10))
	agg.Flush(200)

	require.Len(t, *emitted, 1)
	m := (*emitted)[0].Metrics
	assert.Equal(t, 10, m.ChurnAdded)
	assert.Equal(t, 10, m.ChurnDeleted)
	assert.InDelta(t, 20.0, m.ChurnRatio, 0.001)
}

func TestChurnRatio_NetForwardTypingNearOne(t *testing.T) {
	agg, emitted := collectEmits(Config{})

	agg.RecordChange(0, editOn(0, 2, 10, 0))
	agg.Flush(100)

	require.Len(t, *emitted, 1)
	assert.InDelta(t, 1.0, (*emitted)[0].Metrics.ChurnRatio, 0.001)
}

func TestChurn_RespectsLineRadius(t *testing.T) {
	agg, emitted := collectEmits(Config{})

	// Line 10 is 9 lines away from line 1: outside the radius of 5.
	agg.RecordChange(0, editOn(0, 10, 7, 0))
	// Line 4 is 3 lines away: inside.
	agg.RecordChange(100, editOn(100, 4, 5, 0))
	// Move to line 1 and leave it again to snapshot it.
	agg.RecordChange(200, editOn(200, 1, 2, 0))
	agg.Flush(300)

	require.Len(t, *emitted, 3)
	last := (*emitted)[2]
	assert.Equal(t, 1, last.Line)
	// 5 chars from line 4 plus 2 chars on line 1 itself.
	assert.Equal(t, 7, last.Metrics.ChurnAdded)
}

func TestChurn_WindowExpiry(t *testing.T) {
	agg, emitted := collectEmits(Config{WindowMs: 1000})

	agg.RecordChange(0, editOn(0, 2, 9, 0))
	// Well past the window; the early churn must have aged out.
	agg.RecordChange(5000, editOn(5000, 2, 1, 0))
	agg.Flush(5100)

	require.Len(t, *emitted, 1)
	assert.Equal(t, 1, (*emitted)[0].Metrics.ChurnAdded)
}

func TestDelayOutlier_FlagsPauseAboveTrimmedBaseline(t *testing.T) {
	agg, emitted := collectEmits(Config{})

	// Steady 100ms typing rhythm builds the baseline.
	ts := int64(0)
	for i := 0; i < 20; i++ {
		agg.RecordChange(ts, editOn(ts, 2, 1, 0))
		ts += 100
	}
	// ts is now 2000; a 2.5s pause on the same line is far beyond the
	// baseline (mean 100, std 0).
	agg.RecordChange(ts-100+2500, editOn(ts-100+2500, 2, 1, 0))
	agg.Flush(ts + 3000)

	require.Len(t, *emitted, 1)
	m := (*emitted)[0].Metrics
	assert.True(t, m.DelayOutlier)
	assert.Equal(t, int64(2500), m.DelayMs)
}

func TestDelayOutlier_NotFlaggedWithFewSamples(t *testing.T) {
	agg, _ := collectEmits(Config{})

	agg.RecordChange(0, editOn(0, 2, 1, 0))
	agg.RecordChange(10_000, editOn(10_000, 2, 1, 0))

	// Only one gap in the buffer: no baseline, no flag.
	assert.False(t, agg.lastOutlier)
}

func TestUndoRedo_CountedWithinWindow(t *testing.T) {
	agg, emitted := collectEmits(Config{})

	agg.RecordChange(0, editOn(0, 2, 1, 0))
	agg.RecordUndo(50)
	agg.RecordUndo(100)
	agg.RecordRedo(150)
	agg.Flush(200)

	require.Len(t, *emitted, 1)
	m := (*emitted)[0].Metrics
	assert.Equal(t, 2, m.UndoCount)
	assert.Equal(t, 1, m.RedoCount)
}

func TestUndoRedo_IgnoredWithNoActiveLine(t *testing.T) {
	agg, emitted := collectEmits(Config{})

	agg.RecordUndo(10)
	agg.RecordRedo(20)
	agg.Flush(30)

	assert.Empty(t, *emitted)
}

func TestKeystrokeRate_CharsOverActiveSeconds(t *testing.T) {
	agg, emitted := collectEmits(Config{WindowMs: 10_000})

	agg.RecordChange(0, editOn(0, 2, 5, 0))
	agg.RecordChange(100, editOn(100, 2, 5, 0))
	agg.Flush(200)

	require.Len(t, *emitted, 1)
	m := (*emitted)[0].Metrics
	// 10 chars over a 10s window with no idle.
	assert.InDelta(t, 1.0, m.KeystrokeRate, 0.001)
}

func TestFlush_EmitsFinalSnapshotAndDeactivates(t *testing.T) {
	agg, emitted := collectEmits(Config{})

	agg.RecordChange(0, editOn(0, 4, 1, 0))
	agg.Flush(100)
	agg.Flush(200) // second flush is a no-op

	assert.Len(t, *emitted, 1)
	assert.Equal(t, 0, agg.ActiveLine())
}

func TestSnapshot_ActiveMsExcludesIdle(t *testing.T) {
	agg, emitted := collectEmits(Config{})

	agg.RecordChange(0, editOn(0, 3, 1, 0))
	agg.RecordChange(4000, editOn(4000, 3, 1, 0))
	agg.Flush(4500)

	require.Len(t, *emitted, 1)
	m := (*emitted)[0].Metrics
	assert.Equal(t, int64(4000), m.IdleMs)
	// 4500ms on the line minus 4000ms idle.
	assert.Equal(t, int64(500), m.ActiveMs)
}

func TestTrimmedMeanStd(t *testing.T) {
	tests := []struct {
		name     string
		samples  []int64
		trim     float64
		wantMean float64
		wantStd  float64
	}{
		{
			name:     "uniform samples",
			samples:  []int64{100, 100, 100, 100},
			trim:     0.10,
			wantMean: 100,
			wantStd:  0,
		},
		{
			name: "spike trimmed from the tail",
			// 10 samples; 10% trim drops the 5000 spike and the low 10.
			samples:  []int64{10, 100, 100, 100, 100, 100, 100, 100, 100, 5000},
			trim:     0.10,
			wantMean: 100,
			wantStd:  0,
		},
		{
			name:     "empty",
			samples:  nil,
			trim:     0.10,
			wantMean: 0,
			wantStd:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mean, std := trimmedMeanStd(tt.samples, tt.trim)
			assert.InDelta(t, tt.wantMean, mean, 0.001)
			assert.InDelta(t, tt.wantStd, std, 0.001)
		})
	}
}
