package metrics

import (
	"edlog/internal/event"
)

// Default tuning. Values match the recorded editor's behavior.
const (
	DefaultWindowMs        = 60_000
	DefaultIdleThresholdMs = 3_000
	DefaultLineRadius      = 5
	DefaultDelaySamples    = 200
	DefaultTrimFraction    = 0.10
	DefaultOutlierStdevs   = 2.0
	// minDelaySamples is the smallest delay buffer considered meaningful for
	// outlier detection; below it every gap would look extreme.
	minDelaySamples = 5
)

// Config tunes the aggregator. Zero values fall back to the defaults.
type Config struct {
	WindowMs        int64
	IdleThresholdMs int64
	LineRadius      int
	DelaySamples    int
	TrimFraction    float64
	OutlierStdevs   float64
}

func (c Config) withDefaults() Config {
	if c.WindowMs == 0 {
		c.WindowMs = DefaultWindowMs
	}
	if c.IdleThresholdMs == 0 {
		c.IdleThresholdMs = DefaultIdleThresholdMs
	}
	if c.LineRadius == 0 {
		c.LineRadius = DefaultLineRadius
	}
	if c.DelaySamples == 0 {
		c.DelaySamples = DefaultDelaySamples
	}
	if c.TrimFraction == 0 {
		c.TrimFraction = DefaultTrimFraction
	}
	if c.OutlierStdevs == 0 {
		c.OutlierStdevs = DefaultOutlierStdevs
	}
	return c
}

// EmitFunc receives finalized LINE_METRICS events. Emission happens inline
// with the change notification that triggered the line transition.
type EmitFunc func(event.Event)

type churnSample struct {
	ts      int64
	line    int
	added   int
	deleted int
}

type undoSample struct {
	ts   int64
	line int
	redo bool
}

type keySample struct {
	ts    int64
	line  int
	chars int
}

// Aggregator consumes the raw change stream and maintains the rolling
// windows. Not safe for concurrent use; the client side is a single
// cooperative loop.
type Aggregator struct {
	cfg  Config
	emit EmitFunc

	churn      []churnSample
	undos      []undoSample
	keystrokes []keySample

	// delays is a ring of the most recent inter-event pause durations.
	delays []int64

	activeLine  int
	activeSince int64
	idleMs      int64
	lastEventTs int64
	sawEvent    bool
	lastGap     int64
	lastOutlier bool
}

// New creates an aggregator that reports finalized snapshots through emit.
func New(cfg Config, emit EmitFunc) *Aggregator {
	return &Aggregator{cfg: cfg.withDefaults(), emit: emit}
}

// RecordChange consumes one raw change notification at the given timestamp.
//
// Order of operations matters: the inter-event gap is classified against the
// previous active line before any line transition, so a pause spent on a line
// is attributed to that line even when the next edit moves elsewhere.
func (a *Aggregator) RecordChange(ts int64, ev event.Event) {
	line := ev.CenterLine()
	if line == 0 {
		return
	}

	if a.sawEvent {
		gap := ts - a.lastEventTs
		a.lastGap = gap
		a.lastOutlier = a.isOutlier(gap)
		a.pushDelay(gap)

		// Idle only accrues while the active line is unchanged.
		if gap >= a.cfg.IdleThresholdMs && line == a.activeLine {
			a.idleMs += gap
		}
	}
	a.lastEventTs = ts
	a.sawEvent = true

	if a.activeLine != 0 && line != a.activeLine {
		a.finalize(ts, a.activeLine)
	}
	if a.activeLine != line {
		a.activeLine = line
		a.activeSince = ts
		a.idleMs = 0
	}

	added := ev.InsertedChars()
	deleted := ev.DeletedChars()
	a.churn = append(a.churn, churnSample{ts: ts, line: line, added: added, deleted: deleted})
	if added > 0 {
		a.keystrokes = append(a.keystrokes, keySample{ts: ts, line: line, chars: added})
	}
	a.prune(ts)
}

// RecordUndo notes an undo at the given timestamp against the active line.
func (a *Aggregator) RecordUndo(ts int64) {
	if a.activeLine == 0 {
		return
	}
	a.undos = append(a.undos, undoSample{ts: ts, line: a.activeLine})
	a.prune(ts)
}

// RecordRedo notes a redo at the given timestamp against the active line.
func (a *Aggregator) RecordRedo(ts int64) {
	if a.activeLine == 0 {
		return
	}
	a.undos = append(a.undos, undoSample{ts: ts, line: a.activeLine, redo: true})
	a.prune(ts)
}

// Flush finalizes the current active line, if any. Called on session stop so
// the last line's snapshot is not lost.
func (a *Aggregator) Flush(ts int64) {
	if a.activeLine == 0 {
		return
	}
	a.finalize(ts, a.activeLine)
	a.activeLine = 0
	a.idleMs = 0
}

// ActiveLine returns the line currently accumulating engagement, 0 if none.
func (a *Aggregator) ActiveLine() int {
	return a.activeLine
}

// IdleMs returns the active line's idle accumulator. Exposed for tests.
func (a *Aggregator) IdleMs() int64 {
	return a.idleMs
}

// finalize emits one snapshot for the line being left and resets its idle
// accumulator. Prior snapshots are never revised.
func (a *Aggregator) finalize(ts int64, line int) {
	snap := a.snapshot(ts, line)
	a.emit(event.Event{
		Timestamp: ts,
		Type:      event.TypeLineMetrics,
		Line:      line,
		Metrics:   &snap,
	})
	a.idleMs = 0
}

// snapshot computes the metrics for a line over the current window and
// spatial radius.
func (a *Aggregator) snapshot(ts int64, line int) event.LineMetrics {
	var added, deleted, typed, undoCount, redoCount int

	for _, s := range a.churn {
		if a.inScope(ts, s.ts, s.line, line) {
			added += s.added
			deleted += s.deleted
		}
	}
	for _, s := range a.keystrokes {
		if a.inScope(ts, s.ts, s.line, line) {
			typed += s.chars
		}
	}
	for _, s := range a.undos {
		if a.inScope(ts, s.ts, s.line, line) {
			if s.redo {
				redoCount++
			} else {
				undoCount++
			}
		}
	}

	net := added - deleted
	if net < 0 {
		net = -net
	}
	denom := net
	if denom < 1 {
		denom = 1
	}

	activeMs := ts - a.activeSince - a.idleMs
	if activeMs < 0 {
		activeMs = 0
	}

	// Keystroke rate: typed chars over estimated active seconds in the
	// window, floored at one second to keep early bursts finite.
	activeSec := float64(a.cfg.WindowMs-a.idleMs) / 1000
	if activeSec < 1 {
		activeSec = 1
	}

	return event.LineMetrics{
		ActiveMs:      activeMs,
		IdleMs:        a.idleMs,
		DelayMs:       a.lastGap,
		DelayOutlier:  a.lastOutlier,
		ChurnAdded:    added,
		ChurnDeleted:  deleted,
		ChurnRatio:    float64(added+deleted) / float64(denom),
		UndoCount:     undoCount,
		RedoCount:     redoCount,
		KeystrokeRate: float64(typed) / activeSec,
		IdleFlag:      a.idleMs > 0,
	}
}

// inScope reports whether a sample is inside the rolling window and within
// the line radius of the target line.
func (a *Aggregator) inScope(now, sampleTs int64, sampleLine, line int) bool {
	if sampleTs < now-a.cfg.WindowMs {
		return false
	}
	d := sampleLine - line
	if d < 0 {
		d = -d
	}
	return d <= a.cfg.LineRadius
}

// prune drops samples that fell out of the rolling window.
func (a *Aggregator) prune(now int64) {
	cutoff := now - a.cfg.WindowMs

	keepChurn := a.churn[:0]
	for _, s := range a.churn {
		if s.ts >= cutoff {
			keepChurn = append(keepChurn, s)
		}
	}
	a.churn = keepChurn

	keepKeys := a.keystrokes[:0]
	for _, s := range a.keystrokes {
		if s.ts >= cutoff {
			keepKeys = append(keepKeys, s)
		}
	}
	a.keystrokes = keepKeys

	keepUndos := a.undos[:0]
	for _, s := range a.undos {
		if s.ts >= cutoff {
			keepUndos = append(keepUndos, s)
		}
	}
	a.undos = keepUndos
}

// pushDelay appends a pause duration to the ring, evicting the oldest sample
// once the buffer is full.
func (a *Aggregator) pushDelay(gap int64) {
	if len(a.delays) >= a.cfg.DelaySamples {
		a.delays = a.delays[1:]
	}
	a.delays = append(a.delays, gap)
}

// isOutlier flags a gap that exceeds mean + k*std of the trimmed delay
// buffer. The buffer must hold enough samples to make the trim meaningful.
func (a *Aggregator) isOutlier(gap int64) bool {
	if len(a.delays) < minDelaySamples {
		return false
	}
	mean, std := trimmedMeanStd(a.delays, a.cfg.TrimFraction)
	return float64(gap) > mean+a.cfg.OutlierStdevs*std
}
