package event

// Type distinguishes the kinds of session events.
type Type string

const (
	// TypeEdit is a raw content change from the editor.
	TypeEdit Type = "EDIT"
	// TypeLineUpdate carries the full text of one line after an edit touched it.
	TypeLineUpdate Type = "LINE_UPDATE"
	// TypeLineMetrics carries a derived per-line engagement snapshot.
	TypeLineMetrics Type = "LINE_METRICS"
	// TypeWordComplete marks completion of a word while typing.
	TypeWordComplete Type = "WORD_COMPLETE"
	// TypeLineComplete marks completion of a line while typing.
	TypeLineComplete Type = "LINE_COMPLETE"
	// TypeCodeRun records a run of the current code against the execution service.
	TypeCodeRun Type = "CODE_RUN"
)

// ValidTypes defines the accepted event types on the append path.
var ValidTypes = map[Type]bool{
	TypeEdit:         true,
	TypeLineUpdate:   true,
	TypeLineMetrics:  true,
	TypeWordComplete: true,
	TypeLineComplete: true,
	TypeCodeRun:      true,
}

// LineKeyed reports whether events of this type are appended to the per-line
// history rather than the flat event log.
func (t Type) LineKeyed() bool {
	return t == TypeLineUpdate || t == TypeLineMetrics
}

// Range identifies the region of the document an edit replaced.
// Lines and columns are 1-based, matching editor conventions.
type Range struct {
	StartLine int `json:"startLine"`
	StartCol  int `json:"startCol"`
	EndLine   int `json:"endLine"`
	EndCol    int `json:"endCol"`
}

// Change is a single replacement within an EDIT event. A change may span
// multiple lines (paste, multi-line delete).
type Change struct {
	Range          Range  `json:"range"`
	InsertedText   string `json:"insertedText"`
	ReplacedLength int    `json:"replacedLength"`
}

// LineMetrics is a derived per-line engagement snapshot, recomputed and
// re-appended whenever the active line changes. Snapshots are never revised
// after emission.
type LineMetrics struct {
	ActiveMs      int64   `json:"activeMs"`
	IdleMs        int64   `json:"idleMs"`
	DelayMs       int64   `json:"delayMs"`
	DelayOutlier  bool    `json:"delayOutlier"`
	ChurnAdded    int     `json:"churnAdded"`
	ChurnDeleted  int     `json:"churnDeleted"`
	ChurnRatio    float64 `json:"churnRatio"`
	UndoCount     int     `json:"undoCount"`
	RedoCount     int     `json:"redoCount"`
	KeystrokeRate float64 `json:"keystrokeRate"`
	IdleFlag      bool    `json:"idleFlag"`
}

// RunResult is the outcome reported by the execution service for a CODE_RUN
// event. It is contextual enrichment only; recording and replay never depend
// on it.
type RunResult struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// Event is one entry in a session's append-only log.
//
// Timestamp is milliseconds since session start. Seq is the arrival index
// assigned by the store on append; within one session the (Timestamp, Seq)
// pairs are non-decreasing and Seq is the sole tie-break when timestamps
// collide.
//
// Exactly one payload field is populated according to Type:
//   - EDIT: Changes
//   - LINE_UPDATE: Line, Content
//   - LINE_METRICS: Line, Metrics
//   - WORD_COMPLETE, LINE_COMPLETE: Line, Word (word optional)
//   - CODE_RUN: Run
type Event struct {
	Timestamp int64        `json:"timestamp"`
	Seq       int64        `json:"seq,omitempty"`
	Type      Type         `json:"type"`
	Changes   []Change     `json:"changes,omitempty"`
	Line      int          `json:"line,omitempty"`
	Content   string       `json:"content,omitempty"`
	Metrics   *LineMetrics `json:"metrics,omitempty"`
	Word      string       `json:"word,omitempty"`
	Run       *RunResult   `json:"run,omitempty"`
}

// LineVersion is one entry of a line's append-only history. Content versions
// carry Content; metrics versions carry Metrics. A line's content at instant t
// is the last content entry with Timestamp <= t.
type LineVersion struct {
	Timestamp int64        `json:"timestamp"`
	Seq       int64        `json:"seq,omitempty"`
	Content   *string      `json:"content,omitempty"`
	Metrics   *LineMetrics `json:"metrics,omitempty"`
}

// Session is the full session document as stored.
type Session struct {
	SessionID   string                `json:"sessionId"`
	Language    string                `json:"language"`
	InitialCode string                `json:"initialCode"`
	StartTime   int64                 `json:"startTime"`
	EndTime     *int64                `json:"endTime,omitempty"`
	Events      []Event               `json:"events"`
	LineHistory map[int][]LineVersion `json:"lineHistory,omitempty"`
}

// Summary is the listing view of a session, sorted by recency.
type Summary struct {
	SessionID string `json:"sessionId"`
	Language  string `json:"language"`
	StartTime int64  `json:"startTime"`
	EndTime   *int64 `json:"endTime,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
}
