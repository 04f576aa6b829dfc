package pipeline

import (
	"time"
)

// State is the pipeline's position in the question cycle.
type State string

const (
	Idle       State = "idle"
	Narrating  State = "narrating"
	Listening  State = "listening"
	Processing State = "processing"
	Speaking   State = "speaking"
	Complete   State = "complete"
)

// Message is the player facing caption for the state.
func (s State) Message() string {
	switch s {
	case Idle:
		return "Click the Orb to begin..."
	case Narrating:
		return "Listening to the past..."
	case Listening:
		return "The Orb is listening..."
	case Processing:
		return "The Orb contemplates..."
	case Speaking:
		return "The Orb speaks..."
	case Complete:
		return "The Orb falls silent. Time to accuse."
	}
	return "Unknown state"
}

// Status is a read-only snapshot of the pipeline.
type Status struct {
	State              State    `json:"state"`
	Message            string   `json:"message"`
	QuestionsRemaining int      `json:"questionsRemaining"`
	IsListening        bool     `json:"isListening"`
	IsSpeaking         bool     `json:"isSpeaking"`
	DebugLog           []string `json:"debugLog"`
}

// Question is a transcript accepted for answering.
type Question struct {
	Text string `json:"text"`
	// Confidence is passed through from the recognizer as is. It is advisory and never used to reject a question.
	Confidence float64   `json:"confidence"`
	CapturedAt time.Time `json:"capturedAt"`
}

// debugLog keeps the most recent lines for display.
type debugLog struct {
	lines []string
	size  int
}

func newDebugLog(size int) *debugLog {
	return &debugLog{lines: make([]string, 0, size), size: size}
}

func (d *debugLog) add(line string) {
	if d.size <= 0 {
		return
	}
	if len(d.lines) == d.size {
		copy(d.lines, d.lines[1:])
		d.lines[len(d.lines)-1] = line
		return
	}
	d.lines = append(d.lines, line)
}

func (d *debugLog) clear() {
	d.lines = d.lines[:0]
}

func (d *debugLog) snapshot() []string {
	out := make([]string, len(d.lines))
	copy(out, d.lines)
	return out
}
