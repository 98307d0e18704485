package calendar

// DefaultConfidenceThreshold is the minimum extraction confidence admitted by the gate.
const DefaultConfidenceThreshold = 0.7

// RejectReason explains why a run stopped before producing a confirmation.
type RejectReason string

const (
	ReasonNotCalendarEvent       RejectReason = "NOT_CALENDAR_EVENT"
	ReasonLowConfidence          RejectReason = "LOW_CONFIDENCE"
	ReasonUnsupportedRequestType RejectReason = "UNSUPPORTED_REQUEST_TYPE"
)

// Gate is the admission check applied after extraction.
type Gate struct {
	Threshold float64
}

// NewGate creates a gate. A threshold outside [0,1] falls back to the default.
func NewGate(threshold float64) Gate {
	if threshold < 0 || threshold > 1 {
		threshold = DefaultConfidenceThreshold
	}
	return Gate{Threshold: threshold}
}

// Admit reports whether the record may proceed to routing.
func (g Gate) Admit(rec *ExtractionRecord) bool {
	_, ok := g.Evaluate(rec)
	return ok
}

// Evaluate returns the rejection reason, or ok when the record passes.
// A non-calendar record is reported as such even when its confidence is also low.
func (g Gate) Evaluate(rec *ExtractionRecord) (RejectReason, bool) {
	if rec == nil || !rec.IsCalendarEvent {
		return ReasonNotCalendarEvent, false
	}
	if rec.ConfidenceScore < g.Threshold {
		return ReasonLowConfidence, false
	}
	return "", true
}
