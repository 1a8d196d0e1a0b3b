package show

import "fmt"

// Reason tags a GenerationError for caller-level retry decisions.
type Reason string

const (
	// ReasonConfig marks a configuration error (unknown speaker or tier,
	// invalid script). Retrying without a config change will fail again.
	ReasonConfig Reason = "config"

	// ReasonSynthesis marks a synthesis failure that survived retries and
	// filler policy.
	ReasonSynthesis Reason = "synthesis"

	// ReasonTimeout marks a show that exceeded its wall-clock budget.
	ReasonTimeout Reason = "timeout"

	// ReasonCancelled marks a caller-cancelled show.
	ReasonCancelled Reason = "cancelled"

	// ReasonInternal marks everything else: storage failures, unreadable
	// assets after re-selection, mixing failures.
	ReasonInternal Reason = "internal"
)

// GenerationError is the tagged failure returned by Generate. A failed show
// produces no artifact at all.
type GenerationError struct {
	// Reason classifies the failure.
	Reason Reason

	// ShowID identifies the failed show.
	ShowID string

	// Component names the failing stage ("speaker", "tts", "jingle",
	// "mix", "storage").
	Component string

	// Segment is the failing segment index, or -1 when the failure is not
	// segment-scoped.
	Segment int

	// Err is the underlying cause.
	Err error
}

func (e *GenerationError) Error() string {
	if e.Segment >= 0 {
		return fmt.Sprintf("show %s: %s failed (%s, segment %d): %v",
			e.ShowID, e.Component, e.Reason, e.Segment, e.Err)
	}
	return fmt.Sprintf("show %s: %s failed (%s): %v", e.ShowID, e.Component, e.Reason, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
