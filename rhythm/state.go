package rhythm

import "time"

// TempoState is the unit of tempo propagation. It is always passed by value: every
// consumer owns its own copy, so a snapshot can never be observed half written.
type TempoState struct {
	BPM int
	// DisplayDirty asks the display to re-render this snapshot.
	DisplayDirty bool
}

// NewTempoState returns the startup state.
func NewTempoState() TempoState {
	return TempoState{BPM: DefaultBPM}
}

// Adjust returns a copy moved by delta BPM, clamped to the supported range and marked
// for display.
func (s TempoState) Adjust(delta int) TempoState {
	return TempoState{
		BPM:          ClampBPM(s.BPM + delta),
		DisplayDirty: true,
	}
}

// Interval returns the beat length at the state's tempo.
func (s TempoState) Interval() time.Duration {
	return Interval(s.BPM)
}
