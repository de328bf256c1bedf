package rhythm

import (
	"time"

	"github.com/robmorgan/metronome/utils"
)

const (
	// MinBPM is the slowest supported tempo.
	MinBPM = 40
	// MaxBPM is the fastest supported tempo.
	MaxBPM = 240
	// DefaultBPM is the tempo at startup. Tempo is not persisted across restarts.
	DefaultBPM = 120
	// TempoStep is the amount one button press moves the tempo.
	TempoStep = 5

	// PulseWidth is how long the actuator stays on for each beat. It must stay below
	// Interval(MaxBPM) so consecutive pulses never overlap.
	PulseWidth = 50 * time.Millisecond

	// QueueCapacity is the size of each tempo update channel.
	QueueCapacity = 10
)

// Interval returns the beat length for bpm, truncated to whole milliseconds.
// bpm must already be within [MinBPM, MaxBPM].
func Interval(bpm int) time.Duration {
	return time.Duration(60000/bpm) * time.Millisecond
}

// ClampBPM limits bpm to [MinBPM, MaxBPM].
func ClampBPM(bpm int) int {
	return utils.Clamp(bpm, MinBPM, MaxBPM)
}
