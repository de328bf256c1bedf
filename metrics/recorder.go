// Package metrics exposes the metronome's runtime figures.
//
// Components take a Recorder and default to NoopRecorder, so metrics stay optional and the
// beat loop never checks for nil. The Prometheus implementation is activated by main when a
// metrics address is configured.
package metrics

import "time"

// Recorder collects metronome metrics.
type Recorder interface {
	// ObserveBeat records one emitted beat and how late it started against its deadline.
	ObserveBeat(bpm int, lateness time.Duration)
	// IncTempoChange records a debounced button press and the resulting tempo.
	IncTempoChange(direction string, bpm int)
	// IncRender records a display update.
	IncRender()
	// IncOutputDropped records a beat edge an asynchronous output had no room for.
	IncOutputDropped(output string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBeat(int, time.Duration) {}
func (NoopRecorder) IncTempoChange(string, int)     {}
func (NoopRecorder) IncRender()                     {}
func (NoopRecorder) IncOutputDropped(string)        {}
