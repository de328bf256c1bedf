package display

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/aybabtme/rgbterm"
	"github.com/fogleman/ease"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/robmorgan/metronome/logger"
	"github.com/robmorgan/metronome/metrics"
	"github.com/robmorgan/metronome/rhythm"
	"github.com/robmorgan/metronome/utils"
	"github.com/sirupsen/logrus"
)

var (
	slowColor = colorful.Color{R: 0.2, G: 0.5, B: 1.0}
	fastColor = colorful.Color{R: 1.0, G: 0.25, B: 0.2}
)

// Sink renders tempo snapshots. It is the only reader of its channel and never shares it
// with the scheduler, so a slow terminal delays nothing but itself.
type Sink struct {
	in       <-chan rhythm.TempoState
	out      io.Writer
	color    bool
	recorder metrics.Recorder
	log      *logrus.Entry
}

// Option configures a Sink.
type Option func(*Sink)

// WithColor enables 24-bit terminal colours.
func WithColor(enabled bool) Option {
	return func(s *Sink) { s.color = enabled }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Sink) { s.recorder = r }
}

// NewSink creates a sink reading in and writing to out.
func NewSink(in <-chan rhythm.TempoState, out io.Writer, opts ...Option) *Sink {
	s := &Sink{
		in:       in,
		out:      out,
		recorder: metrics.NoopRecorder{},
		log:      logger.GetProjectLogger().WithField("unit", "display"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run waits for snapshots and renders each dirty one, until ctx is cancelled.
func (s *Sink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st := <-s.in:
			if !st.DisplayDirty {
				continue
			}
			if err := s.Render(st); err != nil {
				s.log.WithError(err).Warn("Failed to render tempo")
			}
		}
	}
}

// Render writes one status line for st.
func (s *Sink) Render(st rhythm.TempoState) error {
	free, capacity := s.Headroom()

	bpm := strconv.Itoa(st.BPM)
	if s.color {
		r, g, b := TempoColor(st.BPM).RGB255()
		bpm = rgbterm.FgString(bpm, r, g, b)
	}

	_, err := fmt.Fprintf(s.out, "\rMetronome: %s BPM | queue headroom: %d/%d\n", bpm, free, capacity)
	if err != nil {
		return err
	}
	s.recorder.IncRender()
	return nil
}

// Headroom reports how many more snapshots the sink's queue can take before the sampler
// would block on it.
func (s *Sink) Headroom() (free, capacity int) {
	return cap(s.in) - len(s.in), cap(s.in)
}

// TempoColor maps bpm onto a blue (slow) to red (fast) gradient.
func TempoColor(bpm int) colorful.Color {
	t := float64(bpm-rhythm.MinBPM) / float64(rhythm.MaxBPM-rhythm.MinBPM)
	t = ease.InOutQuad(utils.Clamp(t, 0, 1))
	return slowColor.BlendHcl(fastColor, t).Clamped()
}
