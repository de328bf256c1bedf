package input

import (
	"context"
	"time"

	"github.com/robmorgan/metronome/logger"
	"github.com/robmorgan/metronome/metrics"
	"github.com/robmorgan/metronome/rhythm"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// PollInterval is how often the buttons are sampled.
const PollInterval = 50 * time.Millisecond

// Button binds an edge detector to the tempo change it triggers.
type Button struct {
	Name     string
	Detector *EdgeDetector
	Delta    int
}

// Sampler polls the tempo buttons and owns the authoritative TempoState. Every change is
// published, by value, to each output channel in turn. A full channel blocks the sampler
// instead of losing the update.
type Sampler struct {
	clock    clock.Clock
	period   time.Duration
	buttons  []Button
	outputs  []chan<- rhythm.TempoState
	state    rhythm.TempoState
	recorder metrics.Recorder
	log      *logrus.Entry
	start    time.Time
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithPollInterval overrides PollInterval.
func WithPollInterval(d time.Duration) SamplerOption {
	return func(s *Sampler) { s.period = d }
}

// WithSamplerRecorder sets the metrics recorder.
func WithSamplerRecorder(r metrics.Recorder) SamplerOption {
	return func(s *Sampler) { s.recorder = r }
}

// WithSamplerLogger replaces the project logger.
func WithSamplerLogger(log *logrus.Entry) SamplerOption {
	return func(s *Sampler) { s.log = log }
}

// TempoButtons returns the increase and decrease buttons, in evaluation order. When both
// are pressed within one poll, increase is applied first.
func TempoButtons(up, down *EdgeDetector) []Button {
	return []Button{
		{Name: "increase", Detector: up, Delta: rhythm.TempoStep},
		{Name: "decrease", Detector: down, Delta: -rhythm.TempoStep},
	}
}

// NewSampler creates a sampler starting from rhythm.NewTempoState. outputs are written in
// the given order.
func NewSampler(clk clock.Clock, buttons []Button, outputs []chan<- rhythm.TempoState, opts ...SamplerOption) *Sampler {
	s := &Sampler{
		clock:    clk,
		period:   PollInterval,
		buttons:  buttons,
		outputs:  outputs,
		state:    rhythm.NewTempoState(),
		recorder: metrics.NoopRecorder{},
		log:      logger.GetProjectLogger(),
		start:    clk.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("unit", "sampler")
	return s
}

// State returns a copy of the current tempo state.
func (s *Sampler) State() rhythm.TempoState {
	return s.state
}

// Run polls every period until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) error {
	s.start = s.clock.Now()
	t := s.clock.NewTimer(s.period)
	defer t.Stop()

	for {
		if _, err := s.Poll(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C():
			t.Reset(s.period)
		}
	}
}

// Poll samples every button once and publishes a snapshot for each new press. It returns
// the snapshots published, in order.
func (s *Sampler) Poll(ctx context.Context) ([]rhythm.TempoState, error) {
	var published []rhythm.TempoState
	for _, b := range s.buttons {
		if !b.Detector.Sample() {
			continue
		}

		s.state = s.state.Adjust(b.Delta)
		s.recorder.IncTempoChange(b.Name, s.state.BPM)
		s.log.WithFields(logrus.Fields{
			"button":     b.Name,
			"bpm":        s.state.BPM,
			"elapsed_ms": float64(s.clock.Since(s.start).Microseconds()) / 1000,
		}).Info("Button pressed")

		if err := s.publish(ctx, s.state); err != nil {
			return published, err
		}
		published = append(published, s.state)
	}
	return published, nil
}

func (s *Sampler) publish(ctx context.Context, st rhythm.TempoState) error {
	for _, out := range s.outputs {
		select {
		case out <- st:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
