package actuator

import (
	"context"
	"sync/atomic"

	"github.com/robmorgan/metronome/gpio"
	"github.com/robmorgan/metronome/logger"
	"github.com/robmorgan/metronome/metrics"
	"github.com/sirupsen/logrus"
)

// DefaultBacklog is the number of beat edges an Async output queues before it drops.
const DefaultBacklog = 16

// Async moves an output that may block, such as MIDI, OSC, DMX or audio, off the beat
// scheduler. Set only queues the level and never waits; Run delivers queued levels in
// order from its own goroutine. An edge that does not fit in the backlog is counted and
// discarded, so a stalled output can neither delay nor stretch the pulse.
type Async struct {
	name     string
	out      Actuator
	levels   chan gpio.Level
	dropped  atomic.Uint64
	last     gpio.Level
	recorder metrics.Recorder
	log      *logrus.Entry
}

// AsyncOption configures an Async output.
type AsyncOption func(*Async)

// WithBacklog overrides DefaultBacklog.
func WithBacklog(n int) AsyncOption {
	return func(a *Async) {
		if n > 0 {
			a.levels = make(chan gpio.Level, n)
		}
	}
}

// WithAsyncRecorder sets the metrics recorder.
func WithAsyncRecorder(r metrics.Recorder) AsyncOption {
	return func(a *Async) { a.recorder = r }
}

// WithAsyncLogger replaces the project logger.
func WithAsyncLogger(log *logrus.Entry) AsyncOption {
	return func(a *Async) { a.log = log }
}

// NewAsync queues levels for out. name labels its log lines and metrics.
func NewAsync(name string, out Actuator, opts ...AsyncOption) *Async {
	a := &Async{
		name:     name,
		out:      out,
		levels:   make(chan gpio.Level, DefaultBacklog),
		recorder: metrics.NoopRecorder{},
		log:      logger.GetProjectLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithField("output", name)
	return a
}

// Name returns the output's label.
func (a *Async) Name() string {
	return a.name
}

// Set implements Actuator. It never blocks and never fails.
func (a *Async) Set(level gpio.Level) error {
	select {
	case a.levels <- level:
	default:
		a.dropped.Add(1)
		a.recorder.IncOutputDropped(a.name)
	}
	return nil
}

// Dropped reports how many edges were discarded because the backlog was full.
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

// Run delivers queued levels until ctx is cancelled. It then delivers what is still queued
// and leaves the output Low.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.flush()
			return nil
		case level := <-a.levels:
			a.deliver(level)
		}
	}
}

func (a *Async) flush() {
	for {
		select {
		case level := <-a.levels:
			a.deliver(level)
		default:
			if a.last == gpio.High {
				a.deliver(gpio.Low)
			}
			if n := a.Dropped(); n > 0 {
				a.log.WithField("dropped", n).Warn("Output fell behind and skipped beat edges")
			}
			return
		}
	}
}

func (a *Async) deliver(level gpio.Level) {
	if err := a.out.Set(level); err != nil {
		a.log.WithError(err).Warnf("Failed to drive output %s", level)
	}
	a.last = level
}
