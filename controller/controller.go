package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/robmorgan/metronome/actuator"
	"github.com/robmorgan/metronome/config"
	"github.com/robmorgan/metronome/display"
	"github.com/robmorgan/metronome/gpio"
	"github.com/robmorgan/metronome/input"
	"github.com/robmorgan/metronome/logger"
	"github.com/robmorgan/metronome/metrics"
	"github.com/robmorgan/metronome/rhythm"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
)

// State is the lifecycle of a Controller.
type State int32

const (
	StateUninitialized State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// ErrAlreadyStarted is returned by Run when the controller was run before.
var ErrAlreadyStarted = errors.New("controller already started")

// Hardware groups the configured inputs and outputs. The buttons are active Low.
type Hardware struct {
	Up   gpio.InputPin
	Down gpio.InputPin
	// Actuator is driven directly by the scheduler and must return immediately (GPIO).
	Actuator actuator.Actuator
	// Outputs may block (network, audio); each one runs on its own goroutine.
	Outputs []*actuator.Async
	Display io.Writer
}

// Controller wires the input sampler, the beat scheduler and the display together.
type Controller struct {
	cfg      config.MetronomeConfig
	hw       Hardware
	clock    clock.Clock
	recorder metrics.Recorder
	logs     *logger.AsyncWriter
	observer func(rhythm.Beat)
	state    atomic.Int32
	log      *logrus.Entry
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the real clock.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithRecorder sets the metrics recorder shared by all units.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithLogWriter runs w's consumer alongside the units, at the lowest priority.
func WithLogWriter(w *logger.AsyncWriter) Option {
	return func(c *Controller) { c.logs = w }
}

// WithBeatObserver is called by the scheduler on every beat. fn must not block.
func WithBeatObserver(fn func(rhythm.Beat)) Option {
	return func(c *Controller) { c.observer = fn }
}

// New checks the configuration and the hardware. It does not start anything.
func New(cfg config.MetronomeConfig, hw Hardware, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hw.Up == nil || hw.Down == nil {
		return nil, errors.New("both tempo buttons must be configured")
	}
	if hw.Actuator == nil {
		return nil, errors.New("no beat actuator configured")
	}
	if hw.Display == nil {
		hw.Display = io.Discard
	}

	c := &Controller{
		cfg:      cfg,
		hw:       hw,
		clock:    clock.RealClock{},
		recorder: metrics.NoopRecorder{},
		log:      logger.GetProjectLogger().WithField("unit", "controller"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State reports the lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Run starts every unit and blocks until ctx is cancelled or a unit fails. Cancellation
// is a clean stop and returns nil.
func (c *Controller) Run(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateUninitialized), int32(StateRunning)) {
		return ErrAlreadyStarted
	}
	defer c.state.Store(int32(StateStopped))

	// Each consumer gets its own queue so the display can never hold back the scheduler.
	toDisplay := make(chan rhythm.TempoState, c.cfg.QueueCapacity)
	toScheduler := make(chan rhythm.TempoState, c.cfg.QueueCapacity)

	schedulerOpts := []rhythm.Option{
		rhythm.WithPulseWidth(c.cfg.PulseWidth),
		rhythm.WithRecorder(c.recorder),
	}
	if c.observer != nil {
		schedulerOpts = append(schedulerOpts, rhythm.WithObserver(c.observer))
	}
	beat := actuator.Group{c.hw.Actuator}
	for _, out := range c.hw.Outputs {
		beat = append(beat, out)
	}
	scheduler := rhythm.NewMetronome(c.clock, beat, toScheduler, schedulerOpts...)

	buttons := input.TempoButtons(
		input.NewEdgeDetector(c.hw.Up, gpio.Low),
		input.NewEdgeDetector(c.hw.Down, gpio.Low),
	)
	sampler := input.NewSampler(c.clock, buttons,
		[]chan<- rhythm.TempoState{toDisplay, toScheduler},
		input.WithPollInterval(c.cfg.PollInterval),
		input.WithSamplerRecorder(c.recorder),
	)

	sink := display.NewSink(toDisplay, c.hw.Display,
		display.WithColor(c.cfg.Color),
		display.WithRecorder(c.recorder),
	)

	c.log.WithFields(logrus.Fields{
		"bpm":            rhythm.DefaultBPM,
		"poll_interval":  c.cfg.PollInterval,
		"pulse_width":    c.cfg.PulseWidth,
		"queue_capacity": c.cfg.QueueCapacity,
	}).Info("Metronome running")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return stopped(scheduler.Run(gctx)) })
	g.Go(func() error { return stopped(sampler.Run(gctx)) })
	g.Go(func() error { return stopped(sink.Run(gctx)) })
	for _, out := range c.hw.Outputs {
		out := out
		g.Go(func() error { return out.Run(gctx) })
	}
	if c.logs != nil {
		g.Go(func() error { return c.logs.Run(gctx) })
	}

	err := g.Wait()
	c.log.Info("Metronome stopped")
	return err
}

func stopped(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
