package rhythm

import (
	"context"
	"runtime"
	"time"

	"github.com/robmorgan/metronome/actuator"
	"github.com/robmorgan/metronome/gpio"
	"github.com/robmorgan/metronome/logger"
	"github.com/robmorgan/metronome/metrics"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// Beat describes one emitted beat.
type Beat struct {
	// Number counts beats from 0. Without tempo changes, beat N is due at N*Interval.
	Number   uint64
	At       time.Time
	Elapsed  time.Duration
	Interval time.Duration
	BPM      int
	// Lateness is how far past its deadline the beat started.
	Lateness time.Duration
}

// Metronome is the beat scheduler. It owns the actuator and reads tempo updates from its
// own channel without ever blocking on it. The actuator must return quickly: slow outputs
// belong behind an actuator.Async.
type Metronome struct {
	clock    clock.Clock
	actuator actuator.Actuator
	updates  <-chan TempoState
	pulse    time.Duration
	recorder metrics.Recorder
	observer func(Beat)
	log      *logrus.Entry

	bpm      int
	interval time.Duration
	start    time.Time
	next     time.Time
	count    uint64
}

// Option configures a Metronome.
type Option func(*Metronome)

// WithPulseWidth overrides PulseWidth.
func WithPulseWidth(d time.Duration) Option {
	return func(m *Metronome) { m.pulse = d }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(m *Metronome) { m.recorder = r }
}

// WithObserver registers fn to be called from the scheduler goroutine on every beat,
// before the pulse. fn must not block.
func WithObserver(fn func(Beat)) Option {
	return func(m *Metronome) { m.observer = fn }
}

// WithLogger replaces the project logger.
func WithLogger(log *logrus.Entry) Option {
	return func(m *Metronome) { m.log = log }
}

// NewMetronome creates a scheduler at DefaultBPM.
func NewMetronome(clk clock.Clock, act actuator.Actuator, updates <-chan TempoState, opts ...Option) *Metronome {
	m := &Metronome{
		clock:    clk,
		actuator: act,
		updates:  updates,
		pulse:    PulseWidth,
		recorder: metrics.NoopRecorder{},
		log:      logger.GetProjectLogger(),
		bpm:      DefaultBPM,
		interval: Interval(DefaultBPM),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithField("unit", "scheduler")
	return m
}

// Run emits beats until ctx is cancelled. The first beat fires immediately; beat N is
// scheduled at the start time plus the sum of the intervals of the N beats before it,
// so the time spent pulsing and logging never accumulates as drift.
func (m *Metronome) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer m.set(gpio.Low)

	m.start = m.clock.Now()
	m.next = m.start
	m.log.Infof("Metronome started at %d BPM", m.bpm)

	for {
		m.adoptPendingTempo()
		if err := m.beat(ctx); err != nil {
			return err
		}
		if err := m.waitNextBeat(ctx); err != nil {
			return err
		}
	}
}

// adoptPendingTempo drains whatever updates are queued and keeps the latest. It never
// waits: a tempo change only takes effect at the start of a beat.
func (m *Metronome) adoptPendingTempo() {
	for {
		select {
		case st := <-m.updates:
			m.bpm = st.BPM
			m.interval = Interval(st.BPM)
			m.log.WithFields(logrus.Fields{
				"bpm":         m.bpm,
				"interval_ms": m.interval.Milliseconds(),
			}).Info("Tempo updated")
		default:
			return
		}
	}
}

func (m *Metronome) beat(ctx context.Context) error {
	now := m.clock.Now()
	b := Beat{
		Number:   m.count,
		At:       now,
		Elapsed:  now.Sub(m.start),
		Interval: m.interval,
		BPM:      m.bpm,
		Lateness: now.Sub(m.next),
	}
	m.count++

	m.recorder.ObserveBeat(b.BPM, b.Lateness)
	if m.observer != nil {
		m.observer(b)
	}
	m.log.WithFields(logrus.Fields{
		"beat":        b.Number,
		"elapsed_ms":  float64(b.Elapsed.Microseconds()) / 1000,
		"interval_ms": b.Interval.Milliseconds(),
		"bpm":         b.BPM,
	}).Info("Beat")

	m.set(gpio.High)
	err := sleep(ctx, m.clock, m.pulse)
	m.set(gpio.Low)
	return err
}

func (m *Metronome) waitNextBeat(ctx context.Context) error {
	m.next = m.next.Add(m.interval)

	now := m.clock.Now()
	if behind := now.Sub(m.next); behind >= m.interval {
		m.log.WithField("behind_ms", behind.Milliseconds()).Warn("Scheduler fell behind, re-anchoring beat grid")
		m.next = now
		return ctx.Err()
	}
	return sleep(ctx, m.clock, m.next.Sub(now))
}

func (m *Metronome) set(level gpio.Level) {
	if err := m.actuator.Set(level); err != nil {
		m.log.WithError(err).Warnf("Failed to drive actuator %s", level)
	}
}

// sleep waits for d on clk or until ctx is done.
func sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := clk.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}
