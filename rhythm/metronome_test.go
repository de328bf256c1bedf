package rhythm

import (
	"context"
	"io"
	"math/rand"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/robmorgan/metronome/actuator"
	"github.com/robmorgan/metronome/gpio"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}

// stepActuator records levels and advances the fake clock on every Set, simulating
// side effects of variable cost.
type stepActuator struct {
	mu     sync.Mutex
	levels []gpio.Level
	cost   func(level gpio.Level) time.Duration
	clock  *testingclock.FakeClock
}

func (a *stepActuator) Set(level gpio.Level) error {
	a.mu.Lock()
	a.levels = append(a.levels, level)
	a.mu.Unlock()
	if a.cost != nil {
		if d := a.cost(level); d > 0 {
			a.clock.Step(d)
		}
	}
	return nil
}

func (a *stepActuator) Levels() []gpio.Level {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]gpio.Level(nil), a.levels...)
}

type beatLog struct {
	mu    sync.Mutex
	beats []Beat
}

func (l *beatLog) add(b Beat) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.beats = append(l.beats, b)
}

func (l *beatLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.beats)
}

func (l *beatLog) all() []Beat {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Beat(nil), l.beats...)
}

// runScheduler starts m and advances the fake clock one millisecond at a time whenever the
// scheduler is waiting, until want beats were observed. It returns Run's error.
func runScheduler(t *testing.T, fc *testingclock.FakeClock, m *Metronome, log *beatLog, want int) error {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.Now().Add(30 * time.Second)
	for log.len() < want {
		require.True(t, time.Now().Before(deadline), "scheduler stalled after %d beats", log.len())
		if fc.HasWaiters() {
			fc.Step(time.Millisecond)
			continue
		}
		runtime.Gosched()
	}

	cancel()
	return <-done
}

func TestMetronomeDefaultInterval(t *testing.T) {
	t.Parallel()

	// Create a new metronome with a default of 120 bpm
	m := NewMetronome(testingclock.NewFakeClock(time.Now()), &stepActuator{}, nil)

	// The beat interval should be every 500ms
	assert.Equal(t, 500*time.Millisecond, m.interval)
	assert.Equal(t, DefaultBPM, m.bpm)
}

func TestMetronomeDoesNotDrift(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fc := testingclock.NewFakeClock(t0)
	rnd := rand.New(rand.NewSource(7))
	act := &stepActuator{
		clock: fc,
		cost: func(gpio.Level) time.Duration {
			return time.Duration(rnd.Intn(40)) * time.Millisecond
		},
	}
	log := &beatLog{}
	m := NewMetronome(fc, act, make(chan TempoState), WithObserver(log.add), WithLogger(quietLogger()))

	err := runScheduler(t, fc, m, log, 100)
	require.ErrorIs(t, err, context.Canceled)

	beats := log.all()
	require.GreaterOrEqual(t, len(beats), 100)
	for n, b := range beats[:100] {
		expected := time.Duration(n) * 500 * time.Millisecond
		assert.Equal(t, uint64(n), b.Number)
		assert.InDelta(t, float64(expected), float64(b.At.Sub(t0)), float64(time.Millisecond), "beat %d", n)
		assert.LessOrEqual(t, b.Lateness, time.Millisecond)
		assert.Equal(t, 120, b.BPM)
	}
}

func TestMetronomePulses(t *testing.T) {
	t.Parallel()

	fc := testingclock.NewFakeClock(time.Now())
	act := &stepActuator{clock: fc}
	log := &beatLog{}
	m := NewMetronome(fc, act, make(chan TempoState), WithObserver(log.add), WithLogger(quietLogger()))

	require.ErrorIs(t, runScheduler(t, fc, m, log, 3), context.Canceled)

	levels := act.Levels()
	require.NotEmpty(t, levels)
	assert.Equal(t, gpio.High, levels[0])
	assert.Equal(t, gpio.Low, levels[1])
	// the actuator is always released on exit
	assert.Equal(t, gpio.Low, levels[len(levels)-1])
	for i := 1; i < len(levels); i++ {
		if levels[i] == gpio.High {
			assert.Equal(t, gpio.Low, levels[i-1], "pulse %d overlaps the previous one", i)
		}
	}
}

func TestMetronomeAdoptsTempoOnNextBeat(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fc := testingclock.NewFakeClock(t0)
	updates := make(chan TempoState, QueueCapacity)
	log := &beatLog{}
	observe := func(b Beat) {
		log.add(b)
		if b.Number == 2 {
			// arrives while beat 2 is in progress
			updates <- TempoState{BPM: 200, DisplayDirty: true}
			updates <- TempoState{BPM: 240, DisplayDirty: true}
		}
	}
	m := NewMetronome(fc, &stepActuator{clock: fc}, updates, WithObserver(observe), WithLogger(quietLogger()))

	require.ErrorIs(t, runScheduler(t, fc, m, log, 6), context.Canceled)

	beats := log.all()
	offsets := make([]time.Duration, 6)
	for i := range offsets {
		offsets[i] = beats[i].At.Sub(t0)
	}
	assert.Equal(t, []time.Duration{
		0,
		500 * time.Millisecond,
		1000 * time.Millisecond,
		// beat 2 keeps its interval, the update applies from beat 3 on
		1500 * time.Millisecond,
		1750 * time.Millisecond,
		2000 * time.Millisecond,
	}, offsets)
	assert.Equal(t, 120, beats[2].BPM)
	assert.Equal(t, 240, beats[3].BPM)
	assert.Equal(t, 250*time.Millisecond, beats[3].Interval)
	assert.Empty(t, updates)
}

func TestMetronomeReanchorsAfterStall(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fc := testingclock.NewFakeClock(t0)
	lows := 0
	act := &stepActuator{
		clock: fc,
		cost: func(level gpio.Level) time.Duration {
			if level == gpio.Low {
				lows++
				if lows == 2 {
					return 2 * time.Second
				}
			}
			return 0
		},
	}
	log := &beatLog{}
	m := NewMetronome(fc, act, make(chan TempoState), WithObserver(log.add), WithLogger(quietLogger()))

	require.ErrorIs(t, runScheduler(t, fc, m, log, 4), context.Canceled)

	beats := log.all()
	assert.Equal(t, 500*time.Millisecond, beats[1].At.Sub(t0))
	// beat 1 ends at 500+50+2000ms; the grid restarts there instead of bursting
	assert.Equal(t, 2550*time.Millisecond, beats[2].At.Sub(t0))
	assert.Equal(t, time.Duration(0), beats[2].Lateness)
	assert.Equal(t, 3050*time.Millisecond, beats[3].At.Sub(t0))
}

func TestMetronomeStopsDuringPulse(t *testing.T) {
	t.Parallel()

	fc := testingclock.NewFakeClock(time.Now())
	act := &stepActuator{clock: fc}
	m := NewMetronome(fc, act, nil, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, fc.HasWaiters, time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []gpio.Level{gpio.High, gpio.Low, gpio.Low}, act.Levels())
}

// timedActuator records the fake time of every edge.
type timedActuator struct {
	mu    sync.Mutex
	clock *testingclock.FakeClock
	highs []time.Time
	lows  []time.Time
}

func (a *timedActuator) Set(level gpio.Level) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if level == gpio.High {
		a.highs = append(a.highs, a.clock.Now())
	} else {
		a.lows = append(a.lows, a.clock.Now())
	}
	return nil
}

// blockingActuator never returns from Set until release is closed.
type blockingActuator struct {
	release chan struct{}
}

func (a blockingActuator) Set(gpio.Level) error {
	<-a.release
	return nil
}

func TestMetronomePulseIgnoresStalledOutputs(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fc := testingclock.NewFakeClock(t0)
	led := &timedActuator{clock: fc}
	stalled := blockingActuator{release: make(chan struct{})}
	dmx := actuator.NewAsync("dmx", stalled, actuator.WithAsyncLogger(quietLogger()))

	outCtx, stopOutputs := context.WithCancel(context.Background())
	outDone := make(chan error, 1)
	go func() { outDone <- dmx.Run(outCtx) }()

	log := &beatLog{}
	m := NewMetronome(fc, actuator.Group{led, dmx}, make(chan TempoState), WithObserver(log.add), WithLogger(quietLogger()))
	require.ErrorIs(t, runScheduler(t, fc, m, log, 4), context.Canceled)

	close(stalled.release)
	stopOutputs()
	require.NoError(t, <-outDone)

	led.mu.Lock()
	defer led.mu.Unlock()
	require.GreaterOrEqual(t, len(led.highs), 3)
	require.GreaterOrEqual(t, len(led.lows), 3)
	for i := 0; i < 3; i++ {
		assert.Equal(t, time.Duration(i)*500*time.Millisecond, led.highs[i].Sub(t0), "beat %d", i)
		assert.Equal(t, PulseWidth, led.lows[i].Sub(led.highs[i]), "pulse %d", i)
	}
}
