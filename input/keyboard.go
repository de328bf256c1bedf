package input

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/robmorgan/metronome/gpio"
	"github.com/robmorgan/metronome/logger"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// TapHold is how long a key tap holds a simulated button down, and then up again. It is
// longer than PollInterval so the sampler sees exactly one press per tap.
const TapHold = 150 * time.Millisecond

// Keyboard emulates the two tempo buttons from a terminal: '+' taps the increase button
// and '-' the decrease button. 'q' or Ctrl-C ask the program to stop.
type Keyboard struct {
	clock  clock.Clock
	in     io.Reader
	up     gpio.OutputPin
	down   gpio.OutputPin
	active gpio.Level
	hold   time.Duration
	quit   func()
	log    *logrus.Entry
}

// NewKeyboard drives up and down (active Low, like the real buttons) from in.
// quit is called when the user asks to exit.
func NewKeyboard(clk clock.Clock, in io.Reader, up, down gpio.OutputPin, quit func()) *Keyboard {
	return &Keyboard{
		clock:  clk,
		in:     in,
		up:     up,
		down:   down,
		active: gpio.Low,
		hold:   TapHold,
		quit:   quit,
		log:    logger.GetProjectLogger().WithField("unit", "keyboard"),
	}
}

// WithHold changes the tap hold time.
func (k *Keyboard) WithHold(d time.Duration) *Keyboard {
	k.hold = d
	return k
}

// Run handles keys until the input ends, the user quits, or ctx is cancelled.
func (k *Keyboard) Run(ctx context.Context) error {
	keys := make(chan byte)
	go k.read(ctx, keys)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case key, ok := <-keys:
			if !ok {
				return nil
			}
			switch key {
			case '+', '=', 'k':
				if err := k.tap(ctx, k.up); err != nil {
					return err
				}
			case '-', '_', 'j':
				if err := k.tap(ctx, k.down); err != nil {
					return err
				}
			case 'q', 0x03, 0x04:
				k.log.Debug("Quit requested from keyboard")
				if k.quit != nil {
					k.quit()
				}
				return nil
			}
		}
	}
}

func (k *Keyboard) read(ctx context.Context, keys chan<- byte) {
	defer close(keys)

	r := bufio.NewReader(k.in)
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err != io.EOF {
				k.log.WithError(err).Warn("Keyboard input closed")
			}
			return
		}
		select {
		case keys <- b:
		case <-ctx.Done():
			return
		}
	}
}

// tap presses pin for the hold time and keeps it released for as long again, so two taps
// in a row are never merged into one press.
func (k *Keyboard) tap(ctx context.Context, pin gpio.OutputPin) error {
	pin.Write(k.active)
	err := k.wait(ctx)
	pin.Write(k.active.Invert())
	if err != nil {
		return err
	}
	return k.wait(ctx)
}

func (k *Keyboard) wait(ctx context.Context) error {
	t := k.clock.NewTimer(k.hold)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}
