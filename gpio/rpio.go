package gpio

import (
	"errors"
	"fmt"

	commonerrors "github.com/gruntwork-io/go-commons/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

// ErrBackendUnavailable is returned when the GPIO memory of the board cannot be mapped.
var ErrBackendUnavailable = errors.New("gpio backend unavailable")

// RPi drives Raspberry Pi header pins through /dev/gpiomem. Pin numbers are BCM numbers.
type RPi struct{}

// OpenRPi maps the GPIO registers. It fails on anything that is not a Raspberry Pi or when
// the process lacks access to /dev/gpiomem.
func OpenRPi() (*RPi, error) {
	if err := rpio.Open(); err != nil {
		return nil, commonerrors.WithStackTrace(fmt.Errorf("%w: %v", ErrBackendUnavailable, err))
	}
	return &RPi{}, nil
}

// Input configures pin as an input with the internal pull-up enabled, so an idle button
// reads High and a pressed one reads Low.
func (r *RPi) Input(pin int) InputPin {
	p := rpio.Pin(pin)
	p.Input()
	p.PullUp()
	return rpioPin{pin: p}
}

// Output configures pin as an output and drives it Low.
func (r *RPi) Output(pin int) OutputPin {
	p := rpio.Pin(pin)
	p.Output()
	p.Low()
	return rpioPin{pin: p}
}

// Close unmaps the GPIO registers.
func (r *RPi) Close() error {
	return rpio.Close()
}

type rpioPin struct {
	pin rpio.Pin
}

func (p rpioPin) Read() Level {
	if p.pin.Read() == rpio.Low {
		return Low
	}
	return High
}

func (p rpioPin) Write(level Level) {
	if level == Low {
		p.pin.Write(rpio.Low)
		return
	}
	p.pin.Write(rpio.High)
}
