// Package actuator contains the outputs that make a beat visible or audible. The beat
// scheduler drives exactly one Actuator (usually a Group) and is its only user, so
// implementations need no locking.
package actuator

import (
	"errors"

	"github.com/robmorgan/metronome/gpio"
)

// Actuator is switched High at the start of a beat and Low at the end of the pulse.
type Actuator interface {
	Set(level gpio.Level) error
}

// Pin drives a digital output such as the LED or the buzzer.
type Pin struct {
	pin gpio.OutputPin
}

// NewPin wraps an output pin.
func NewPin(pin gpio.OutputPin) *Pin {
	return &Pin{pin: pin}
}

// Set implements Actuator.
func (p *Pin) Set(level gpio.Level) error {
	p.pin.Write(level)
	return nil
}

// Group treats several actuators as one. Every member is driven even if an earlier one
// fails.
type Group []Actuator

// Set implements Actuator.
func (g Group) Set(level gpio.Level) error {
	var errs []error
	for _, a := range g {
		if err := a.Set(level); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
