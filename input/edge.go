package input

import "github.com/robmorgan/metronome/gpio"

// EdgeDetector turns a polled digital input into discrete presses. A press is reported
// once, on the sample where the input goes from inactive to active; holding the input
// produces nothing further until it has been released and pressed again.
type EdgeDetector struct {
	pin     gpio.InputPin
	active  gpio.Level
	pressed bool
}

// NewEdgeDetector watches pin, treating active as the pressed level. Buttons wired to a
// pull-up are active Low.
func NewEdgeDetector(pin gpio.InputPin, active gpio.Level) *EdgeDetector {
	return &EdgeDetector{pin: pin, active: active}
}

// Sample reads the pin once and reports whether a new press started.
func (d *EdgeDetector) Sample() bool {
	pressed := d.pin.Read() == d.active
	edge := pressed && !d.pressed
	d.pressed = pressed
	return edge
}

// Pressed reports the level seen by the last Sample.
func (d *EdgeDetector) Pressed() bool {
	return d.pressed
}
