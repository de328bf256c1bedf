package actuator

import (
	"fmt"

	"github.com/robmorgan/metronome/gpio"
)

// UniverseSize is the number of channels in one DMX512 universe.
const UniverseSize = 512

// OLAClient is the interface for communicating with OLA
type OLAClient interface {
	SendDmx(universe int, values []byte) (status bool, err error)
	Close()
}

// DMX flashes one channel of a DMX universe (e.g. a dimmer or a strobe) on every beat.
type DMX struct {
	client   OLAClient
	universe int
	channel  int
	values   []byte
}

// NewDMX drives channel (1-512) of universe through client.
func NewDMX(client OLAClient, universe, channel int) (*DMX, error) {
	if channel < 1 || channel > UniverseSize {
		return nil, fmt.Errorf("dmx channel (%d) not in range", channel)
	}
	return &DMX{
		client:   client,
		universe: universe,
		channel:  channel,
		values:   make([]byte, UniverseSize),
	}, nil
}

// Set implements Actuator.
func (d *DMX) Set(level gpio.Level) error {
	var value byte
	if level == gpio.High {
		value = 255
	}
	d.values[d.channel-1] = value

	ok, err := d.client.SendDmx(d.universe, d.values)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("ola rejected dmx frame for universe %d", d.universe)
	}
	return nil
}

// Close closes the OLA connection.
func (d *DMX) Close() {
	d.client.Close()
}
