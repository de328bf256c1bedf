package actuator

import (
	"github.com/hypebeast/go-osc/osc"
	"github.com/robmorgan/metronome/gpio"
)

// DefaultOSCAddress is the OSC address beats are sent to.
const DefaultOSCAddress = "/metronome/beat"

// OSCClient is the part of *osc.Client the actuator needs.
type OSCClient interface {
	Send(packet osc.Packet) error
}

// OSC broadcasts pulse edges as OSC messages with a single int32 argument: 1 when the
// pulse starts, 0 when it ends.
type OSC struct {
	client  OSCClient
	address string
}

// NewOSC sends to address through client.
func NewOSC(client OSCClient, address string) *OSC {
	if address == "" {
		address = DefaultOSCAddress
	}
	return &OSC{client: client, address: address}
}

// Set implements Actuator.
func (o *OSC) Set(level gpio.Level) error {
	msg := osc.NewMessage(o.address)
	msg.Append(int32(level))
	return o.client.Send(msg)
}
