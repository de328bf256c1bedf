package actuator

import (
	"github.com/robmorgan/metronome/gpio"
	"gitlab.com/gomidi/midi/v2"
)

// MIDI sounds each beat as a note on an external instrument or drum machine.
type MIDI struct {
	send     func(midi.Message) error
	channel  uint8
	key      uint8
	velocity uint8
}

// NewMIDI plays key on channel (0-15) through send, e.g. the func returned by midi.SendTo.
func NewMIDI(send func(midi.Message) error, channel, key, velocity uint8) *MIDI {
	return &MIDI{send: send, channel: channel, key: key, velocity: velocity}
}

// Set implements Actuator.
func (m *MIDI) Set(level gpio.Level) error {
	if level == gpio.High {
		return m.send(midi.NoteOn(m.channel, m.key, m.velocity))
	}
	return m.send(midi.NoteOff(m.channel, m.key))
}
