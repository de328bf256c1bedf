package main

import (
	"github.com/robmorgan/metronome/logger"
	"gitlab.com/gomidi/midi/v2"
)

// openMIDI returns a sender for the named output port. Ports are only found when a driver
// is compiled in (see midi_rtmidi.go).
func openMIDI(port string) (func(midi.Message) error, func(), error) {
	out, err := midi.FindOutPort(port)
	if err != nil {
		logger.GetProjectLogger().Warnf("Available MIDI outputs: %v", midi.GetOutPorts())
		return nil, nil, err
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, nil, err
	}
	return send, midi.CloseDriver, nil
}
