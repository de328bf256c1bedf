//go:build audio

package main

import (
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/robmorgan/metronome/actuator"
)

func openSpeaker() (func(beep.Streamer), error) {
	sr := actuator.ClickSampleRate
	if err := speaker.Init(sr, sr.N(time.Second/100)); err != nil {
		return nil, err
	}
	return func(s beep.Streamer) { speaker.Play(s) }, nil
}
