//go:build !audio

package main

import (
	"errors"

	"github.com/faiface/beep"
)

func openSpeaker() (func(beep.Streamer), error) {
	return nil, errors.New("audio output needs a build with -tags audio")
}
