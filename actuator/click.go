package actuator

import (
	"math"
	"time"

	"github.com/faiface/beep"
	"github.com/robmorgan/metronome/gpio"
)

// ClickSampleRate is the sample rate of the generated click.
const ClickSampleRate = beep.SampleRate(44100)

// Click plays a short square-wave tone at the start of every pulse.
type Click struct {
	play   func(beep.Streamer)
	freq   float64
	length time.Duration
	volume float64
	sr     beep.SampleRate
}

// NewClick plays tones of freq Hz lasting length through play, typically speaker.Play.
func NewClick(play func(beep.Streamer), freq float64, length time.Duration) *Click {
	return &Click{
		play:   play,
		freq:   freq,
		length: length,
		volume: 0.5,
		sr:     ClickSampleRate,
	}
}

// Set implements Actuator. The tone ends on its own, so Low is a no-op.
func (c *Click) Set(level gpio.Level) error {
	if level == gpio.High {
		c.play(c.Tone())
	}
	return nil
}

// Tone returns a fresh streamer for one click.
func (c *Click) Tone() beep.Streamer {
	period := float64(c.sr) / c.freq
	pos := 0
	tone := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			v := c.volume
			if math.Mod(float64(pos), period) >= period/2 {
				v = -v
			}
			samples[i][0], samples[i][1] = v, v
			pos++
		}
		return len(samples), true
	})
	return beep.Take(c.sr.N(c.length), tone)
}
