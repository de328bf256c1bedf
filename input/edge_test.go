package input

import (
	"testing"

	"github.com/robmorgan/metronome/gpio"
	"github.com/stretchr/testify/assert"
)

func TestEdgeDetectorActiveLow(t *testing.T) {
	t.Parallel()

	pin := gpio.NewSimPin(gpio.High)
	d := NewEdgeDetector(pin, gpio.Low)

	assert.False(t, d.Sample())
	assert.False(t, d.Pressed())

	pin.Write(gpio.Low)
	assert.True(t, d.Sample())
	assert.True(t, d.Pressed())

	// holding the button across many polls is still one press
	for i := 0; i < 100; i++ {
		assert.False(t, d.Sample())
	}

	pin.Write(gpio.High)
	assert.False(t, d.Sample())
	pin.Write(gpio.Low)
	assert.True(t, d.Sample())
}

func TestEdgeDetectorActiveHigh(t *testing.T) {
	t.Parallel()

	pin := gpio.NewSimPin(gpio.Low)
	d := NewEdgeDetector(pin, gpio.High)

	assert.False(t, d.Sample())
	pin.Write(gpio.High)
	assert.True(t, d.Sample())
	assert.False(t, d.Sample())
}

func TestEdgeDetectorPressedAtStartup(t *testing.T) {
	t.Parallel()

	// a button already held when sampling starts counts as one press
	d := NewEdgeDetector(gpio.NewSimPin(gpio.Low), gpio.Low)
	assert.True(t, d.Sample())
	assert.False(t, d.Sample())
}
