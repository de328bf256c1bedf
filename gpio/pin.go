package gpio

import "sync/atomic"

// Level is the logic level of a digital pin.
type Level uint8

const (
	Low  Level = 0
	High Level = 1
)

// Invert returns the opposite level.
func (l Level) Invert() Level {
	if l == Low {
		return High
	}
	return Low
}

func (l Level) String() string {
	if l == Low {
		return "low"
	}
	return "high"
}

// InputPin is a digital input.
type InputPin interface {
	Read() Level
}

// OutputPin is a digital output. Writes are fire-and-forget.
type OutputPin interface {
	Write(level Level)
}

// SimPin is an in-memory pin usable as both input and output. It backs the simulator
// backend and the tests.
type SimPin struct {
	level  atomic.Uint32
	writes atomic.Uint64
}

// NewSimPin returns a pin resting at level. Active-low buttons rest High.
func NewSimPin(level Level) *SimPin {
	p := &SimPin{}
	p.level.Store(uint32(level))
	return p
}

func (p *SimPin) Read() Level {
	return Level(p.level.Load())
}

func (p *SimPin) Write(level Level) {
	p.level.Store(uint32(level))
	p.writes.Add(1)
}

// Writes reports how many times the pin has been written.
func (p *SimPin) Writes() uint64 {
	return p.writes.Load()
}
