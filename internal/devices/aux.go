package devices

import "math/rand"

// AuxSource is anything that can produce one 8-byte auxiliary scalar
// sample on demand: the simulated AuxChannel below, or a real-hardware
// source like PSUAuxChannel.
type AuxSource interface {
	Read() [8]byte
}

// AuxChannel is the stub/simulated 8-byte auxiliary scalar channel of
// spec.md §4.3, grounded on original_source/src/blankSensor.py's
// placeholder reading pattern.
type AuxChannel struct {
	Name string
	rnd  *rand.Rand
}

// NewAuxChannel builds a named aux channel, seeded from its name so
// distinct channels diverge deterministically.
func NewAuxChannel(name string) *AuxChannel {
	var seed int64
	for _, c := range name {
		seed = seed*31 + int64(c)
	}
	return &AuxChannel{Name: name, rnd: rand.New(rand.NewSource(seed + 1))}
}

// Read produces one 8-byte scalar value.
func (a *AuxChannel) Read() [8]byte {
	var v [8]byte
	a.rnd.Read(v[:])
	return v
}
