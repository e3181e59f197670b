package scape

import "neurorace/internal/agent"

// Frame is what a renderer receives once per tick and once at every
// generation boundary (Reset set, no agents).
type Frame struct {
	Generation int          `json:"generation"`
	Tick       int          `json:"tick"`
	Agents     []agent.View `json:"agents,omitempty"`
	// Claimed lists gates first crossed by any agent during this tick.
	Claimed []int `json:"claimed,omitempty"`
	Reset   bool  `json:"reset,omitempty"`
}

// FrameSink is the display collaborator. Implementations must not retain
// the frame's slices past the call.
type FrameSink interface {
	Frame(Frame)
}

// FrameSinkFunc adapts a plain function to FrameSink.
type FrameSinkFunc func(Frame)

func (f FrameSinkFunc) Frame(frame Frame) {
	f(frame)
}
