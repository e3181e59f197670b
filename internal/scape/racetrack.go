package scape

import (
	"context"
	"fmt"

	"neurorace/internal/agent"
	"neurorace/internal/track"
)

// Racetrack steps a cohort of agents over a track and tracks which gates
// have been claimed during the current generation.
type Racetrack struct {
	track   *track.Track
	sink    FrameSink
	claimed []bool
	tick    int
}

func NewRacetrack(tr *track.Track, sink FrameSink) (*Racetrack, error) {
	if tr == nil {
		return nil, fmt.Errorf("track is required")
	}
	return &Racetrack{
		track:   tr,
		sink:    sink,
		claimed: make([]bool, len(tr.Gates())),
	}, nil
}

func (r *Racetrack) Name() string {
	return "racetrack:" + r.track.Name()
}

func (r *Racetrack) Track() *track.Track {
	return r.track
}

// Tick is the number of steps run since the last reset.
func (r *Racetrack) Tick() int {
	return r.tick
}

func (r *Racetrack) Claimed() []bool {
	return append([]bool(nil), r.claimed...)
}

// Step advances every live agent by one tick: move, then score each gate in
// order, then test for collisions. It returns how many agents are still
// alive afterwards.
func (r *Racetrack) Step(ctx context.Context, agents []agent.Agent, generation int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	walls := r.track.Walls()
	gates := r.track.Gates()

	var frame *Frame
	if r.sink != nil {
		frame = &Frame{Generation: generation, Tick: r.tick}
	}

	alive := 0
	for i := range agents {
		a := &agents[i]
		if a.Failed() {
			continue
		}
		if err := a.Update(walls); err != nil {
			return 0, fmt.Errorf("agent %d: %w", i, err)
		}
		if frame != nil {
			frame.Agents = append(frame.Agents, a.View())
		}
		for _, gate := range gates {
			if a.UpdateFitness(gate.Start, gate.End, gate.Index) && !r.claimed[gate.Index] {
				r.claimed[gate.Index] = true
				if frame != nil {
					frame.Claimed = append(frame.Claimed, gate.Index)
				}
			}
		}
		if !a.CheckFail(walls) {
			alive++
		}
	}
	r.tick++

	if frame != nil {
		r.sink.Frame(*frame)
	}
	return alive, nil
}

// Reset clears gate claims for a new generation and notifies the sink.
func (r *Racetrack) Reset(generation int) {
	for i := range r.claimed {
		r.claimed[i] = false
	}
	r.tick = 0
	if r.sink != nil {
		r.sink.Frame(Frame{Generation: generation, Reset: true})
	}
}
