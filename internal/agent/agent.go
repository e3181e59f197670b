package agent

import (
	"fmt"

	"neurorace/internal/geom"
	"neurorace/internal/nn"
	"neurorace/internal/track"
)

const (
	// NoCheckpoint marks that no gate has been completed yet.
	NoCheckpoint = -1

	SensorCount  = 3
	OutputCount  = 2
	RotationStep = 2.0
	Speed        = 2.0

	SurvivalBonus   = 1.0
	CheckpointBonus = 100.0
	InitialFitness  = 1.0

	// SensorScale converts the ray parameter into a reading; rays are unit
	// length, so readings saturate at 1.0 for walls 100 units away.
	SensorScale = 100.0
)

// Hull offsets in the agent frame: the pose position sits at the origin,
// the nose points along +X.
const (
	noseX = 16.0
	rearX = -8.0
	halfW = 8.0
)

// Agent is one vehicle driven by an exclusively owned network.
type Agent struct {
	network nn.Network
	pose    geom.Pose

	fitness    float64
	failed     bool
	turnedLeft bool

	lastCheckpoint    int
	currentCheckpoint int
	passingCheckpoint bool
}

// View is the per-tick state a renderer needs.
type View struct {
	Position   geom.Vec2 `json:"position"`
	Heading    float64   `json:"heading"`
	TurnedLeft bool      `json:"turned_left"`
	Failed     bool      `json:"failed"`
}

// CheckpointState exposes the gate-progress state machine.
type CheckpointState struct {
	Last    int
	Current int
	Passing bool
}

// New takes a deep copy of network, which must map 3 sensor readings to 2
// outputs.
func New(network nn.Network, start geom.Pose) (Agent, error) {
	if network.Inputs() != SensorCount {
		return Agent{}, fmt.Errorf("%w: network takes %d inputs, want %d", nn.ErrInvalidArchitecture, network.Inputs(), SensorCount)
	}
	if network.Outputs() != OutputCount {
		return Agent{}, fmt.Errorf("%w: network yields %d outputs, want %d", nn.ErrInvalidArchitecture, network.Outputs(), OutputCount)
	}
	return Agent{
		network:           network.Clone(),
		pose:              start,
		fitness:           InitialFitness,
		lastCheckpoint:    NoCheckpoint,
		currentCheckpoint: 0,
	}, nil
}

// Network returns a deep copy of the agent's weights.
func (a *Agent) Network() nn.Network {
	return a.network.Clone()
}

func (a *Agent) Pose() geom.Pose {
	return a.pose
}

func (a *Agent) Fitness() float64 {
	return a.fitness
}

func (a *Agent) Failed() bool {
	return a.failed
}

// Fail marks the agent failed for the rest of the generation.
func (a *Agent) Fail() {
	a.failed = true
}

func (a *Agent) TurnedLeft() bool {
	return a.turnedLeft
}

func (a *Agent) Checkpoints() CheckpointState {
	return CheckpointState{
		Last:    a.lastCheckpoint,
		Current: a.currentCheckpoint,
		Passing: a.passingCheckpoint,
	}
}

func (a *Agent) View() View {
	return View{
		Position:   a.pose.Position,
		Heading:    a.pose.Heading,
		TurnedLeft: a.turnedLeft,
		Failed:     a.failed,
	}
}

func (a *Agent) nose() geom.Vec2 {
	return a.pose.Local(noseX, 0)
}

func (a *Agent) rearLeft() geom.Vec2 {
	return a.pose.Local(rearX, -halfW)
}

func (a *Agent) rearRight() geom.Vec2 {
	return a.pose.Local(rearX, halfW)
}

// Sense casts the three rays and returns the closest wall reading for each.
// Ray 0 leaves the rear-left corner to the left, ray 1 the rear-right corner
// to the right, ray 2 the nose straight ahead.
func (a *Agent) Sense(walls []track.Segment) [SensorCount]float64 {
	forward := a.pose.Direction()
	left := geom.Vec2{X: forward.Y, Y: -forward.X}
	right := geom.Vec2{X: -forward.Y, Y: forward.X}
	rays := [SensorCount]track.Segment{
		{Start: a.rearLeft(), End: a.rearLeft().Add(left)},
		{Start: a.rearRight(), End: a.rearRight().Add(right)},
		{Start: a.nose(), End: a.nose().Add(forward)},
	}

	readings := [SensorCount]float64{1, 1, 1}
	for i, ray := range rays {
		for _, wall := range walls {
			lambda, mu := geom.Intersect(wall.Start, wall.End, ray.Start, ray.End)
			if geom.IsSentinel(lambda, mu) {
				continue
			}
			if 0 < lambda && lambda < 1 && mu > 0 {
				if distance := mu / SensorScale; distance < readings[i] {
					readings[i] = distance
				}
			}
		}
	}
	return readings
}

// Update runs one tick: survival bonus, sensing, inference, steering and
// motion. It is a no-op for failed agents.
func (a *Agent) Update(walls []track.Segment) error {
	if a.failed {
		return nil
	}
	a.fitness += SurvivalBonus

	readings := a.Sense(walls)
	out, err := a.network.Forward(readings[:])
	if err != nil {
		return fmt.Errorf("agent forward: %w", err)
	}
	if len(out) != OutputCount {
		return fmt.Errorf("%w: network produced %d outputs, want %d", nn.ErrInvalidArchitecture, len(out), OutputCount)
	}

	a.turnedLeft = out[0] >= out[1]
	if a.turnedLeft {
		a.pose.Heading = geom.NormalizeDegrees(a.pose.Heading - RotationStep)
	} else {
		a.pose.Heading = geom.NormalizeDegrees(a.pose.Heading + RotationStep)
	}
	a.pose.Position = a.pose.Position.Add(a.pose.Direction().Scale(Speed))
	return nil
}

// CheckFail tests the two front edges of the hull against every wall.
// Failure is sticky.
func (a *Agent) CheckFail(walls []track.Segment) bool {
	if a.failed {
		return true
	}
	nose := a.nose()
	for _, corner := range [2]geom.Vec2{a.rearLeft(), a.rearRight()} {
		for _, wall := range walls {
			lambda, mu := geom.Intersect(wall.Start, wall.End, nose, corner)
			if geom.IsSentinel(lambda, mu) {
				continue
			}
			if 0 <= lambda && lambda <= 1 && 0 <= mu && mu <= 1 {
				a.failed = true
				return true
			}
		}
	}
	return false
}

// UpdateFitness advances the gate state machine for one gate and reports
// whether the agent is inside that gate's band this tick. Re-entering the
// last completed gate counts as driving backwards and fails the agent.
func (a *Agent) UpdateFitness(gateStart, gateEnd geom.Vec2, index int) bool {
	bodyStart := a.pose.Position
	bodyEnd := a.nose()

	lambda, mu := geom.Intersect(bodyStart, bodyEnd, gateStart, gateEnd)
	if geom.IsSentinel(lambda, mu) {
		return false
	}
	if 0 < lambda && lambda < 1 && 0 < mu && mu < 1 {
		if index == a.lastCheckpoint {
			a.failed = true
			return false
		}
		if !a.passingCheckpoint {
			a.fitness += CheckpointBonus
		}
		a.passingCheckpoint = true
		a.currentCheckpoint = index
		return true
	}
	if a.passingCheckpoint && index == a.currentCheckpoint {
		a.lastCheckpoint = a.currentCheckpoint
		a.passingCheckpoint = false
	}
	return false
}
