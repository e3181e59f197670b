package agent

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"neurorace/internal/geom"
	"neurorace/internal/matrix"
	"neurorace/internal/nn"
	"neurorace/internal/track"
)

func constantNetwork(t *testing.T, weights []float64) nn.Network {
	t.Helper()
	layer, err := matrix.New(3, 2, weights)
	if err != nil {
		t.Fatalf("layer: %v", err)
	}
	net, err := nn.NewNetwork("sigmoid", []matrix.Matrix{layer})
	if err != nil {
		t.Fatalf("network: %v", err)
	}
	return net
}

func defaultWalls(t *testing.T) []track.Segment {
	t.Helper()
	tr, err := track.New(track.Default())
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	return tr.Walls()
}

func newTestAgent(t *testing.T, pose geom.Pose) Agent {
	t.Helper()
	a, err := New(constantNetwork(t, make([]float64, 6)), pose)
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	return a
}

func TestNewRejectsWrongShape(t *testing.T) {
	layer, err := matrix.New(2, 2, make([]float64, 4))
	if err != nil {
		t.Fatalf("layer: %v", err)
	}
	net, err := nn.NewNetwork("sigmoid", []matrix.Matrix{layer})
	if err != nil {
		t.Fatalf("network: %v", err)
	}
	if _, err := New(net, geom.Pose{}); !errors.Is(err, nn.ErrInvalidArchitecture) {
		t.Fatalf("expected ErrInvalidArchitecture, got %v", err)
	}
}

func TestNewInitialState(t *testing.T) {
	a := newTestAgent(t, geom.Pose{})
	if a.Fitness() != InitialFitness || a.Failed() {
		t.Fatalf("unexpected initial state: fitness=%f failed=%t", a.Fitness(), a.Failed())
	}
	state := a.Checkpoints()
	if state.Last != NoCheckpoint || state.Passing {
		t.Fatalf("unexpected checkpoint state: %+v", state)
	}
}

func TestSenseReadsClosestWalls(t *testing.T) {
	a := newTestAgent(t, geom.Pose{Position: geom.Vec2{X: 200, Y: 160}})
	got := a.Sense(defaultWalls(t))
	want := [SensorCount]float64{0.52, 1, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("unexpected readings: got=%v want=%v", got, want)
		}
	}
}

func TestSenseWithoutWallsDefaultsToOne(t *testing.T) {
	a := newTestAgent(t, geom.Pose{Position: geom.Vec2{X: 10, Y: 10}, Heading: 33})
	got := a.Sense(nil)
	for i, v := range got {
		if v != 1 {
			t.Fatalf("reading %d: got=%f want=1", i, v)
		}
	}
}

func TestSenseIgnoresWallsBehindRay(t *testing.T) {
	walls := []track.Segment{{Start: geom.Vec2{X: -50, Y: -100}, End: geom.Vec2{X: -50, Y: 100}}}
	a := newTestAgent(t, geom.Pose{})
	got := a.Sense(walls)
	if got[2] != 1 {
		t.Fatalf("expected forward ray to ignore wall behind, got %f", got[2])
	}
}

func TestUpdateTurnsAndMoves(t *testing.T) {
	tests := []struct {
		name        string
		weights     []float64
		wantHeading float64
		wantLeft    bool
	}{
		{name: "tie-turns-left", weights: make([]float64, 6), wantHeading: 358, wantLeft: true},
		{name: "right", weights: []float64{0, 1, 0, 1, 0, 1}, wantHeading: 2, wantLeft: false},
		{name: "left", weights: []float64{1, 0, 1, 0, 1, 0}, wantHeading: 358, wantLeft: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, err := New(constantNetwork(t, tc.weights), geom.Pose{Position: geom.Vec2{X: 50, Y: 50}})
			if err != nil {
				t.Fatalf("new agent: %v", err)
			}
			if err := a.Update(nil); err != nil {
				t.Fatalf("update: %v", err)
			}
			pose := a.Pose()
			if math.Abs(pose.Heading-tc.wantHeading) > 1e-9 {
				t.Fatalf("unexpected heading: got=%f want=%f", pose.Heading, tc.wantHeading)
			}
			if a.TurnedLeft() != tc.wantLeft {
				t.Fatalf("unexpected turn flag: got=%t", a.TurnedLeft())
			}
			rad := geom.Radians(tc.wantHeading)
			wantX := 50 + 2*math.Cos(rad)
			wantY := 50 + 2*math.Sin(rad)
			if math.Abs(pose.Position.X-wantX) > 1e-9 || math.Abs(pose.Position.Y-wantY) > 1e-9 {
				t.Fatalf("unexpected position: got=%+v want=(%f,%f)", pose.Position, wantX, wantY)
			}
			if a.Fitness() != InitialFitness+SurvivalBonus {
				t.Fatalf("unexpected fitness: %f", a.Fitness())
			}
		})
	}
}

func TestUpdateSkipsFailedAgent(t *testing.T) {
	a := newTestAgent(t, geom.Pose{Position: geom.Vec2{X: 50, Y: 50}})
	a.Fail()
	if err := a.Update(nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	if a.Fitness() != InitialFitness || a.Pose().Position.X != 50 {
		t.Fatalf("failed agent moved or scored: fitness=%f pose=%+v", a.Fitness(), a.Pose())
	}
}

func TestCheckFailDetectsWallAndSticks(t *testing.T) {
	walls := defaultWalls(t)
	a := newTestAgent(t, geom.Pose{Position: geom.Vec2{X: 200, Y: 160}})
	if a.CheckFail(walls) {
		t.Fatal("agent at start should not collide")
	}

	a.pose = geom.Pose{Position: geom.Vec2{X: 890, Y: 300}}
	if !a.CheckFail(walls) {
		t.Fatal("expected nose past right wall to fail")
	}

	a.pose = geom.Pose{Position: geom.Vec2{X: 200, Y: 160}}
	if !a.CheckFail(walls) {
		t.Fatal("failure must be sticky")
	}
}

func TestCheckFailSkipsParallelWall(t *testing.T) {
	// Parallel to the nose/rear-left edge (sentinel) and missed by the other edge.
	a := newTestAgent(t, geom.Pose{})
	nose := a.nose()
	corner := a.rearLeft()
	offset := geom.Vec2{X: 0, Y: 40}
	walls := []track.Segment{{Start: nose.Add(offset), End: corner.Add(offset)}}
	if a.CheckFail(walls) {
		t.Fatal("parallel wall should not fail the agent")
	}
}

func TestUpdateFitnessCheckpointStateMachine(t *testing.T) {
	gateStart := geom.Vec2{X: 108, Y: 90}
	gateEnd := geom.Vec2{X: 108, Y: 110}
	inside := geom.Pose{Position: geom.Vec2{X: 100, Y: 100}}
	outside := geom.Pose{Position: geom.Vec2{X: 300, Y: 100}}

	a := newTestAgent(t, inside)

	if !a.UpdateFitness(gateStart, gateEnd, 0) {
		t.Fatal("expected first crossing to report true")
	}
	if a.Fitness() != InitialFitness+CheckpointBonus {
		t.Fatalf("unexpected fitness after first crossing: %f", a.Fitness())
	}
	if state := a.Checkpoints(); !state.Passing || state.Current != 0 || state.Last != NoCheckpoint {
		t.Fatalf("unexpected state after crossing: %+v", state)
	}

	if !a.UpdateFitness(gateStart, gateEnd, 0) {
		t.Fatal("expected band crossing to keep reporting true")
	}
	if a.Fitness() != InitialFitness+CheckpointBonus {
		t.Fatalf("bonus awarded twice: %f", a.Fitness())
	}

	a.pose = outside
	if a.UpdateFitness(gateStart, gateEnd, 0) {
		t.Fatal("exit must report false")
	}
	if state := a.Checkpoints(); state.Passing || state.Last != 0 {
		t.Fatalf("unexpected state after exit: %+v", state)
	}
	if a.Failed() {
		t.Fatal("exit must not fail")
	}

	a.pose = inside
	if a.UpdateFitness(gateStart, gateEnd, 0) {
		t.Fatal("regression must report false")
	}
	if !a.Failed() {
		t.Fatal("re-crossing the last gate must fail the agent")
	}
}

func TestUpdateFitnessIgnoresOtherGatesWhilePassing(t *testing.T) {
	a := newTestAgent(t, geom.Pose{Position: geom.Vec2{X: 100, Y: 100}})
	if !a.UpdateFitness(geom.Vec2{X: 108, Y: 90}, geom.Vec2{X: 108, Y: 110}, 2) {
		t.Fatal("expected crossing of gate 2")
	}
	// A different, distant gate does not end the band of gate 2.
	if a.UpdateFitness(geom.Vec2{X: 500, Y: 0}, geom.Vec2{X: 500, Y: 10}, 3) {
		t.Fatal("distant gate reported a crossing")
	}
	if state := a.Checkpoints(); !state.Passing || state.Current != 2 {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestUpdateFitnessParallelGateIsNoop(t *testing.T) {
	a := newTestAgent(t, geom.Pose{Position: geom.Vec2{X: 100, Y: 100}})
	if a.UpdateFitness(geom.Vec2{X: 0, Y: 105}, geom.Vec2{X: 200, Y: 105}, 0) {
		t.Fatal("parallel gate reported a crossing")
	}
	if a.Fitness() != InitialFitness || a.Checkpoints().Passing {
		t.Fatal("parallel gate changed state")
	}
}

func TestNetworkIsCopied(t *testing.T) {
	a := newTestAgent(t, geom.Pose{})
	net := a.Network()
	net.UpdateWeights(func(_, _ int, _ float64) float64 { return 9 })
	for _, w := range a.Network().Layer(0).Values() {
		if w != 0 {
			t.Fatal("agent weights changed through returned network")
		}
	}
}

func TestJitterFitnessBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 1000; i++ {
		a := newTestAgent(t, geom.Pose{})
		a.fitness = 100
		a.JitterFitness(rng)
		if a.Fitness() < 90 || a.Fitness() >= 110 {
			t.Fatalf("jittered fitness out of range: %f", a.Fitness())
		}
	}
}

func mutationSubject(t *testing.T, seed int64) (Agent, []float64) {
	t.Helper()
	net, err := nn.RandomNetwork(rand.New(rand.NewSource(seed)), "", []int{100, 100})
	if err != nil {
		t.Fatalf("random network: %v", err)
	}
	a := Agent{network: net}
	return a, net.Layer(0).Values()
}

func TestSoftMutateRateConverges(t *testing.T) {
	a, before := mutationSubject(t, 1)
	a.SoftMutate(rand.New(rand.NewSource(2)), 5)
	after := a.network.Layer(0).Values()

	changed := 0
	for i := range before {
		if before[i] != after[i] {
			changed++
			if delta := math.Abs(after[i] - before[i]); delta > SoftMutationDelta {
				t.Fatalf("soft delta too large: %f", delta)
			}
		}
	}
	rate := float64(changed) / float64(len(before))
	if math.Abs(rate-0.05) > 0.02 {
		t.Fatalf("soft mutation rate off: got=%f want≈0.05", rate)
	}
}

func TestHardMutateRateConverges(t *testing.T) {
	a, before := mutationSubject(t, 3)
	a.HardMutate(rand.New(rand.NewSource(4)), 10)
	after := a.network.Layer(0).Values()

	changed := 0
	for i := range before {
		if before[i] != after[i] {
			changed++
			if after[i] < -1 || after[i] >= 1 {
				t.Fatalf("hard mutation out of range: %f", after[i])
			}
		}
	}
	rate := float64(changed) / float64(len(before))
	if math.Abs(rate-0.10) > 0.02 {
		t.Fatalf("hard mutation rate off: got=%f want≈0.10", rate)
	}
}

func TestMutationRateZeroAndHundred(t *testing.T) {
	a, before := mutationSubject(t, 5)
	a.HardMutate(rand.New(rand.NewSource(6)), 0)
	after := a.network.Layer(0).Values()
	for i := range before {
		if before[i] != after[i] {
			t.Fatal("rate 0 mutated a weight")
		}
	}
	a.SoftMutate(rand.New(rand.NewSource(7)), 100)
	after = a.network.Layer(0).Values()
	same := 0
	for i := range before {
		if before[i] == after[i] {
			same++
		}
	}
	if same > 5 {
		t.Fatalf("rate 100 left %d weights untouched", same)
	}
}
