package track

import "neurorace/internal/geom"

// Default is a rectangular loop driven clockwise on screen (y grows down).
// The corridor is 120 units wide along the top and bottom straights and
// 150 units wide on the sides.
func Default() Layout {
	return Layout{
		Name: "oval",
		Chains: []Chain{
			{{X: 100, Y: 100}, {X: 900, Y: 100}, {X: 900, Y: 500}, {X: 100, Y: 500}, {X: 100, Y: 100}},
			{{X: 250, Y: 220}, {X: 750, Y: 220}, {X: 750, Y: 380}, {X: 250, Y: 380}, {X: 250, Y: 220}},
		},
		Gates: []Gate{
			{Index: 0, Segment: Segment{Start: geom.Vec2{X: 400, Y: 100}, End: geom.Vec2{X: 400, Y: 220}}},
			{Index: 1, Segment: Segment{Start: geom.Vec2{X: 600, Y: 100}, End: geom.Vec2{X: 600, Y: 220}}},
			{Index: 2, Segment: Segment{Start: geom.Vec2{X: 750, Y: 300}, End: geom.Vec2{X: 900, Y: 300}}},
			{Index: 3, Segment: Segment{Start: geom.Vec2{X: 600, Y: 380}, End: geom.Vec2{X: 600, Y: 500}}},
			{Index: 4, Segment: Segment{Start: geom.Vec2{X: 400, Y: 380}, End: geom.Vec2{X: 400, Y: 500}}},
			{Index: 5, Segment: Segment{Start: geom.Vec2{X: 100, Y: 300}, End: geom.Vec2{X: 250, Y: 300}}},
		},
		Start:          geom.Pose{Position: geom.Vec2{X: 200, Y: 160}, Heading: 0},
		PopulationSize: 100,
	}
}
