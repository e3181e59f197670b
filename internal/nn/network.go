package nn

import (
	"errors"
	"fmt"
	"math/rand"

	"neurorace/internal/matrix"
)

var ErrInvalidArchitecture = errors.New("invalid network architecture")

// Network is a fixed feed-forward stack of weight layers. The input is a
// 1xN row; every product is passed through the activation element-wise.
type Network struct {
	activation string
	fn         ActivationFunc
	layers     []matrix.Matrix
}

// NewNetwork validates that adjacent layers chain and takes ownership of
// deep copies of them.
func NewNetwork(activation string, layers []matrix.Matrix) (Network, error) {
	if activation == "" {
		activation = DefaultActivation
	}
	fn, err := GetActivation(activation)
	if err != nil {
		return Network{}, err
	}
	if len(layers) == 0 {
		return Network{}, fmt.Errorf("%w: at least one layer is required", ErrInvalidArchitecture)
	}
	owned := make([]matrix.Matrix, len(layers))
	for i, layer := range layers {
		dims := layer.Dimensions()
		if dims.Rows == 0 || dims.Columns == 0 {
			return Network{}, fmt.Errorf("%w: layer %d is empty (%s)", ErrInvalidArchitecture, i, dims)
		}
		if i > 0 && layers[i-1].Dimensions().Columns != dims.Rows {
			return Network{}, fmt.Errorf("%w: layer %d is %s after %s", ErrInvalidArchitecture, i, dims, layers[i-1].Dimensions())
		}
		owned[i] = layer.Clone()
	}
	return Network{activation: activation, fn: fn, layers: owned}, nil
}

// RandomNetwork draws every weight uniformly from [-1, 1). Architecture
// lists node counts per level, e.g. [3 5 2] gives a 3x5 and a 5x2 layer.
func RandomNetwork(rng *rand.Rand, activation string, architecture []int) (Network, error) {
	if rng == nil {
		return Network{}, fmt.Errorf("random source is required")
	}
	if len(architecture) < 2 {
		return Network{}, fmt.Errorf("%w: need at least two levels, got %v", ErrInvalidArchitecture, architecture)
	}
	layers := make([]matrix.Matrix, 0, len(architecture)-1)
	for i := 0; i+1 < len(architecture); i++ {
		rows, columns := architecture[i], architecture[i+1]
		if rows <= 0 || columns <= 0 {
			return Network{}, fmt.Errorf("%w: non-positive level in %v", ErrInvalidArchitecture, architecture)
		}
		data := make([]float64, rows*columns)
		for j := range data {
			data[j] = RandomWeight(rng)
		}
		layer, err := matrix.New(rows, columns, data)
		if err != nil {
			return Network{}, err
		}
		layers = append(layers, layer)
	}
	return NewNetwork(activation, layers)
}

// RandomWeight is uniform in [-1, 1).
func RandomWeight(rng *rand.Rand) float64 {
	return rng.Float64()*2 - 1
}

func (n Network) Activation() string {
	return n.activation
}

func (n Network) Inputs() int {
	if len(n.layers) == 0 {
		return 0
	}
	return n.layers[0].Dimensions().Rows
}

func (n Network) Outputs() int {
	if len(n.layers) == 0 {
		return 0
	}
	return n.layers[len(n.layers)-1].Dimensions().Columns
}

func (n Network) LayerCount() int {
	return len(n.layers)
}

// Layer returns a copy of layer i.
func (n Network) Layer(i int) matrix.Matrix {
	return n.layers[i].Clone()
}

func (n Network) WeightCount() int {
	total := 0
	for _, layer := range n.layers {
		total += layer.Len()
	}
	return total
}

// Clone deep-copies every layer.
func (n Network) Clone() Network {
	layers := make([]matrix.Matrix, len(n.layers))
	for i, layer := range n.layers {
		layers[i] = layer.Clone()
	}
	return Network{activation: n.activation, fn: n.fn, layers: layers}
}

// UpdateWeights rewrites every weight in place, layer by layer in row-major
// order.
func (n Network) UpdateWeights(fn func(layer, idx int, weight float64) float64) {
	for i, layer := range n.layers {
		layer.Update(func(idx int, weight float64) float64 {
			return fn(i, idx, weight)
		})
	}
}

func (n Network) Forward(inputs []float64) ([]float64, error) {
	out := matrix.Row(inputs...)
	for i, layer := range n.layers {
		next, err := matrix.Multiply(out, layer)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		next.Update(func(_ int, v float64) float64 {
			return n.fn(v)
		})
		out = next
	}
	return out.Values(), nil
}
