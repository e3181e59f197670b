package evo

import (
	"fmt"
	"math/rand"
)

// Couple holds indices into the ranked parent pool.
type Couple [2]int

// Selector pairs the parent pool into breeding couples.
type Selector interface {
	Name() string
	Couples(rng *rand.Rand, poolSize int) ([]Couple, error)
}

// ShuffledCouples shuffles the pool once and pairs consecutive members.
type ShuffledCouples struct{}

func (ShuffledCouples) Name() string {
	return "shuffled"
}

func (ShuffledCouples) Couples(rng *rand.Rand, poolSize int) ([]Couple, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if err := checkPoolSize(poolSize); err != nil {
		return nil, err
	}
	order := make([]int, poolSize)
	for i := range order {
		order[i] = i
	}
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return pair(order), nil
}

// RankedCouples pairs neighbours by rank: best with second best and so on.
// It draws nothing from the random source.
type RankedCouples struct{}

func (RankedCouples) Name() string {
	return "ranked"
}

func (RankedCouples) Couples(_ *rand.Rand, poolSize int) ([]Couple, error) {
	if err := checkPoolSize(poolSize); err != nil {
		return nil, err
	}
	order := make([]int, poolSize)
	for i := range order {
		order[i] = i
	}
	return pair(order), nil
}

func SelectorByName(name string) (Selector, error) {
	switch name {
	case "", "shuffled":
		return ShuffledCouples{}, nil
	case "ranked":
		return RankedCouples{}, nil
	default:
		return nil, fmt.Errorf("unknown selector: %s", name)
	}
}

func checkPoolSize(poolSize int) error {
	if poolSize <= 0 || poolSize%2 != 0 {
		return fmt.Errorf("parent pool size must be a positive even number, got %d", poolSize)
	}
	return nil
}

func pair(order []int) []Couple {
	couples := make([]Couple, 0, len(order)/2)
	for i := 0; i+1 < len(order); i += 2 {
		couples = append(couples, Couple{order[i], order[i+1]})
	}
	return couples
}
