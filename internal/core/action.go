package core

import "math/rand/v2"

// DefaultActionVariants is the number of sound variants clients ship with.
const DefaultActionVariants = 4

// Pig describes where a floating pig appears and how it drifts.
// Positions and distance are percentages of the viewport, Turn is in degrees.
type Pig struct {
	ID       int64
	X        float64
	Y        float64
	Turn     float64
	Distance float64
}

// Action is a broadcast payload generated by the server for one trigger.
type Action struct {
	UserID string
	Sound  int
	Pig    Pig
}

// ActionGenerator produces randomized action payloads.
// It is owned by the hub goroutine.
type ActionGenerator struct {
	variants int
	rng      *rand.Rand
	seq      int64
}

// NewActionGenerator builds a generator picking sounds in [0, variants).
// A nil src seeds a fresh PCG source.
func NewActionGenerator(variants int, src rand.Source) *ActionGenerator {
	if variants <= 0 {
		variants = DefaultActionVariants
	}
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &ActionGenerator{
		variants: variants,
		rng:      rand.New(src),
	}
}

// Variants returns the number of sound variants.
func (g *ActionGenerator) Variants() int {
	return g.variants
}

// Next generates a new action attributed to userID.
func (g *ActionGenerator) Next(userID string) Action {
	g.seq++
	return Action{
		UserID: userID,
		Sound:  g.rng.IntN(g.variants),
		Pig: Pig{
			ID:       g.seq,
			X:        g.between(10, 90),
			Y:        g.between(10, 90),
			Turn:     g.between(-30, 30),
			Distance: g.between(10, 25),
		},
	}
}

func (g *ActionGenerator) between(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}
