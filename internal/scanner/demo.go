package scanner

import (
	"math/rand"
	"sync"
)

// characteristicLength matches the sensor's characteristic buffer so demo and
// hardware samples are structurally interchangeable.
const characteristicLength = 64

// demoGenerator produces synthetic but structurally valid samples when no
// physical sensor is present. Seeded so tests get reproducible captures.
type demoGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newDemoGenerator(seed int64) *demoGenerator {
	return &demoGenerator{rng: rand.New(rand.NewSource(seed))}
}

// characteristics returns one synthetic vector. Roughly one entry in eight is
// zeroed so quality scores vary across captures instead of pinning at 100.
func (g *demoGenerator) characteristics() []int32 {
	g.mu.Lock()
	defer g.mu.Unlock()

	chars := make([]int32, characteristicLength)
	for i := range chars {
		if g.rng.Intn(8) == 0 {
			continue
		}
		chars[i] = int32(g.rng.Intn(255) + 1)
	}
	return chars
}
