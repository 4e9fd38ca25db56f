package loop

import (
	"math"
	"sync"
)

// lowValenceBeta is used for vertices with two or fewer neighbors.
const lowValenceBeta = 1.0 / 8.0

// BetaCache memoizes the Loop vertex weight by valence. It is safe for
// concurrent use.
type BetaCache struct {
	mu    sync.RWMutex
	betas map[int]float64
}

// NewBetaCache returns an empty cache.
func NewBetaCache() *BetaCache {
	return &BetaCache{betas: make(map[int]float64)}
}

// sharedBetas backs the package-level Subdivide.
var sharedBetas = NewBetaCache()

// Beta returns the neighbor weight for a vertex of valence n.
func (c *BetaCache) Beta(n int) float64 {
	if n <= 2 {
		return lowValenceBeta
	}
	c.mu.RLock()
	b, ok := c.betas[n]
	c.mu.RUnlock()
	if ok {
		return b
	}

	b = loopBeta(n)
	c.mu.Lock()
	c.betas[n] = b
	c.mu.Unlock()
	return b
}

// Len returns the number of memoized valences.
func (c *BetaCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.betas)
}

func loopBeta(n int) float64 {
	fn := float64(n)
	k := 3.0/8.0 + 0.25*math.Cos(2*math.Pi/fn)
	return (1 / fn) * (5.0/8.0 - k*k)
}

// repositioner moves original vertices of one channel by the valence
// weighted neighbor average. Topology always comes from the position mesh.
type repositioner struct {
	mesh  *Mesh
	attr  Attribute
	betas *BetaCache
}

// vertex returns the repositioned value of the vertex in slot.
func (r *repositioner) vertex(slot int) Vertex {
	neighbors := r.mesh.Neighbors(slot)
	n := len(neighbors)
	beta := r.betas.Beta(n)

	sum := make(Vertex, r.attr.ItemSize)
	for _, s := range neighbors {
		sum.AddScaled(r.attr.At(s), 1)
	}
	out := r.attr.At(slot).Scale(1 - float64(n)*beta)
	out.AddScaled(sum, beta)
	return out
}
