// Package generator draws targets and candidate sets from a palette.
package generator

import (
	"math/rand"
	"time"

	"github.com/verte-zerg/pireactor/internal/model"
)

// Generator produces randomized rounds.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with seed, or with the current time when seed is 0.
func New(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Target picks a target attribute uniformly from palette.
func (g *Generator) Target(palette []string) string {
	return palette[g.rnd.Intn(len(palette))]
}

// Candidates builds count candidates with pairwise distinct attributes drawn
// without replacement from palette. Exactly one carries target and is flagged.
// The caller guarantees count <= len(palette) and that target is in palette.
func (g *Generator) Candidates(palette []string, count int, target string) []model.Candidate {
	others := make([]string, 0, len(palette))
	for _, v := range palette {
		if v != target {
			others = append(others, v)
		}
	}
	g.rnd.Shuffle(len(others), func(i, j int) {
		others[i], others[j] = others[j], others[i]
	})

	targetPos := g.rnd.Intn(count)
	out := make([]model.Candidate, count)
	next := 0
	for i := range out {
		out[i].ID = i
		if i == targetPos {
			out[i].Attribute = target
			out[i].IsTarget = true
			continue
		}
		out[i].Attribute = others[next]
		next++
	}
	return out
}
