// Package kasid generates the internal correlation id stored on every
// tracking record: "K-" followed by nine digits split 3-6.
package kasid

import (
	"fmt"
	"math/rand"
	"regexp"
	"sync"
	"time"
)

type Rand interface {
	Intn(n int) int
}

var pattern = regexp.MustCompile(`^K-\d{3}-\d{6}$`)

type Generator struct {
	mu sync.Mutex
	r  Rand
}

// New returns a generator over r; nil r means a time-seeded source.
func New(r Rand) *Generator {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{r: r}
}

func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("K-%03d-%06d", g.r.Intn(1000), g.r.Intn(1000000))
}

// Valid reports whether id has the K-DDD-DDDDDD shape.
func Valid(id string) bool {
	return pattern.MatchString(id)
}
