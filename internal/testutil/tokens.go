package testutil

import (
	"fmt"
	"sync"
	"time"

	"databox/internal/databox"
)

// StubTokenGenerator returns scripted tokens first, then "<type>-token-N".
type StubTokenGenerator struct {
	mu      sync.Mutex
	script  []string
	counter int
	err     error
}

var _ databox.TokenGenerator = (*StubTokenGenerator)(nil)

func NewStubTokenGenerator(script ...string) *StubTokenGenerator {
	return &StubTokenGenerator{script: script}
}

// FailWith makes every later Generate call return err.
func (g *StubTokenGenerator) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *StubTokenGenerator) Generate(p *databox.Project, keyType databox.KeyType, issuedAt time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	if len(g.script) > 0 {
		token := g.script[0]
		g.script = g.script[1:]
		return token, nil
	}
	g.counter++
	return fmt.Sprintf("%s-token-%d", keyType, g.counter), nil
}
