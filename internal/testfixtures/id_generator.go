package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator hands out predictable activity ID suffixes. The scheduling
// service prepends the kind prefix, so a fresh generator yields
// LES-00000001, BKG-00000002 and so on.
type IDGenerator struct {
	mu     sync.Mutex
	prefix string
	issued uint64
}

// NewIDGenerator starts a sequence whose suffixes begin with prefix.
func NewIDGenerator(prefix string) *IDGenerator {
	return &IDGenerator{prefix: prefix}
}

func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued++
	return fmt.Sprintf("%s%08d", g.prefix, g.issued)
}

// NextFunc is what services take as their idGenerator dependency. A nil
// generator yields empty suffixes.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Reset restarts the sequence under a new prefix.
func (g *IDGenerator) Reset(prefix string) {
	g.mu.Lock()
	g.prefix = prefix
	g.issued = 0
	g.mu.Unlock()
}

// Issued reports how many suffixes have been handed out.
func (g *IDGenerator) Issued() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.issued
}
