package conversation

import (
	"fmt"
	"sync/atomic"
)

// IDGenerator hands out per-session sequence identifiers for turns, captures and playbacks.
type IDGenerator struct {
	counter uint64
}

// NewIDGenerator creates a generator starting at 1.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns "<prefix>-<kind>-N".
func (g *IDGenerator) Next(prefix, kind string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-%s-%d", prefix, kind, n)
}
