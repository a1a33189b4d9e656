package poslink

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// maxReference is the largest value that fits a twelve digit reference.
const maxReference = 999_999_999_999

// ReferenceGenerator produces merchant references for requests that do not set one.
//
// Implementations must be safe for concurrent use.
type ReferenceGenerator interface {
	NextReference() string
}

// SequentialReferences is a ReferenceGenerator issuing increasing decimal
// references. After 999999999999 it wraps to 1.
type SequentialReferences struct {
	counter atomic.Int64
}

var _ ReferenceGenerator = (*SequentialReferences)(nil)

// NewSequentialReferences returns a generator whose first reference is seed+1.
func NewSequentialReferences(seed int64) *SequentialReferences {
	g := &SequentialReferences{}
	if seed < 0 || seed > maxReference {
		seed = 0
	}
	g.counter.Store(seed)

	return g
}

// NextReference returns the next reference.
func (g *SequentialReferences) NextReference() string {
	for {
		n := g.counter.Add(1)
		if n <= maxReference {
			return strconv.FormatInt(n, 10)
		}
		g.counter.CompareAndSwap(n, 0)
	}
}

var (
	defaultRefs *SequentialReferences
	refsOnce    sync.Once
)

// DefaultReferenceGenerator returns the process-wide generator, seeded from
// the wall clock as yyMMddHHmmss on first use.
func DefaultReferenceGenerator() ReferenceGenerator {
	refsOnce.Do(func() {
		seed, _ := strconv.ParseInt(time.Now().Format("060102150405"), 10, 64)
		defaultRefs = NewSequentialReferences(seed)
	})

	return defaultRefs
}
