// Package selection holds the capped multi-select used for furniture classes
// and style themes, plus the built-in theme catalogue.
package selection

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrAtMax is returned when selecting past the cap. The set is unchanged.
var ErrAtMax = errors.New("selection limit reached")

// Capped is an ordered set with at most Max members.
type Capped[K comparable] struct {
	mu    sync.Mutex
	max   int
	order []K
}

// NewCapped creates an empty selection holding at most max items.
func NewCapped[K comparable](max int) *Capped[K] {
	return &Capped[K]{max: max}
}

// Max returns the cap.
func (c *Capped[K]) Max() int { return c.max }

// Toggle deselects k when selected, otherwise selects it. It reports whether
// k is selected afterwards.
func (c *Capped[K]) Toggle(k K) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := slices.Index(c.order, k); i >= 0 {
		c.order = slices.Delete(c.order, i, i+1)
		return false, nil
	}
	if err := c.addLocked(k); err != nil {
		return false, err
	}
	return true, nil
}

// Select adds k. Selecting a member again is a no-op.
func (c *Capped[K]) Select(k K) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slices.Contains(c.order, k) {
		return nil
	}
	return c.addLocked(k)
}

// Deselect removes k if present.
func (c *Capped[K]) Deselect(k K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := slices.Index(c.order, k); i >= 0 {
		c.order = slices.Delete(c.order, i, i+1)
	}
}

// Reset empties the selection.
func (c *Capped[K]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
}

// Selected returns members in selection order.
func (c *Capped[K]) Selected() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.order)
}

// Len returns the number of members.
func (c *Capped[K]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Has reports whether k is selected.
func (c *Capped[K]) Has(k K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Contains(c.order, k)
}

// AtMax reports whether the cap is reached.
func (c *Capped[K]) AtMax() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order) >= c.max
}

// Disabled reports whether k cannot be toggled on right now.
func (c *Capped[K]) Disabled(k K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order) >= c.max && !slices.Contains(c.order, k)
}

func (c *Capped[K]) addLocked(k K) error {
	if len(c.order) >= c.max {
		return fmt.Errorf("%w: at most %d", ErrAtMax, c.max)
	}
	c.order = append(c.order, k)
	return nil
}
