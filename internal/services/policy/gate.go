package policy

import "MHIRebal/internal/domain/models"

// Gate is a fixed-capacity ring buffer of the most recent bucket
// classifications taken at the check cadence.
type Gate struct {
	buf   []models.Bucket
	next  int
	count int
}

// NewGate returns an empty gate of the given size. Sizes below one are
// treated as one.
func NewGate(size int) *Gate {
	if size < 1 {
		size = 1
	}
	return &Gate{buf: make([]models.Bucket, size)}
}

// Push records a classification, evicting the oldest once full.
func (g *Gate) Push(b models.Bucket) {
	g.buf[g.next] = b
	g.next = (g.next + 1) % len(g.buf)
	if g.count < len(g.buf) {
		g.count++
	}
}

func (g *Gate) Size() int  { return len(g.buf) }
func (g *Gate) Len() int   { return g.count }
func (g *Gate) Full() bool { return g.count == len(g.buf) }

// Confirmed is true when the window is full and every entry is the same bucket.
func (g *Gate) Confirmed() bool {
	if !g.Full() {
		return false
	}
	for _, b := range g.buf[1:] {
		if b != g.buf[0] {
			return false
		}
	}
	return true
}

// Authorize reports whether a rebalance toward current may fire. It must be
// called before current is pushed. NEUTRAL never authorizes.
func (g *Gate) Authorize(current models.Bucket) bool {
	return g.Confirmed() && current.IsExtreme()
}

// Window returns the buffered buckets from oldest to newest.
func (g *Gate) Window() []models.Bucket {
	out := make([]models.Bucket, 0, g.count)
	start := (g.next - g.count + len(g.buf)) % len(g.buf)
	for i := 0; i < g.count; i++ {
		out = append(out, g.buf[(start+i)%len(g.buf)])
	}
	return out
}

func (g *Gate) Reset() {
	g.next, g.count = 0, 0
}
