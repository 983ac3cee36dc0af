package codec

import "sync/atomic"

// progress counts bytes pushed through region multiplies, weighted by the
// number of (input, target) pairs they served, against the planned total.
type progress struct {
	total  int64
	done   atomic.Int64
	report func(float64)
}

func (p *progress) add(n int64) { p.done.Add(n) }

func (p *progress) fraction() float64 {
	if p.total <= 0 {
		return 1
	}
	f := float64(p.done.Load()) / float64(p.total)
	if f > 1 {
		f = 1
	}
	return f
}

func (p *progress) tick() {
	if p.report != nil {
		p.report(p.fraction())
	}
}
