// kernel/pool.go
package kernel

import "github.com/aykutozdemir/fsmos-go/platform"

type poolSlot struct {
	rec      Record
	refCount uint16
}

// Pool is a bounded, adaptively-sized pool of message records (spec
// §4.1). It is lazily initialized on first Allocate. At most
// MaxMessagePoolSize records ever exist; the adaptive active window
// poolSize tracks load without ever crossing that hard cap.
type Pool struct {
	atomic platform.Atomic
	log    *Logger

	slots [MaxMessagePoolSize]poolSlot

	initialized  bool
	poolSize     int
	currentInUse int
	nextFree     int
}

// NewPool constructs a Pool bound to an atomic region and an optional
// logger. The pool itself stays lazily initialized until first use.
func NewPool(atomic platform.Atomic, log *Logger) *Pool {
	return &Pool{atomic: atomic, log: log}
}

func (p *Pool) init() {
	if p.initialized {
		return
	}
	p.poolSize = minAdaptivePoolSize
	if p.poolSize > MaxMessagePoolSize {
		p.poolSize = MaxMessagePoolSize
	}
	p.currentInUse = 0
	p.nextFree = 0
	p.initialized = true
}

// Allocate lazily initializes the pool on first call and returns a
// fresh, zeroed record handle with ref_count 1. It returns
// (Handle{}, errcode.PoolExhausted) when the active window is full.
func (p *Pool) Allocate() (Handle, error) {
	p.init()
	if p.currentInUse >= p.poolSize {
		if p.log != nil {
			p.log.Error("message pool exhausted")
		}
		return Handle{}, errPoolExhausted
	}

	// Scan forward from nextFree for a free slot; one is guaranteed to
	// exist among the first poolSize slots since currentInUse < poolSize.
	idx := p.nextFree
	for i := 0; i < p.poolSize; i++ {
		if p.slots[idx].refCount == 0 {
			break
		}
		idx = (idx + 1) % p.poolSize
	}
	p.slots[idx].rec.reset()
	p.slots[idx].refCount = 1
	p.currentInUse++
	p.nextFree = (idx + 1) % p.poolSize
	p.updateAdaptiveLimit()
	return Handle{pool: p, idx: idx}, nil
}

// deallocate zeroes the slot and returns it to the pool.
func (p *Pool) deallocate(idx int) {
	p.slots[idx].rec.reset()
	p.slots[idx].refCount = 0
	if p.currentInUse > 0 {
		p.currentInUse--
	}
	p.updateAdaptiveLimit()
}

// updateAdaptiveLimit keeps the active window matched to load: grow
// toward the hard cap under pressure, shrink back down to
// minAdaptivePoolSize once load drops, per spec §4.1.
func (p *Pool) updateAdaptiveLimit() {
	if p.currentInUse > (3*p.poolSize)/4 && p.poolSize < MaxMessagePoolSize {
		p.poolSize++
		return
	}
	if p.currentInUse < p.poolSize/4 && p.poolSize > minAdaptivePoolSize {
		p.poolSize--
	}
}

// InUse reports how many records are currently checked out. Exposed
// for I1 (pool balance) tests and diagnostics.
func (p *Pool) InUse() int { return p.currentInUse }

// Size reports the current adaptive active window.
func (p *Pool) Size() int { return p.poolSize }
