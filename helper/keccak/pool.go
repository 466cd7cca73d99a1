package keccak

import "sync"

// Pool is a pool of keccak hashers
type Pool struct {
	pool sync.Pool
}

// Get returns a reset keccak hasher from the pool
func (p *Pool) Get() *Keccak {
	k, ok := p.pool.Get().(*Keccak)
	if !ok || k == nil {
		k = newKeccak256()
	}

	return k
}

// Put resets the hasher and returns it to the pool
func (p *Pool) Put(k *Keccak) {
	k.Reset()
	p.pool.Put(k)
}

// DefaultKeccakPool is a default pool of keccak-256 hashers
var DefaultKeccakPool Pool
