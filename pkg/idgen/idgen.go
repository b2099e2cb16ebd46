package idgen

import "sync/atomic"

// Uint64 returns values 1,2,3...
// A value is never handed out twice during the lifetime of the generator, so this is
// the one to use when an ID must not be reused (eg tracked object identities).
type Uint64 struct {
	next atomic.Uint64
}

func (u *Uint64) Next() uint64 {
	return u.next.Add(1)
}
