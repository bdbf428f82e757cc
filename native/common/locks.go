package common

import "sync"

// AccountLocks hands out one mutex per account identifier so mutations
// against the same account serialize while unrelated accounts proceed fully
// in parallel. Mutexes are created lazily and never evicted; the set of live
// accounts is bounded by the player base.
type AccountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewAccountLocks() *AccountLocks {
	return &AccountLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the exclusive lease for the given account and returns the
// release function.
func (a *AccountLocks) Lock(account string) func() {
	a.mu.Lock()
	lock, ok := a.locks[account]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[account] = lock
	}
	a.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}
