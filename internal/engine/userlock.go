package engine

import "sync"

// userLocks serializes event handling per user. Events of different users
// proceed in parallel; two events of the same user never interleave between
// the progress read and the resulting write.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*sync.Mutex)}
}

// Lock blocks until the user's lock is held and returns the unlock func.
func (u *userLocks) Lock(userID int64) func() {
	u.mu.Lock()
	lock, ok := u.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		u.locks[userID] = lock
	}
	u.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
