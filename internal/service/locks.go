package service

import "sync"

// keyedMutex serializes critical sections per resource key without
// a single global lock. Entries are never removed: the key space
// (user×session, booking ids) is small enough for process lifetime.
type keyedMutex struct {
	locks sync.Map
}

func (m *keyedMutex) lock(key string) func() {
	v, _ := m.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
