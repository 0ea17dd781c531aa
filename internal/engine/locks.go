package engine

import "sync"

// MemberLocks serializes mutating operations per member without
// serializing unrelated members. Locks are created lazily on first use and
// kept for the process lifetime; member count is small relative to process
// memory, so the registry is never evicted.
//
// The locks are advisory and in-process only. Row-level database locking
// remains the source of truth; this registry exists so the execution
// engine can cheaply skip a member that is already being mutated instead
// of queueing on the database.
type MemberLocks struct {
	locks sync.Map // member id -> *sync.Mutex
}

// NewMemberLocks creates an empty registry.
func NewMemberLocks() *MemberLocks {
	return &MemberLocks{}
}

func (r *MemberLocks) get(memberID int64) *sync.Mutex {
	if mu, ok := r.locks.Load(memberID); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := r.locks.LoadOrStore(memberID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Lock blocks until the member's lock is held. Order intake uses this: the
// user is actively waiting for a result.
func (r *MemberLocks) Lock(memberID int64) {
	r.get(memberID).Lock()
}

// TryLock attempts the member's lock without blocking. The execution
// engine uses this and skips the order for the tick on contention.
func (r *MemberLocks) TryLock(memberID int64) bool {
	return r.get(memberID).TryLock()
}

// Unlock releases the member's lock.
func (r *MemberLocks) Unlock(memberID int64) {
	r.get(memberID).Unlock()
}
