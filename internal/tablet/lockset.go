package tablet

import (
	"sync"
	"sync/atomic"
)

// LockSet holds a tablet's compaction mutual exclusion state: independent
// base and cumulative level locks plus a flag for full compaction.
//
// Full compaction takes both level locks, so probing the locks cannot tell
// "full running" apart from two single-level tasks. The flag is authoritative
// for the whole lifetime of a full task and is what status queries consult.
type LockSet struct {
	base        sync.Mutex
	cumulative  sync.Mutex
	fullRunning atomic.Bool
}

// TryLockBase acquires the base level lock without blocking.
func (s *LockSet) TryLockBase() bool { return s.base.TryLock() }

// UnlockBase releases the base level lock.
func (s *LockSet) UnlockBase() { s.base.Unlock() }

// TryLockCumulative acquires the cumulative level lock without blocking.
func (s *LockSet) TryLockCumulative() bool { return s.cumulative.TryLock() }

// UnlockCumulative releases the cumulative level lock.
func (s *LockSet) UnlockCumulative() { s.cumulative.Unlock() }

// TryStartFull marks a full compaction as running. At most one full
// compaction runs per tablet; a second caller gets false immediately.
func (s *LockSet) TryStartFull() bool {
	return s.fullRunning.CompareAndSwap(false, true)
}

// FinishFull clears the full-running flag.
func (s *LockSet) FinishFull() { s.fullRunning.Store(false) }

// FullRunning reports whether a full compaction is in progress.
func (s *LockSet) FullRunning() bool { return s.fullRunning.Load() }
