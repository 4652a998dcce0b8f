package compaction

import "errors"

var (
	// ErrNoSuitableVersion means no candidate rowsets qualify right now.
	// This is a benign outcome: it is never counted as a failure and is
	// logged at debug level at most.
	ErrNoSuitableVersion = errors.New("no suitable version to compact")

	// ErrLockConflict means a same- or cross-level compaction already runs
	// on this tablet. Callers see it immediately; nothing blocks or retries.
	ErrLockConflict = errors.New("compaction already running on tablet")

	// ErrMergeFailed wraps genuine merge or peer-fetch failures.
	ErrMergeFailed = errors.New("compaction merge failed")

	// ErrPeerFetchNotAllowed means remote compaction was requested for a
	// tablet whose replication role requires local compaction.
	ErrPeerFetchNotAllowed = errors.New("tablet should do compaction locally")

	// ErrNotPrepared means Execute was called without a successful Prepare.
	ErrNotPrepared = errors.New("compaction task not prepared")

	// ErrSchedulerStopped means the scheduler no longer accepts submissions.
	ErrSchedulerStopped = errors.New("compaction scheduler stopped")
)

// IsBenign reports whether err is the expected no-candidates outcome.
func IsBenign(err error) bool {
	return errors.Is(err, ErrNoSuitableVersion)
}
