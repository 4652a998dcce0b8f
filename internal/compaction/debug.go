package compaction

// Named fault-injection points, enabled through the debug_points config list.
// They exist for integration tests and are never set in production.
const (
	// DebugPointSubmitBypass short-circuits the trigger path: the trigger
	// reports a successful cumulative compaction without submitting any
	// task, so clients can be tested against an immediately-successful
	// response.
	DebugPointSubmitBypass = "compaction.submit.bypass"
)
