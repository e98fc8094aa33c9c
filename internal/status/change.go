package status

// IsChange reports whether candidate is an observable change from previous.
//
// A state change always counts. Within the same state, only a change of
// RemainingMinutes counts, and never while Complete: the completed timer keeps
// counting elapsed time and must not re-trigger actions every minute.
func IsChange(previous, candidate Snapshot) bool {
	if previous.State != candidate.State {
		return true
	}
	if candidate.State == Complete {
		return false
	}
	return previous.RemainingMinutes() != candidate.RemainingMinutes()
}
