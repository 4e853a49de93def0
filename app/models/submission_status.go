package models

// SubmissionStatus is the lifecycle state of a submission.
type SubmissionStatus string

const (
	StatusPending    SubmissionStatus = "pending"
	StatusSynced     SubmissionStatus = "synced"
	StatusInProgress SubmissionStatus = "in_progress"
	StatusCompleted  SubmissionStatus = "completed"
	StatusError      SubmissionStatus = "error"
)

// Valid reports whether s is one of the known statuses.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSynced, StatusInProgress, StatusCompleted, StatusError:
		return true
	}
	return false
}

// CanTransitionTo reports whether the transition s -> next is legal.
// The processor owns pending -> synced and any -> error; admin actions own
// synced -> in_progress -> completed. A failed migration re-enters pending,
// so pending -> pending is legal. Completed records are deleted, never
// transitioned away from.
func (s SubmissionStatus) CanTransitionTo(next SubmissionStatus) bool {
	if !next.Valid() {
		return false
	}
	if next == StatusError {
		return s != StatusCompleted
	}
	switch s {
	case StatusPending:
		return next == StatusPending || next == StatusSynced
	case StatusSynced:
		return next == StatusInProgress
	case StatusInProgress:
		return next == StatusCompleted
	case StatusError:
		return next == StatusPending
	}
	return false
}
