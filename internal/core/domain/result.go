package domain

type Outcome string

const (
	OutcomeApplied         Outcome = "applied"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeVersionConflict Outcome = "version_conflict"
)

// MutationResult is the outcome of Adjust or Reserve. Article holds the
// updated record when applied and the current stored record otherwise.
type MutationResult struct {
	Outcome  Outcome  `json:"outcome"`
	Article  *Article `json:"article,omitempty"`
	Position int64    `json:"position,omitempty"`
}

func (r MutationResult) Applied() bool {
	return r.Outcome == OutcomeApplied
}

type BatchPolicy string

const (
	BatchStopOnError     BatchPolicy = "stop"
	BatchContinueOnError BatchPolicy = "continue"
)

type BatchFailure struct {
	Index       int       `json:"index"`
	OperationID string    `json:"operation_id"`
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	Current     *Article  `json:"current,omitempty"`
}

type BatchSyncResult struct {
	Applied    int            `json:"applied_count"`
	Failed     int            `json:"failed_count"`
	Duplicates int            `json:"duplicate_count"`
	Skipped    int            `json:"skipped_count"`
	Failures   []BatchFailure `json:"failures,omitempty"`
}
