package models

// SubmissionStatus classifies an assignment for one report run. It is a
// transient annotation produced during classification, never persisted.
type SubmissionStatus string

const (
	StatusSubmitted    SubmissionStatus = "Submitted"
	StatusNotSubmitted SubmissionStatus = "Not_Submitted"
	StatusMarked       SubmissionStatus = "Marked"
	StatusMissing      SubmissionStatus = "Missing"
	StatusLate         SubmissionStatus = "Late"
	StatusLowScore     SubmissionStatus = "Low_Score"
	StatusExternal     SubmissionStatus = "External"
	StatusBeingMarked  SubmissionStatus = "Being_Marked"
	StatusHasComment   SubmissionStatus = "Has_Comment"
)

func (s SubmissionStatus) String() string {
	return string(s)
}
