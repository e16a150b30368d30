package canvas

// Raw records mirror the upstream LMS payloads. Optional fields stay
// pointers so "absent" is never confused with zero; defaults are applied by
// the models layer, not here.

// RawTerm is the enrollment term attached to a course.
type RawTerm struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	EndAt *string `json:"end_at"`
}

// RawCourse is one course enrollment as returned by the upstream API.
type RawCourse struct {
	ID   int64   `json:"id"`
	Name string  `json:"name"`
	Term RawTerm `json:"term"`
}

// RawSubmission is the student's submission attached to an assignment.
type RawSubmission struct {
	EnteredScore  *float64 `json:"entered_score"`
	Score         *float64 `json:"score"`
	Attempt       *int     `json:"attempt"`
	SubmittedAt   *string  `json:"submitted_at"`
	GradedAt      *string  `json:"graded_at"`
	Missing       bool     `json:"missing"`
	Late          bool     `json:"late"`
	Excused       bool     `json:"excused"`
	WorkflowState string   `json:"workflow_state"`
}

// RawAssignment is one gradable unit with its submission included.
type RawAssignment struct {
	ID                int64         `json:"id"`
	CourseID          int64         `json:"course_id"`
	Name              string        `json:"name"`
	DueAt             *string       `json:"due_at"`
	PointsPossible    *float64      `json:"points_possible"`
	AssignmentGroupID int64         `json:"assignment_group_id"`
	SubmissionTypes   []string      `json:"submission_types"`
	Submission        RawSubmission `json:"submission"`
}

// RawAssignmentGroup is a weighted bucket of assignments within a course.
type RawAssignmentGroup struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	GroupWeight float64 `json:"group_weight"`
}

// RawComment is one submission comment.
type RawComment struct {
	AuthorName string `json:"author_name"`
	CreatedAt  string `json:"created_at"`
	Comment    string `json:"comment"`
}

type rawCommentEnvelope struct {
	SubmissionComments []RawComment `json:"submission_comments"`
}

// RawGrades carries the upstream-computed course grade on an enrollment.
type RawGrades struct {
	CurrentScore *float64 `json:"current_score"`
}

// RawEnrollment is one enrollment row with its current grade.
type RawEnrollment struct {
	CourseID int64     `json:"course_id"`
	Grades   RawGrades `json:"grades"`
}
