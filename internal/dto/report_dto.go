package dto

import "time"

// AssignmentStatus is one classified report row. All numbers arrive
// pre-rounded; consumers render them as-is.
type AssignmentStatus struct {
	AssignmentID   int64      `json:"assignment_id"`
	Course         string     `json:"course"`
	Name           string     `json:"name"`
	DueDate        time.Time  `json:"due_date"`
	Score          float64    `json:"score"`
	Status         string     `json:"status"`
	SubmissionDate *time.Time `json:"submission_date,omitempty"`
	GradedDate     *time.Time `json:"graded_date,omitempty"`
	PointsDropped  float64    `json:"points_dropped"`
	PossibleGain   int        `json:"possible_gain"`
	Attempts       int        `json:"attempts"`
}

// CommentView is one submission comment attached to an assignment detail.
type CommentView struct {
	Author string    `json:"author"`
	Date   time.Time `json:"date"`
	Text   string    `json:"text"`
}

// AssignmentDetail is a single assignment with its comments populated.
type AssignmentDetail struct {
	AssignmentStatus
	Comments []CommentView `json:"comments"`
}

// CourseScore is one course's current grade with its GPA equivalents.
type CourseScore struct {
	Course           string  `json:"course"`
	Score            int     `json:"score"`
	WeightedPoints   float64 `json:"weighted_points"`
	UnweightedPoints float64 `json:"unweighted_points"`
}

// TodayReport lists what is due on a given day alongside course scores.
type TodayReport struct {
	Date   string             `json:"date"`
	Due    []AssignmentStatus `json:"due"`
	Scores []CourseScore      `json:"scores"`
}

// WeekReport lists the assignments coming due in the week after a date.
type WeekReport struct {
	Start time.Time          `json:"start"`
	End   time.Time          `json:"end"`
	Items []AssignmentStatus `json:"items"`
}

// AttentionReport groups the assignments needing action, ranked by how much
// fixing each would move the course grade.
type AttentionReport struct {
	MinGain        int                `json:"min_gain"`
	Missing        []AssignmentStatus `json:"missing"`
	LowScore       []AssignmentStatus `json:"low_score"`
	BeingMarked    []AssignmentStatus `json:"being_marked"`
	HasComment     []AssignmentStatus `json:"has_comment"`
	CommentsLoaded int                `json:"comments_loaded"`
}

// ScoresReport carries per-course grades plus the trailing average row.
type ScoresReport struct {
	Courses []CourseScore `json:"courses"`
}

// ServiceHoursReport carries the remaining service-hours balance.
type ServiceHoursReport struct {
	RemainingHours float64 `json:"remaining_hours"`
}

// ReportQuery validates the query parameters accepted by report endpoints.
type ReportQuery struct {
	Date    string `query:"date" validate:"omitempty,datetime=2006-01-02"`
	MinGain int    `query:"min_gain" validate:"gte=0"`
}
