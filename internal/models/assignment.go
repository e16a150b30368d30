package models

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gradewatch/gradewatch-api/internal/canvas"
)

// CommentSource lazily supplies the submission comments for one assignment.
// Comment fetches are expensive upstream calls, so they happen on demand and
// at most once per assignment.
type CommentSource interface {
	ListComments(ctx context.Context, courseID, assignmentID int64) ([]canvas.RawComment, error)
}

// nonSubmittableTypes are submission types handled outside the LMS; nothing
// can be turned in online for them.
var nonSubmittableTypes = []string{"none", "external_tool", "on_paper"}

// Assignment wraps one raw assignment+submission pair and derives its
// grading, submission and lateness state. Validity is fixed at construction:
// excused assignments, assignments without points or a due date, and
// attendance markers never count anywhere.
type Assignment struct {
	id         int64
	courseID   int64
	courseName string
	name       string
	raw        canvas.RawAssignment
	valid      bool
	dueDate    time.Time
	groupID    int64

	source CommentSource
	logger zerolog.Logger
	now    func() time.Time

	comments        []Comment
	commentsFetched bool

	submissionDate *time.Time
	manualScanDone bool
}

// NewAssignment wraps a raw record. Invalid assignments are still returned
// (the caller decides whether to keep them) but are logged at warn level.
func NewAssignment(raw canvas.RawAssignment, courseName string, source CommentSource, logger zerolog.Logger) *Assignment {
	a := &Assignment{
		id:         raw.ID,
		courseID:   raw.CourseID,
		courseName: courseName,
		name:       raw.Name,
		raw:        raw,
		source:     source,
		logger:     logger.With().Str("component", "assignment").Int64("assignment_id", raw.ID).Logger(),
		now:        time.Now,
	}

	a.valid = raw.PointsPossible != nil &&
		*raw.PointsPossible > 0 &&
		raw.DueAt != nil &&
		!strings.Contains(raw.Name, "Attendance") &&
		!raw.Submission.Excused

	if a.valid {
		due, err := NormalizeDate(*raw.DueAt)
		if err != nil {
			a.valid = false
			a.logger.Warn().Err(err).Str("course", courseName).Str("name", raw.Name).Msg("unparseable due date")
		} else {
			a.dueDate = due
			a.groupID = raw.AssignmentGroupID
		}
	}

	if !a.valid {
		a.logger.Warn().
			Str("course", courseName).
			Str("name", raw.Name).
			Bool("excused", raw.Submission.Excused).
			Msg("invalid assignment")
	}

	return a
}

// ID returns the upstream assignment identifier.
func (a *Assignment) ID() int64 { return a.id }

// CourseID returns the owning course identifier.
func (a *Assignment) CourseID() int64 { return a.courseID }

// CourseName returns the short display name of the owning course.
func (a *Assignment) CourseName() string { return a.courseName }

// Name returns the assignment title.
func (a *Assignment) Name() string { return a.name }

// GroupID returns the assignment-group membership.
func (a *Assignment) GroupID() int64 { return a.groupID }

// DueDate returns the normalized due date; zero for invalid assignments.
func (a *Assignment) DueDate() time.Time { return a.dueDate }

// IsValid reports whether the assignment counts toward anything at all.
func (a *Assignment) IsValid() bool { return a.valid }

// PointsPossible returns the maximum points, zero when absent.
func (a *Assignment) PointsPossible() float64 {
	if a.raw.PointsPossible == nil {
		return 0
	}

	return *a.raw.PointsPossible
}

// Attempts returns the submission attempt count, zero when absent.
func (a *Assignment) Attempts() int {
	if a.raw.Submission.Attempt == nil {
		return 0
	}

	return *a.raw.Submission.Attempt
}

// IsGraded reports whether a score has been entered and the submission is
// not waiting on review.
func (a *Assignment) IsGraded() bool {
	return a.raw.Submission.EnteredScore != nil && a.raw.Submission.WorkflowState != "pending_review"
}

// RawScore returns the earned points when graded, zero otherwise.
func (a *Assignment) RawScore() float64 {
	if !a.IsGraded() || a.raw.Submission.Score == nil {
		return 0
	}

	return *a.raw.Submission.Score
}

// PercentageScore returns the score as a percentage of points possible.
// Ungraded assignments score zero; the graded check also guards the
// division, points possible may legitimately be zero on invalid records.
func (a *Assignment) PercentageScore() float64 {
	if !a.IsGraded() || a.PointsPossible() <= 0 {
		return 0
	}

	return 100 * a.RawScore() / a.PointsPossible()
}

// GradedPointsDropped is the graded-only fast path used by the score
// calculator: points possible minus points earned.
func (a *Assignment) GradedPointsDropped() float64 {
	if !a.IsGraded() {
		return 0
	}

	return a.PointsPossible() - a.RawScore()
}

// PointsDropped returns the points lost on this assignment: the shortfall
// when graded, the full value when missing, zero otherwise.
func (a *Assignment) PointsDropped(ctx context.Context, asOf time.Time) (float64, error) {
	if a.IsGraded() {
		return a.GradedPointsDropped(), nil
	}

	missing, err := a.IsMissing(ctx, asOf)
	if err != nil {
		return 0, err
	}
	if missing {
		return a.PointsPossible(), nil
	}

	return 0, nil
}

// IsDue returns whether the assignment is due on or before date, and whether
// it is due exactly on date. Invalid assignments are never due.
func (a *Assignment) IsDue(date time.Time) (onOrBefore, exactlyOn bool) {
	if !a.valid {
		return false, false
	}

	return OnOrBefore(a.dueDate, date), SameDay(a.dueDate, date)
}

// CanSubmit reports whether the assignment accepts online submissions.
func (a *Assignment) CanSubmit() bool {
	for _, submissionType := range a.raw.SubmissionTypes {
		for _, blocked := range nonSubmittableTypes {
			if submissionType == blocked {
				return false
			}
		}
	}

	return true
}

// IsSubmitted reports whether the student has turned the assignment in.
// With no attempts and no score, only a resolvable submission date counts.
func (a *Assignment) IsSubmitted(ctx context.Context) (bool, error) {
	if a.Attempts() > 0 || a.PercentageScore() > 0 {
		return true, nil
	}

	_, ok, err := a.SubmissionDate(ctx)
	return ok, err
}

// IsMissing reports whether the assignment counts as missing as of the
// evaluation date: either explicitly flagged upstream (and not submitted,
// and not graded above zero), or past due without a submission.
func (a *Assignment) IsMissing(ctx context.Context, asOf time.Time) (bool, error) {
	submitted, err := a.IsSubmitted(ctx)
	if err != nil {
		return false, err
	}

	flagged := a.raw.Submission.Missing && !submitted && (!a.IsGraded() || a.RawScore() == 0)

	dueBy, _ := a.IsDue(asOf)
	inferred := dueBy && !submitted

	return flagged || inferred, nil
}

// IsLate reports whether the assignment was flagged late and has earned
// nothing yet.
func (a *Assignment) IsLate() bool {
	return a.raw.Submission.Late && a.PercentageScore() == 0
}

// IsBeingMarked reports whether a submission is waiting on a grade,
// including resubmissions made after an earlier grade was issued.
func (a *Assignment) IsBeingMarked(ctx context.Context) (bool, error) {
	submitted, err := a.IsSubmitted(ctx)
	if err != nil {
		return false, err
	}
	if !submitted {
		return false, nil
	}

	if !a.IsGraded() {
		return true, nil
	}

	submissionDate, hasSubmission, err := a.SubmissionDate(ctx)
	if err != nil {
		return false, err
	}
	gradedDate, hasGraded := a.GradedDate()
	if !hasSubmission || !hasGraded {
		return false, nil
	}

	return submissionDate.After(gradedDate), nil
}

// SubmissionDate resolves when the assignment was submitted. When the
// upstream timestamp is absent it falls back to scanning comments for a
// manually recorded "Submitted MM/DD" note; malformed notes are logged and
// skipped. The result is cached for the assignment's lifetime.
func (a *Assignment) SubmissionDate(ctx context.Context) (time.Time, bool, error) {
	if a.submissionDate != nil {
		return *a.submissionDate, true, nil
	}

	if a.raw.Submission.SubmittedAt != nil {
		date, err := NormalizeDate(*a.raw.Submission.SubmittedAt)
		if err != nil {
			return time.Time{}, false, err
		}
		a.submissionDate = &date
		return date, true, nil
	}

	if a.manualScanDone {
		return time.Time{}, false, nil
	}
	a.manualScanDone = true

	comments, err := a.Comments(ctx)
	if err != nil {
		return time.Time{}, false, err
	}

	for _, comment := range comments {
		if !strings.HasPrefix(comment.Text, "Submitted") {
			continue
		}

		fields := strings.Fields(comment.Text)
		if len(fields) < 2 {
			continue
		}

		parsed, err := time.Parse("1/2", fields[1])
		if err != nil {
			a.logger.Error().
				Str("name", a.name).
				Str("token", fields[1]).
				Msg("manual submission date is not in mm/dd format")
			continue
		}

		date := time.Date(a.now().Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		a.submissionDate = &date
		a.logger.Info().Str("name", a.name).Time("submitted_at", date).Msg("manual submission date resolved")
		return date, true, nil
	}

	return time.Time{}, false, nil
}

// GradedDate returns when the grade was entered, if the assignment is graded.
func (a *Assignment) GradedDate() (time.Time, bool) {
	if !a.IsGraded() || a.raw.Submission.GradedAt == nil {
		return time.Time{}, false
	}

	date, err := NormalizeDate(*a.raw.Submission.GradedAt)
	if err != nil {
		a.logger.Warn().Err(err).Str("name", a.name).Msg("unparseable graded date")
		return time.Time{}, false
	}

	return date, true
}

// Comments returns the submission comments, fetching them on first use.
func (a *Assignment) Comments(ctx context.Context) ([]Comment, error) {
	if a.commentsFetched {
		return a.comments, nil
	}

	raws, err := a.source.ListComments(ctx, a.courseID, a.id)
	if err != nil {
		return nil, err
	}
	a.commentsFetched = true

	comments := make([]Comment, 0, len(raws))
	for _, raw := range raws {
		comment, err := NewComment(raw)
		if err != nil {
			a.logger.Error().Err(err).Str("name", a.name).Msg("unparseable comment date")
			continue
		}
		comments = append(comments, comment)
	}
	a.comments = comments

	return a.comments, nil
}

// CommentsFetched reports whether the lazy comment load has happened.
func (a *Assignment) CommentsFetched() bool {
	return a.commentsFetched
}
