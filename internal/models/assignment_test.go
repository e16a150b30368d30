package models

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gradewatch/gradewatch-api/internal/canvas"
)

type stubComments struct {
	comments []canvas.RawComment
	calls    int
	err      error
}

func (s *stubComments) ListComments(_ context.Context, _, _ int64) ([]canvas.RawComment, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.comments, nil
}

func floatPointer(v float64) *float64 { return &v }
func intPointer(v int) *int           { return &v }

func validRaw() canvas.RawAssignment {
	return canvas.RawAssignment{
		ID:                42,
		CourseID:          7,
		Name:              "Chapter 5 Problem Set",
		DueAt:             strPointer("2026-03-09T23:59:00Z"),
		PointsPossible:    floatPointer(100),
		AssignmentGroupID: 10,
		SubmissionTypes:   []string{"online_upload"},
	}
}

func newTestAssignment(t *testing.T, raw canvas.RawAssignment, comments *stubComments) *Assignment {
	t.Helper()
	if comments == nil {
		comments = &stubComments{}
	}
	a := NewAssignment(raw, "Algebra", comments, zerolog.Nop())
	a.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestValidityInvariant(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*canvas.RawAssignment)
		valid  bool
	}{
		{"complete record", func(r *canvas.RawAssignment) {}, true},
		{"excused", func(r *canvas.RawAssignment) { r.Submission.Excused = true }, false},
		{"no points", func(r *canvas.RawAssignment) { r.PointsPossible = nil }, false},
		{"zero points", func(r *canvas.RawAssignment) { r.PointsPossible = floatPointer(0) }, false},
		{"no due date", func(r *canvas.RawAssignment) { r.DueAt = nil }, false},
		{"attendance marker", func(r *canvas.RawAssignment) { r.Name = "Attendance Week 3" }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := validRaw()
			tc.mutate(&raw)
			a := newTestAssignment(t, raw, nil)
			require.Equal(t, tc.valid, a.IsValid())
		})
	}
}

func TestExcusedBeatsEverythingElse(t *testing.T) {
	raw := validRaw()
	raw.Submission.Excused = true
	a := newTestAssignment(t, raw, nil)

	require.False(t, a.IsValid())

	onOrBefore, exactlyOn := a.IsDue(time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC))
	require.False(t, onOrBefore)
	require.False(t, exactlyOn)
}

func TestIsGradedRequiresEnteredScoreAndSettledWorkflow(t *testing.T) {
	raw := validRaw()
	a := newTestAssignment(t, raw, nil)
	require.False(t, a.IsGraded())

	raw.Submission.EnteredScore = floatPointer(80)
	raw.Submission.Score = floatPointer(80)
	a = newTestAssignment(t, raw, nil)
	require.True(t, a.IsGraded())

	raw.Submission.WorkflowState = "pending_review"
	a = newTestAssignment(t, raw, nil)
	require.False(t, a.IsGraded())
}

func TestPercentageScoreAndPointsDropped(t *testing.T) {
	raw := validRaw()
	raw.Submission.EnteredScore = floatPointer(72.5)
	raw.Submission.Score = floatPointer(72.5)
	raw.Submission.SubmittedAt = strPointer("2026-03-08T18:00:00Z")
	a := newTestAssignment(t, raw, nil)

	require.InDelta(t, 72.5, a.PercentageScore(), 0.001)
	require.InDelta(t, 27.5, a.GradedPointsDropped(), 0.001)

	dropped, err := a.PointsDropped(context.Background(), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.InDelta(t, 27.5, dropped, 0.001)
}

func TestPointsDroppedFullLossWhenMissing(t *testing.T) {
	raw := validRaw()
	raw.Submission.Missing = true
	a := newTestAssignment(t, raw, nil)

	dropped, err := a.PointsDropped(context.Background(), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 100.0, dropped)
}

func TestIsSubmittedFromAttemptsOrScore(t *testing.T) {
	raw := validRaw()
	raw.Submission.Attempt = intPointer(2)
	a := newTestAssignment(t, raw, nil)

	submitted, err := a.IsSubmitted(context.Background())
	require.NoError(t, err)
	require.True(t, submitted)
}

func TestIsSubmittedFallsBackToManualCommentDate(t *testing.T) {
	comments := &stubComments{comments: []canvas.RawComment{
		{AuthorName: "Pat Smith", CreatedAt: "2026-03-08T20:00:00Z", Comment: "Submitted 3/8 in class"},
	}}
	a := newTestAssignment(t, validRaw(), comments)

	submitted, err := a.IsSubmitted(context.Background())
	require.NoError(t, err)
	require.True(t, submitted)

	date, ok, err := a.SubmissionDate(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), date)

	// The comment fetch and the manual scan both happen at most once.
	_, _, err = a.SubmissionDate(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, comments.calls)
}

func TestMalformedManualDateIsSkippedNotFatal(t *testing.T) {
	comments := &stubComments{comments: []canvas.RawComment{
		{AuthorName: "Pat Smith", CreatedAt: "2026-03-08T20:00:00Z", Comment: "Submitted yesterday"},
	}}
	a := newTestAssignment(t, validRaw(), comments)

	_, ok, err := a.SubmissionDate(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsMissingFromUpstreamFlag(t *testing.T) {
	raw := validRaw()
	raw.Submission.Missing = true
	a := newTestAssignment(t, raw, nil)

	missing, err := a.IsMissing(context.Background(), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, missing)
}

func TestIsMissingInferredFromDueDate(t *testing.T) {
	raw := validRaw() // due 3/9, no flag, nothing submitted
	a := newTestAssignment(t, raw, nil)

	missing, err := a.IsMissing(context.Background(), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, missing)

	// Not yet due: the inferred path must not fire.
	missing, err = a.IsMissing(context.Background(), time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.False(t, missing)
}

func TestIsMissingFalseWhenSubmitted(t *testing.T) {
	raw := validRaw()
	raw.Submission.Missing = true
	raw.Submission.SubmittedAt = strPointer("2026-03-08T18:00:00Z")
	a := newTestAssignment(t, raw, nil)

	missing, err := a.IsMissing(context.Background(), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.False(t, missing)
}

func TestIsBeingMarked(t *testing.T) {
	// Submitted, not graded.
	raw := validRaw()
	raw.Submission.SubmittedAt = strPointer("2026-03-08T18:00:00Z")
	a := newTestAssignment(t, raw, nil)

	beingMarked, err := a.IsBeingMarked(context.Background())
	require.NoError(t, err)
	require.True(t, beingMarked)

	// Graded before a resubmission: still waiting on the new grade.
	raw.Submission.EnteredScore = floatPointer(60)
	raw.Submission.Score = floatPointer(60)
	raw.Submission.GradedAt = strPointer("2026-03-07T18:00:00Z")
	a = newTestAssignment(t, raw, nil)

	beingMarked, err = a.IsBeingMarked(context.Background())
	require.NoError(t, err)
	require.True(t, beingMarked)

	// Graded after submission: settled.
	raw.Submission.GradedAt = strPointer("2026-03-09T18:00:00Z")
	a = newTestAssignment(t, raw, nil)

	beingMarked, err = a.IsBeingMarked(context.Background())
	require.NoError(t, err)
	require.False(t, beingMarked)

	// Never submitted: nothing to mark.
	a = newTestAssignment(t, validRaw(), nil)
	beingMarked, err = a.IsBeingMarked(context.Background())
	require.NoError(t, err)
	require.False(t, beingMarked)
}

func TestIsLate(t *testing.T) {
	raw := validRaw()
	raw.Submission.Late = true
	a := newTestAssignment(t, raw, nil)
	require.True(t, a.IsLate())

	// A late submission that already earned points is no longer flagged.
	raw.Submission.EnteredScore = floatPointer(70)
	raw.Submission.Score = floatPointer(70)
	a = newTestAssignment(t, raw, nil)
	require.False(t, a.IsLate())
}

func TestCanSubmit(t *testing.T) {
	raw := validRaw()
	a := newTestAssignment(t, raw, nil)
	require.True(t, a.CanSubmit())

	for _, blocked := range []string{"none", "external_tool", "on_paper"} {
		raw.SubmissionTypes = []string{"online_upload", blocked}
		a = newTestAssignment(t, raw, nil)
		require.False(t, a.CanSubmit(), blocked)
	}
}

func TestCommentsAreSanitizedAndCached(t *testing.T) {
	comments := &stubComments{comments: []canvas.RawComment{
		{AuthorName: "Pat Smith", CreatedAt: "2026-03-08T20:00:00Z", Comment: "<b>Nice</b> work\nso far"},
	}}
	a := newTestAssignment(t, validRaw(), comments)

	got, err := a.Comments(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Pat", got[0].Author)
	require.Equal(t, "Nice work so far", got[0].Text)

	_, err = a.Comments(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, comments.calls)
	require.True(t, a.CommentsFetched())
}
