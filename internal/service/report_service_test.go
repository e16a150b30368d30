package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gradewatch/gradewatch-api/internal/canvas"
	"github.com/gradewatch/gradewatch-api/internal/report"
)

type stubSource struct {
	courses     []canvas.RawCourse
	groups      map[int64][]canvas.RawAssignmentGroup
	assignments map[int64][]canvas.RawAssignment
	enrollments []canvas.RawEnrollment
}

func (s *stubSource) ListCourses(context.Context) ([]canvas.RawCourse, error) {
	return s.courses, nil
}

func (s *stubSource) ListAssignments(_ context.Context, courseID int64) ([]canvas.RawAssignment, error) {
	return s.assignments[courseID], nil
}

func (s *stubSource) ListAssignmentGroups(_ context.Context, courseID int64) ([]canvas.RawAssignmentGroup, error) {
	return s.groups[courseID], nil
}

func (s *stubSource) ListSubmissionComments(context.Context, int64, int64, int64) ([]canvas.RawComment, error) {
	return nil, nil
}

func (s *stubSource) ListEnrollments(context.Context) ([]canvas.RawEnrollment, error) {
	return s.enrollments, nil
}

func floatPointer(v float64) *float64 { return &v }
func strPointer(v string) *string     { return &v }

var reportDate = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixtureSource() *stubSource {
	graded := func(id int64, name, due string, points, score float64) canvas.RawAssignment {
		return canvas.RawAssignment{
			ID:                id,
			CourseID:          1,
			Name:              name,
			DueAt:             strPointer(due),
			PointsPossible:    floatPointer(points),
			AssignmentGroupID: 10,
			SubmissionTypes:   []string{"online_upload"},
			Submission: canvas.RawSubmission{
				EnteredScore: floatPointer(score),
				Score:        floatPointer(score),
				SubmittedAt:  strPointer("2026-03-02T18:00:00Z"),
				GradedAt:     strPointer("2026-03-03T18:00:00Z"),
			},
		}
	}

	return &stubSource{
		courses: []canvas.RawCourse{{
			ID:   1,
			Name: "Algebra 1",
			Term: canvas.RawTerm{Name: "Spring 2026", EndAt: strPointer("2099-01-01T00:00:00Z")},
		}},
		groups: map[int64][]canvas.RawAssignmentGroup{
			1: {{ID: 10, Name: "Homework", GroupWeight: 100}},
		},
		assignments: map[int64][]canvas.RawAssignment{
			1: {
				graded(1, "Quiz 1", "2026-03-03T23:59:00Z", 100, 90),
				graded(2, "Quiz 2", "2026-03-05T23:59:00Z", 100, 40),
				{
					ID:                3,
					CourseID:          1,
					Name:              "Worksheet 3",
					DueAt:             strPointer("2026-03-09T23:59:00Z"),
					PointsPossible:    floatPointer(100),
					AssignmentGroupID: 10,
					SubmissionTypes:   []string{"online_upload"},
				},
				graded(4, "Due Today Quiz", "2026-03-10T23:59:00Z", 50, 45),
			},
		},
		enrollments: []canvas.RawEnrollment{
			{CourseID: 1, Grades: canvas.RawGrades{CurrentScore: floatPointer(76.5)}},
		},
	}
}

// countingFactory tracks how many full upstream loads the service performs.
type countingFactory struct {
	source canvas.Source
	calls  int
}

func (f *countingFactory) new() *report.Reporter {
	f.calls++
	return report.NewReporter(f.source, report.ReporterConfig{
		UserID:      5,
		StudentName: "Alex Johnson",
		Location:    time.UTC,
		Workers:     2,
	}, zerolog.Nop())
}

func newTestService(t *testing.T, factory *countingFactory, cache *redis.Client) *reportService {
	t.Helper()
	svc := NewReportService(factory.new, cache, time.Minute, nil, "", zerolog.Nop()).(*reportService)
	svc.now = func() time.Time { return reportDate }
	return svc
}

func newCache(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestTodayServesFromCacheOnSecondCall(t *testing.T) {
	mr, cache := newCache(t)
	factory := &countingFactory{source: fixtureSource()}
	svc := newTestService(t, factory, cache)

	first, hit, err := svc.Today(context.Background(), reportDate)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, "2026-03-10", first.Date)
	require.Len(t, first.Due, 1)
	require.Equal(t, int64(4), first.Due[0].AssignmentID)
	require.Equal(t, 1, factory.calls)
	require.True(t, mr.Exists("report:today:2026-03-10"))

	second, hit, err := svc.Today(context.Background(), reportDate)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, first.Date, second.Date)
	require.Len(t, second.Due, len(first.Due))
	require.Equal(t, 1, factory.calls)
}

func TestTodayRecomputesOnCorruptCacheEntry(t *testing.T) {
	mr, cache := newCache(t)
	require.NoError(t, mr.Set("report:today:2026-03-10", "{not json"))

	factory := &countingFactory{source: fixtureSource()}
	svc := newTestService(t, factory, cache)

	_, hit, err := svc.Today(context.Background(), reportDate)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 1, factory.calls)
}

func TestTodayWithoutCacheAlwaysRecomputes(t *testing.T) {
	factory := &countingFactory{source: fixtureSource()}
	svc := newTestService(t, factory, nil)

	_, hit, err := svc.Today(context.Background(), reportDate)
	require.NoError(t, err)
	require.False(t, hit)

	_, hit, err = svc.Today(context.Background(), reportDate)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 2, factory.calls)
}

func TestWeekReportCaching(t *testing.T) {
	mr, cache := newCache(t)
	factory := &countingFactory{source: fixtureSource()}
	svc := newTestService(t, factory, cache)

	week, hit, err := svc.Week(context.Background(), reportDate)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC), week.Start)
	require.True(t, mr.Exists("report:week:2026-03-10"))

	_, hit, err = svc.Week(context.Background(), reportDate)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, 1, factory.calls)
}

func TestAttentionSectionsAndCacheKeyPerThreshold(t *testing.T) {
	mr, cache := newCache(t)
	factory := &countingFactory{source: fixtureSource()}
	svc := newTestService(t, factory, cache)

	result, hit, err := svc.Attention(context.Background(), 0)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 0, result.MinGain)

	// Worksheet 3 is missing, every graded quiz is a recoverable low score.
	require.Len(t, result.Missing, 1)
	require.Equal(t, int64(3), result.Missing[0].AssignmentID)
	require.Len(t, result.LowScore, 3)
	require.Equal(t, int64(2), result.LowScore[0].AssignmentID)
	require.Empty(t, result.BeingMarked)
	require.Empty(t, result.HasComment)
	require.True(t, mr.Exists("report:attention:2026-03-10:0"))

	// A different threshold is a different cache entry.
	stricter, hit, err := svc.Attention(context.Background(), 15)
	require.NoError(t, err)
	require.False(t, hit)
	require.Len(t, stricter.LowScore, 1)
	require.True(t, mr.Exists("report:attention:2026-03-10:15"))
}

func TestScoresCaching(t *testing.T) {
	mr, cache := newCache(t)
	factory := &countingFactory{source: fixtureSource()}
	svc := newTestService(t, factory, cache)

	scores, hit, err := svc.Scores(context.Background())
	require.NoError(t, err)
	require.False(t, hit)
	require.Len(t, scores.Courses, 2)
	require.Equal(t, "Algebra", scores.Courses[0].Course)
	require.Equal(t, 77, scores.Courses[0].Score)
	require.Equal(t, "Average", scores.Courses[1].Course)
	require.True(t, mr.Exists("report:scores:2026-03-10"))

	_, hit, err = svc.Scores(context.Background())
	require.NoError(t, err)
	require.True(t, hit)
}

func TestAssignmentNotFound(t *testing.T) {
	factory := &countingFactory{source: fixtureSource()}
	svc := newTestService(t, factory, nil)

	_, err := svc.Assignment(context.Background(), 999)
	require.ErrorIs(t, err, ErrAssignmentNotFound)

	detail, err := svc.Assignment(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, "Quiz 2", detail.Name)
}

func TestServiceHoursDefault(t *testing.T) {
	factory := &countingFactory{source: fixtureSource()}
	svc := newTestService(t, factory, nil)

	hours, err := svc.ServiceHours(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 10, hours.RemainingHours, 0.0001)
}
