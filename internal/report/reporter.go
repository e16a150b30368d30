package report

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gradewatch/gradewatch-api/internal/canvas"
	"github.com/gradewatch/gradewatch-api/internal/config"
	"github.com/gradewatch/gradewatch-api/internal/dto"
	"github.com/gradewatch/gradewatch-api/internal/models"
)

// defaultServiceHours is assumed when no service course or matching
// assignment is found.
const defaultServiceHours = 10

// ClassificationResult pairs one assignment with the status and projected
// gain assigned during a classification pass. Assignments themselves are
// never mutated by classification.
type ClassificationResult struct {
	AssignmentID int64
	Status       models.SubmissionStatus
	PossibleGain int
}

// RunStats summarises one report run. The comment counter lives here, owned
// by the run, not in shared process state.
type RunStats struct {
	CoursesLoaded     int
	AssignmentsLoaded int
	CommentsLoaded    int
}

// ReporterConfig carries the per-student settings a Reporter needs.
type ReporterConfig struct {
	UserID      int64
	StudentName string
	Term        string
	Subjects    []config.Subject
	Location    *time.Location
	Workers     int
}

// Reporter loads a student's courses and assignments from the upstream
// source, classifies every assignment, and produces the report lists. One
// Reporter serves one report invocation; it is not safe for concurrent runs.
type Reporter struct {
	source canvas.Source
	cfg    ReporterConfig
	logger zerolog.Logger
	now    func() time.Time

	courses     map[int64]*models.Course
	assignments map[int64]*models.Assignment
	calc        *WeightedScoreCalculator
}

// NewReporter builds a reporter over the given source.
func NewReporter(source canvas.Source, cfg ReporterConfig, logger zerolog.Logger) *Reporter {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if len(cfg.Subjects) == 0 {
		cfg.Subjects = config.DefaultSubjects
	}

	return &Reporter{
		source:      source,
		cfg:         cfg,
		logger:      logger.With().Str("component", "reporter").Logger(),
		now:         time.Now,
		courses:     map[int64]*models.Course{},
		assignments: map[int64]*models.Assignment{},
	}
}

// commentSource binds the upstream comment fetch to the configured student.
type commentSource struct {
	source canvas.Source
	userID int64
}

func (s commentSource) ListComments(ctx context.Context, courseID, assignmentID int64) ([]canvas.RawComment, error) {
	return s.source.ListSubmissionComments(ctx, courseID, assignmentID, s.userID)
}

type courseLoad struct {
	courseID    int64
	groups      []canvas.RawAssignmentGroup
	assignments []*models.Assignment
	err         error
}

// Load fetches courses, then fans out one fetch task per valid course over a
// bounded worker pool. Results are merged only after every task completes;
// any upstream failure aborts the run.
func (r *Reporter) Load(ctx context.Context) error {
	start := r.now()

	rawCourses, err := r.source.ListCourses(ctx)
	if err != nil {
		return err
	}

	now := r.now()
	for _, raw := range rawCourses {
		if r.cfg.Term != "" && raw.Term.Name != r.cfg.Term {
			continue
		}

		course := models.NewCourse(raw, r.cfg.Subjects)
		if !course.IsCurrent(now) {
			continue
		}
		r.courses[course.ID] = course
	}

	var valid []*models.Course
	for _, course := range r.courses {
		if course.Valid {
			valid = append(valid, course)
		}
	}

	comments := commentSource{source: r.source, userID: r.cfg.UserID}

	jobs := make(chan *models.Course)
	results := make(chan courseLoad, len(valid))

	workers := r.cfg.Workers
	if workers > len(valid) {
		workers = len(valid)
	}

	for i := 0; i < workers; i++ {
		go func() {
			for course := range jobs {
				results <- r.loadCourse(ctx, course, comments)
			}
		}()
	}

	go func() {
		for _, course := range valid {
			jobs <- course
		}
		close(jobs)
	}()

	loads := make([]courseLoad, 0, len(valid))
	for range valid {
		loads = append(loads, <-results)
	}

	for _, load := range loads {
		if load.err != nil {
			return load.err
		}
	}

	for _, load := range loads {
		r.courses[load.courseID].SetGroups(load.groups)
		for _, assignment := range load.assignments {
			r.assignments[assignment.ID()] = assignment
		}
	}

	r.calc = NewWeightedScoreCalculator(r.courses, r.logger)

	r.logger.Info().
		Int("courses", len(r.courses)).
		Int("assignments", len(r.assignments)).
		Dur("elapsed", time.Since(start)).
		Msg("assignments loaded")

	return nil
}

func (r *Reporter) loadCourse(ctx context.Context, course *models.Course, comments commentSource) courseLoad {
	groups, err := r.source.ListAssignmentGroups(ctx, course.ID)
	if err != nil {
		return courseLoad{courseID: course.ID, err: err}
	}

	raws, err := r.source.ListAssignments(ctx, course.ID)
	if err != nil {
		return courseLoad{courseID: course.ID, err: err}
	}

	assignments := make([]*models.Assignment, 0, len(raws))
	for _, raw := range raws {
		assignment := models.NewAssignment(raw, course.ShortName, comments, r.logger)
		if assignment.IsValid() {
			assignments = append(assignments, assignment)
		}
	}

	return courseLoad{courseID: course.ID, groups: groups, assignments: assignments}
}

// Stats summarises the current run, including how many lazy comment loads
// actually happened.
func (r *Reporter) Stats() RunStats {
	stats := RunStats{
		CoursesLoaded:     len(r.courses),
		AssignmentsLoaded: len(r.assignments),
	}
	for _, assignment := range r.assignments {
		if assignment.CommentsFetched() {
			stats.CommentsLoaded++
		}
	}

	return stats
}

// classify runs the priority chain for one assignment: Missing wins, then a
// graded-and-settled assignment is Low_Score only when fixing it would gain
// anything, then Being_Marked. A fresh teacher comment on a less-than-perfect
// score overrides whatever the chain decided.
func (r *Reporter) classify(ctx context.Context, assignment *models.Assignment, asOf time.Time) (ClassificationResult, bool, error) {
	gain := r.calc.Gain(assignment)

	missing, err := assignment.IsMissing(ctx, asOf)
	if err != nil {
		return ClassificationResult{}, false, err
	}
	beingMarked, err := assignment.IsBeingMarked(ctx)
	if err != nil {
		return ClassificationResult{}, false, err
	}

	var status models.SubmissionStatus
	switch {
	case missing:
		status = models.StatusMissing
	case assignment.IsGraded() && !beingMarked:
		if gain > 0 {
			status = models.StatusLowScore
		}
	case beingMarked:
		status = models.StatusBeingMarked
	}

	comments, err := assignment.Comments(ctx)
	if err != nil {
		return ClassificationResult{}, false, err
	}
	if len(comments) > 0 && assignment.PercentageScore() < 100 {
		last := comments[len(comments)-1]
		if !strings.Contains(r.cfg.StudentName, last.Author) {
			submissionDate, hasSubmission, err := assignment.SubmissionDate(ctx)
			if err != nil {
				return ClassificationResult{}, false, err
			}
			if !hasSubmission || last.Date.After(submissionDate) {
				status = models.StatusHasComment
			}
		}
	}

	if status == "" {
		return ClassificationResult{}, false, nil
	}

	return ClassificationResult{
		AssignmentID: assignment.ID(),
		Status:       status,
		PossibleGain: gain,
	}, true, nil
}

// AssignmentReport classifies everything due before today's local midnight
// and returns the rows matching filter. Missing, low-score and comment rows
// below minGain are dropped; missing and low-score rows rank by gain.
func (r *Reporter) AssignmentReport(ctx context.Context, filter models.SubmissionStatus, minGain int) ([]dto.AssignmentStatus, RunStats, error) {
	local := r.now().In(r.cfg.Location)
	asOf := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.cfg.Location)

	r.calc.Update(r.assignments, asOf)

	var rows []dto.AssignmentStatus
	for _, assignment := range r.assignments {
		if !assignment.IsValid() || !r.calc.Includes(assignment) || !assignment.DueDate().Before(asOf) {
			continue
		}

		result, classified, err := r.classify(ctx, assignment, asOf)
		if err != nil {
			return nil, RunStats{}, err
		}
		if !classified || result.Status != filter {
			continue
		}

		thresholded := filter == models.StatusLowScore || filter == models.StatusMissing || filter == models.StatusHasComment
		if thresholded && result.PossibleGain < minGain {
			continue
		}

		row, err := r.statusRow(ctx, assignment, asOf, result.Status, result.PossibleGain)
		if err != nil {
			return nil, RunStats{}, err
		}
		rows = append(rows, row)
	}

	if filter == models.StatusLowScore || filter == models.StatusMissing {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].PossibleGain > rows[j].PossibleGain })
	} else {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].DueDate.Before(rows[j].DueDate) })
	}

	stats := r.Stats()
	r.logger.Info().
		Str("filter", filter.String()).
		Int("rows", len(rows)).
		Int("comments_loaded", stats.CommentsLoaded).
		Msg("assignment report complete")

	return rows, stats, nil
}

// DailyReport lists the assignments due exactly on the given day, classified
// by the simple submitted/marked scheme used for due lists.
func (r *Reporter) DailyReport(ctx context.Context, date time.Time) ([]dto.AssignmentStatus, error) {
	local := date.In(r.cfg.Location)
	endOfDay := time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 0, 0, r.cfg.Location)

	r.calc.Update(r.assignments, endOfDay)

	var rows []dto.AssignmentStatus
	for _, assignment := range r.assignments {
		_, dueToday := assignment.IsDue(endOfDay)
		if !dueToday {
			continue
		}

		status, err := r.dailyStatus(ctx, assignment)
		if err != nil {
			return nil, err
		}

		row, err := r.statusRow(ctx, assignment, endOfDay, status, r.calc.Gain(assignment))
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Course < rows[j].Course })

	return rows, nil
}

// CalendarReport lists what comes due in the week after the given day,
// ordered by due date.
func (r *Reporter) CalendarReport(ctx context.Context, date time.Time) ([]dto.AssignmentStatus, time.Time, time.Time, error) {
	local := date.In(r.cfg.Location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 0, 0, r.cfg.Location)
	end := start.Add(7 * 24 * time.Hour)

	r.calc.Update(r.assignments, end)

	var rows []dto.AssignmentStatus
	for _, assignment := range r.assignments {
		due := assignment.DueDate()
		if !due.After(start) || !due.Before(end) || assignment.PointsPossible() <= 0 {
			continue
		}

		status, err := r.dailyStatus(ctx, assignment)
		if err != nil {
			return nil, start, end, err
		}

		row, err := r.statusRow(ctx, assignment, end, status, r.calc.Gain(assignment))
		if err != nil {
			return nil, start, end, err
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].DueDate.Before(rows[j].DueDate) })

	return rows, start, end, nil
}

// dailyStatus is the simple due-list classification: graded beats external
// beats submitted.
func (r *Reporter) dailyStatus(ctx context.Context, assignment *models.Assignment) (models.SubmissionStatus, error) {
	if assignment.IsGraded() {
		return models.StatusMarked, nil
	}
	if !assignment.CanSubmit() {
		return models.StatusExternal, nil
	}

	submitted, err := assignment.IsSubmitted(ctx)
	if err != nil {
		return "", err
	}
	if submitted {
		return models.StatusSubmitted, nil
	}

	return models.StatusNotSubmitted, nil
}

// CourseScores converts the upstream-computed current scores into rows with
// GPA equivalents, closing with an Average summary row.
func (r *Reporter) CourseScores(ctx context.Context) ([]dto.CourseScore, error) {
	enrollments, err := r.source.ListEnrollments(ctx)
	if err != nil {
		return nil, err
	}

	var scores []dto.CourseScore
	for _, enrollment := range enrollments {
		course, ok := r.courses[enrollment.CourseID]
		if !ok || !course.Valid || enrollment.Grades.CurrentScore == nil {
			continue
		}

		score := roundHalfUp(*enrollment.Grades.CurrentScore)
		weighted, unweighted := PointsForScore(score, course.IsHonors)
		row := dto.CourseScore{
			Course:           course.ShortName,
			Score:            score,
			WeightedPoints:   weighted,
			UnweightedPoints: unweighted,
		}
		if !containsScore(scores, row) {
			scores = append(scores, row)
		}
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Course < scores[j].Course })

	if len(scores) > 0 {
		var totalScore int
		var totalWeighted, totalUnweighted float64
		for _, row := range scores {
			totalScore += row.Score
			totalWeighted += row.WeightedPoints
			totalUnweighted += row.UnweightedPoints
		}

		count := len(scores)
		scores = append(scores, dto.CourseScore{
			Course:           "Average",
			Score:            roundHalfUp(float64(totalScore) / float64(count)),
			WeightedPoints:   totalWeighted / float64(count),
			UnweightedPoints: totalUnweighted / float64(count),
		})
	}

	return scores, nil
}

// AssignmentDetail returns one loaded assignment with its comments populated.
func (r *Reporter) AssignmentDetail(ctx context.Context, id int64) (dto.AssignmentDetail, bool, error) {
	assignment, ok := r.assignments[id]
	if !ok {
		r.logger.Info().Int64("assignment_id", id).Msg("assignment not found")
		return dto.AssignmentDetail{}, false, nil
	}

	comments, err := assignment.Comments(ctx)
	if err != nil {
		return dto.AssignmentDetail{}, false, err
	}

	row, err := r.statusRow(ctx, assignment, r.now(), "", r.calc.Gain(assignment))
	if err != nil {
		return dto.AssignmentDetail{}, false, err
	}

	detail := dto.AssignmentDetail{AssignmentStatus: row}
	for _, comment := range comments {
		detail.Comments = append(detail.Comments, dto.CommentView{
			Author: comment.Author,
			Date:   comment.Date,
			Text:   comment.Text,
		})
	}

	return detail, true, nil
}

// RemainingServiceHours scans the service course for the current term's
// hours assignment and returns expected minus completed hours.
func (r *Reporter) RemainingServiceHours(ctx context.Context) (float64, error) {
	for _, course := range r.courses {
		if !strings.Contains(course.FullName, "Service") {
			continue
		}

		raws, err := r.source.ListAssignments(ctx, course.ID)
		if err != nil {
			return 0, err
		}

		for _, raw := range raws {
			if !strings.Contains(raw.Name, course.Term) || raw.PointsPossible == nil || *raw.PointsPossible <= 0 {
				continue
			}

			var done float64
			if raw.Submission.Score != nil {
				done = *raw.Submission.Score
			}

			return *raw.PointsPossible - done, nil
		}
	}

	return defaultServiceHours, nil
}

func (r *Reporter) statusRow(ctx context.Context, assignment *models.Assignment, asOf time.Time, status models.SubmissionStatus, gain int) (dto.AssignmentStatus, error) {
	dropped, err := assignment.PointsDropped(ctx, asOf)
	if err != nil {
		return dto.AssignmentStatus{}, err
	}

	row := dto.AssignmentStatus{
		AssignmentID:  assignment.ID(),
		Course:        assignment.CourseName(),
		Name:          assignment.Name(),
		DueDate:       assignment.DueDate(),
		Score:         assignment.PercentageScore(),
		Status:        status.String(),
		PointsDropped: dropped,
		PossibleGain:  gain,
		Attempts:      assignment.Attempts(),
	}

	if submissionDate, ok, err := assignment.SubmissionDate(ctx); err != nil {
		return dto.AssignmentStatus{}, err
	} else if ok {
		row.SubmissionDate = &submissionDate
	}

	if gradedDate, ok := assignment.GradedDate(); ok {
		row.GradedDate = &gradedDate
	}

	return row, nil
}

func containsScore(scores []dto.CourseScore, row dto.CourseScore) bool {
	for _, existing := range scores {
		if existing == row {
			return true
		}
	}

	return false
}
